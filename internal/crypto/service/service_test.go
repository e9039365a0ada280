package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x24}, cryptoDomain.KeySize)
}

func TestAEADCiphers(t *testing.T) {
	ciphers := map[string]func() (AEAD, error){
		"AESGCM": func() (AEAD, error) {
			return NewAESGCM(testKey())
		},
		"ChaCha20Poly1305": func() (AEAD, error) {
			return NewChaCha20Poly1305(testKey())
		},
	}

	for name, newCipher := range ciphers {
		t.Run(name, func(t *testing.T) {
			aead, err := newCipher()
			require.NoError(t, err)

			t.Run("RoundTrip", func(t *testing.T) {
				plaintext := []byte("student enrollment record")
				aad := []byte("record-42")

				ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
				require.NoError(t, err)
				assert.NotEqual(t, plaintext, ciphertext)

				decrypted, err := aead.Decrypt(ciphertext, nonce, aad)
				require.NoError(t, err)
				assert.Equal(t, plaintext, decrypted)
			})

			t.Run("UniqueNonces", func(t *testing.T) {
				_, nonce1, err := aead.Encrypt([]byte("x"), nil)
				require.NoError(t, err)
				_, nonce2, err := aead.Encrypt([]byte("x"), nil)
				require.NoError(t, err)
				assert.NotEqual(t, nonce1, nonce2)
			})

			t.Run("TamperedCiphertext", func(t *testing.T) {
				ciphertext, nonce, err := aead.Encrypt([]byte("payload"), nil)
				require.NoError(t, err)

				ciphertext[0] ^= 0xff
				_, err = aead.Decrypt(ciphertext, nonce, nil)
				assert.ErrorIs(t, err, cryptoDomain.ErrIntegrity)
			})

			t.Run("WrongAAD", func(t *testing.T) {
				ciphertext, nonce, err := aead.Encrypt([]byte("payload"), []byte("record-1"))
				require.NoError(t, err)

				_, err = aead.Decrypt(ciphertext, nonce, []byte("record-2"))
				assert.ErrorIs(t, err, cryptoDomain.ErrIntegrity)
			})
		})
	}
}

func TestNewAESGCM_InvalidKeySize(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()

	t.Run("SupportedAlgorithms", func(t *testing.T) {
		for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20Poly1305} {
			aead, err := manager.CreateCipher(testKey(), alg)
			require.NoError(t, err)
			assert.NotNil(t, aead)
		}
	})

	t.Run("UnknownAlgorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(testKey(), cryptoDomain.Algorithm("rot13"))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidAlgorithm)
	})

	t.Run("InvalidKeySize", func(t *testing.T) {
		_, err := manager.CreateCipher([]byte("short"), cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}

func TestEd25519Signer(t *testing.T) {
	signer := NewEd25519Signer()

	pub, priv, err := signer.GenerateKeyPair()
	require.NoError(t, err)

	payload := []byte("exported audit segment")
	signature, err := signer.Sign(priv, payload)
	require.NoError(t, err)

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, signer.Verify(pub, payload, signature))
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		err := signer.Verify(pub, []byte("exported audit segment."), signature)
		assert.ErrorIs(t, err, cryptoDomain.ErrIntegrity)
	})

	t.Run("WrongPublicKey", func(t *testing.T) {
		otherPub, _, err := signer.GenerateKeyPair()
		require.NoError(t, err)
		assert.ErrorIs(t, signer.Verify(otherPub, payload, signature), cryptoDomain.ErrIntegrity)
	})
}

func TestMasterKeyWrapper(t *testing.T) {
	ctx := context.Background()

	encoded := base64.StdEncoding.EncodeToString(testKey())
	t.Setenv("MASTER_KEYS", "mk1:"+encoded)
	t.Setenv("ACTIVE_MASTER_KEY_ID", "mk1")

	chain, err := cryptoDomain.LoadMasterKeyChainFromEnv()
	require.NoError(t, err)
	defer chain.Close()

	wrapper := NewMasterKeyWrapper(chain, NewAEADManager())

	t.Run("RoundTrip", func(t *testing.T) {
		material := bytes.Repeat([]byte{0x11}, cryptoDomain.KeySize)

		wrapped, err := wrapper.Wrap(ctx, material)
		require.NoError(t, err)
		assert.NotContains(t, string(wrapped), string(material))

		unwrapped, err := wrapper.Unwrap(ctx, wrapped)
		require.NoError(t, err)
		assert.Equal(t, material, unwrapped)
	})

	t.Run("TamperedBlob", func(t *testing.T) {
		wrapped, err := wrapper.Wrap(ctx, []byte("material"))
		require.NoError(t, err)

		// Flip a byte inside the JSON payload's ciphertext field.
		tampered := bytes.Replace(wrapped, []byte(`"ciphertext":"`), []byte(`"ciphertext":"A`), 1)
		_, err = wrapper.Unwrap(ctx, tampered)
		assert.Error(t, err)
	})
}
