package usecase

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	cryptoService "github.com/aknoru/lacbot-security/internal/crypto/service"
	keystoreDomain "github.com/aknoru/lacbot-security/internal/keystore/domain"
)

func newTestChain(t *testing.T) *keystoreDomain.KeyChain {
	t.Helper()

	symmetric := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(symmetric)
	require.NoError(t, err)

	pub, priv, err := cryptoService.NewEd25519Signer().GenerateKeyPair()
	require.NoError(t, err)

	chain := keystoreDomain.NewKeyChain()
	chain.Publish(keystoreDomain.NewSnapshot([]*keystoreDomain.KeyMaterial{
		{
			ID:        uuid.Must(uuid.NewV7()),
			Kind:      keystoreDomain.KindSymmetric,
			Version:   1,
			State:     keystoreDomain.StateActive,
			Material:  symmetric,
			CreatedAt: time.Now().UTC(),
		},
		{
			ID:        uuid.Must(uuid.NewV7()),
			Kind:      keystoreDomain.KindSigning,
			Version:   1,
			State:     keystoreDomain.StateActive,
			Material:  priv,
			PublicKey: pub,
			CreatedAt: time.Now().UTC(),
		},
	}))
	return chain
}

func newTestEngine(t *testing.T, chain *keystoreDomain.KeyChain) CryptoEngineUseCase {
	t.Helper()

	engine, err := NewCryptoEngineUseCase(
		chain,
		cryptoService.NewAEADManager(),
		cryptoService.NewEd25519Signer(),
		cryptoDomain.AESGCM,
	)
	require.NoError(t, err)
	return engine
}

func TestCryptoEngineUseCase_EncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t)
	engine := newTestEngine(t, chain)

	t.Run("RoundTrip", func(t *testing.T) {
		plaintext := []byte("counseling session notes")
		aad := []byte("conversation-77")

		blob, err := engine.Encrypt(ctx, plaintext, aad)
		require.NoError(t, err)
		assert.Equal(t, uint(1), blob.KeyVersion)
		assert.Equal(t, cryptoDomain.AESGCM, blob.Algorithm)
		assert.NotEqual(t, plaintext, blob.Ciphertext)

		decrypted, err := engine.Decrypt(ctx, blob, aad)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("TamperedBlobFailsClosed", func(t *testing.T) {
		blob, err := engine.Encrypt(ctx, []byte("payload"), nil)
		require.NoError(t, err)

		blob.Ciphertext[0] ^= 0xff
		plaintext, err := engine.Decrypt(ctx, blob, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrIntegrity)
		assert.Nil(t, plaintext)
	})

	t.Run("UnknownKeyVersion", func(t *testing.T) {
		blob, err := engine.Encrypt(ctx, []byte("payload"), nil)
		require.NoError(t, err)

		blob.KeyVersion = 9
		_, err = engine.Decrypt(ctx, blob, nil)
		assert.ErrorIs(t, err, keystoreDomain.ErrKeyNotFound)
	})

	t.Run("RevokedKeyVersion", func(t *testing.T) {
		blob, err := engine.Encrypt(ctx, []byte("payload"), nil)
		require.NoError(t, err)

		// Publishing a snapshot without the symmetric key simulates revocation.
		sym, err := chain.Active(keystoreDomain.KindSymmetric)
		require.NoError(t, err)
		sym2 := *sym
		sym2.State = keystoreDomain.StateRevoked
		signing, err := chain.Active(keystoreDomain.KindSigning)
		require.NoError(t, err)
		chain.Publish(keystoreDomain.NewSnapshot([]*keystoreDomain.KeyMaterial{&sym2, signing}))

		_, err = engine.Decrypt(ctx, blob, nil)
		assert.ErrorIs(t, err, keystoreDomain.ErrKeyNotFound)
	})
}

func TestCryptoEngineUseCase_SignVerify(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newTestChain(t))

	payload := []byte("consent receipt")
	signature, version, err := engine.Sign(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	assert.NoError(t, engine.Verify(ctx, payload, signature, version))
	assert.ErrorIs(
		t,
		engine.Verify(ctx, []byte("altered receipt"), signature, version),
		cryptoDomain.ErrIntegrity,
	)
}

func TestCryptoEngineUseCase_Hash(t *testing.T) {
	engine := newTestEngine(t, newTestChain(t))

	first := engine.Hash([]byte("payload"))
	second := engine.Hash([]byte("payload"))
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
	assert.NotEqual(t, first, engine.Hash([]byte("other")))
}

func TestNewCryptoEngineUseCase_InvalidAlgorithm(t *testing.T) {
	_, err := NewCryptoEngineUseCase(
		keystoreDomain.NewKeyChain(),
		cryptoService.NewAEADManager(),
		cryptoService.NewEd25519Signer(),
		cryptoDomain.Algorithm("rot13"),
	)
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidAlgorithm)
}
