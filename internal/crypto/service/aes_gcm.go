package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM.
//
// This is the default cipher for protecting student records and conversation
// excerpts: authenticated encryption with a 256-bit key, 12-byte random nonce
// per operation, and a 16-byte tag appended to the ciphertext. The instance is
// stateless and safe for concurrent use.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance.
//
// The key must be exactly 32 bytes; generate it with crypto/rand. Returns
// ErrInvalidKeySize otherwise.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext with optional additional authenticated data.
//
// The AAD is authenticated but not encrypted; passing the owning record's ID
// binds the ciphertext to that record so it cannot be replayed elsewhere. A
// unique 12-byte nonce is generated per call and must be stored alongside the
// ciphertext. Nonce reuse under the same key breaks GCM.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext with the provided nonce and AAD.
//
// The same AAD used during encryption must be supplied. The authentication tag
// is verified before any plaintext is returned: a modified ciphertext, wrong
// nonce, or mismatched AAD yields ErrIntegrity and nothing else.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrIntegrity, err.Error())
	}
	return plaintext, nil
}
