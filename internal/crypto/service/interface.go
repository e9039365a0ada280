// Package service provides the AEAD ciphers and signing primitives behind the
// encryption engine.
package service

import (
	"context"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
)

// AEAD defines Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt seals plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt opens ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD cipher instances for a given algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Signer produces and verifies detached Ed25519 signatures over arbitrary
// payloads, used for non-repudiation of exported records.
type Signer interface {
	// Sign returns a detached signature over the payload.
	Sign(privateKey, payload []byte) ([]byte, error)

	// Verify checks a detached signature. Returns ErrIntegrity on mismatch.
	Verify(publicKey, payload, signature []byte) error

	// GenerateKeyPair returns a fresh Ed25519 key pair.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
}

// Wrapper protects key material at rest. The env-backed implementation wraps
// with a locally held master key; the KMS implementation delegates to an
// external keeper.
type Wrapper interface {
	Wrap(ctx context.Context, plaintext []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}
