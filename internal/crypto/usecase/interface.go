// Package usecase implements the encryption engine that seals and opens
// sensitive payloads with versioned keys.
package usecase

import (
	"context"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
)

// CryptoEngineUseCase defines the data protection operations exposed to the
// rest of the system.
type CryptoEngineUseCase interface {
	// Encrypt seals plaintext under the active symmetric key and returns a
	// self-describing blob. The optional AAD binds the blob to its context.
	Encrypt(ctx context.Context, plaintext, aad []byte) (*cryptoDomain.EncryptedBlob, error)

	// Decrypt opens a blob with the key version it names. Fails closed: a
	// revoked or unknown version, wrong AAD, or tampered ciphertext returns
	// an error and no partial plaintext.
	Decrypt(ctx context.Context, blob *cryptoDomain.EncryptedBlob, aad []byte) ([]byte, error)

	// Sign produces a detached Ed25519 signature with the active signing key.
	Sign(ctx context.Context, payload []byte) (signature []byte, keyVersion uint, err error)

	// Verify checks a detached signature against the named signing key version.
	Verify(ctx context.Context, payload, signature []byte, keyVersion uint) error

	// Hash returns the SHA-256 digest of the payload.
	Hash(payload []byte) []byte
}
