package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/aknoru/lacbot-security/internal/crypto/domain"
)

// Ed25519Signer implements the Signer interface with Ed25519 detached
// signatures. Signed payloads (audit exports, consent receipts) can be
// verified offline with only the public key.
type Ed25519Signer struct{}

// NewEd25519Signer creates a new Ed25519 signer.
func NewEd25519Signer() *Ed25519Signer {
	return &Ed25519Signer{}
}

// Sign returns a detached signature over the payload.
func (s *Ed25519Signer) Sign(privateKey, payload []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), payload), nil
}

// Verify checks a detached signature. Returns ErrIntegrity on any mismatch so
// callers cannot distinguish a bad signature from a tampered payload.
func (s *Ed25519Signer) Verify(publicKey, payload, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), payload, signature) {
		return cryptoDomain.ErrIntegrity
	}
	return nil
}

// GenerateKeyPair returns a fresh Ed25519 key pair.
func (s *Ed25519Signer) GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return pub, priv, nil
}
