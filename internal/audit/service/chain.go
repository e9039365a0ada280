package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	"github.com/aknoru/lacbot-security/internal/errors"
)

// ErrSignatureInvalid indicates an event's HMAC signature does not verify.
var ErrSignatureInvalid = errors.New("event signature invalid")

type chainHasher struct{}

// NewChainHasher creates the SHA-256 hash-chain implementation used by the audit log.
func NewChainHasher() ChainHasher {
	return &chainHasher{}
}

// canonicalizeEvent converts a security event to its canonical byte representation.
// Format: id || prev_hash || type || principal_id || ip || severity || details || created_at
// Uses length-prefixed encoding for variable-length fields to prevent ambiguity.
func canonicalizeEvent(event *auditDomain.SecurityEvent) ([]byte, error) {
	// Estimate capacity to reduce allocations (typical event ~512B)
	buf := make([]byte, 0, 512)

	// Event ID (16 bytes)
	buf = append(buf, event.ID[:]...)

	// Previous hash (fixed 32 bytes; genesis events carry the zero hash)
	prev := event.PrevHash
	if len(prev) == 0 {
		prev = auditDomain.GenesisHash
	}
	if len(prev) != auditDomain.HashSize {
		return nil, fmt.Errorf("prev hash must be %d bytes, got %d", auditDomain.HashSize, len(prev))
	}
	buf = append(buf, prev...)

	// Event type and severity (length-prefixed strings)
	buf = appendLengthPrefixed(buf, []byte(string(event.Type)))
	buf = appendLengthPrefixed(buf, []byte(string(event.Severity)))

	// Principal ID (16 bytes when present, 0-length otherwise)
	if event.PrincipalID != nil {
		buf = appendLengthPrefixed(buf, event.PrincipalID[:])
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	// Source IP (length-prefixed)
	buf = appendLengthPrefixed(buf, []byte(event.IP))

	// Details JSON (length-prefixed, deterministic serialization)
	if event.Details != nil {
		detailsBytes, err := json.Marshal(event.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event details: %w", err)
		}
		buf = appendLengthPrefixed(buf, detailsBytes)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	// Timestamp (Unix nano for precision)
	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(event.CreatedAt.UnixNano()))
	buf = append(buf, timeBytes...)

	return buf, nil
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
// Format: [length (4 bytes)] + [data (length bytes)]
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// HashEvent computes the SHA-256 digest of the event's canonical form.
func (c *chainHasher) HashEvent(event *auditDomain.SecurityEvent) ([]byte, error) {
	canonical, err := canonicalizeEvent(event)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}

	digest := sha256.Sum256(canonical)
	return digest[:], nil
}

// VerifyLink checks a single backward link of the chain. For the genesis event
// pass prev == nil; its PrevHash must then equal the zero hash.
func (c *chainHasher) VerifyLink(prev, event *auditDomain.SecurityEvent) error {
	expectedPrev := auditDomain.GenesisHash
	if prev != nil {
		expectedPrev = prev.EventHash
	}

	if !bytes.Equal(event.PrevHash, expectedPrev) {
		return auditDomain.ErrChainBroken
	}

	recomputed, err := c.HashEvent(event)
	if err != nil {
		return err
	}
	if !bytes.Equal(event.EventHash, recomputed) {
		return auditDomain.ErrChainBroken
	}

	return nil
}

type eventSigner struct{}

// NewEventSigner creates an HMAC-based event signer using HKDF-SHA256 for key
// derivation and HMAC-SHA256 for signature generation.
func NewEventSigner() EventSigner {
	return &eventSigner{}
}

// deriveSigningKey uses HKDF-SHA256 to derive a 32-byte signing key from the
// symmetric key. Separates encryption key usage from signing key usage.
// Info parameter: "security-event-signing-v1" (versioned for future algorithm changes).
func (s *eventSigner) deriveSigningKey(key []byte) ([]byte, error) {
	info := []byte("security-event-signing-v1")
	kdf := hkdf.New(sha256.New, key, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, signingKey); err != nil {
		return nil, err
	}

	return signingKey, nil
}

// Sign generates an HMAC-SHA256 signature over the event's canonical form.
func (s *eventSigner) Sign(key []byte, event *auditDomain.SecurityEvent) ([]byte, error) {
	signingKey, err := s.deriveSigningKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer zero(signingKey) // Clear derived key from memory

	canonical, err := canonicalizeEvent(event)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize event: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Verify checks if the event signature is valid.
// Returns nil if valid, ErrSignatureInvalid if tampered or invalid.
func (s *eventSigner) Verify(key []byte, event *auditDomain.SecurityEvent) error {
	expectedSig, err := s.Sign(key, event)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(event.Signature, expectedSig) {
		return ErrSignatureInvalid
	}

	return nil
}

// zero overwrites sensitive data in memory with zeros.
// Prevents key material from lingering in memory after use.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
