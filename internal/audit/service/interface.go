// Package service provides the hash-chain and signing primitives for the audit log.
package service

import (
	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
)

// ChainHasher computes and verifies the backward hash links of the event chain.
type ChainHasher interface {
	// HashEvent computes the SHA-256 digest of the event's canonical form.
	// The event's PrevHash must already be set; it is part of the canonical form.
	HashEvent(event *auditDomain.SecurityEvent) ([]byte, error)

	// VerifyLink checks that event.PrevHash matches the stored hash of the
	// previous event and that event.EventHash matches the recomputed digest.
	// Returns ErrChainBroken on any mismatch.
	VerifyLink(prev, event *auditDomain.SecurityEvent) error
}

// EventSigner produces and verifies HMAC signatures over security events,
// binding the chain to key material so an attacker who can rewrite the whole
// table still cannot forge a valid chain.
type EventSigner interface {
	// Sign generates an HMAC-SHA256 signature for the event using a signing key
	// derived from the provided symmetric key.
	Sign(key []byte, event *auditDomain.SecurityEvent) ([]byte, error)

	// Verify checks the event signature. Returns ErrSignatureInvalid if tampered.
	Verify(key []byte, event *auditDomain.SecurityEvent) error
}
