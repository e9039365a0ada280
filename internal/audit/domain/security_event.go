package domain

import (
	"time"

	"github.com/google/uuid"
)

// HashSize is the size in bytes of the SHA-256 digests used by the event chain.
const HashSize = 32

// GenesisHash is the previous-hash value carried by the first event in the chain.
var GenesisHash = make([]byte, HashSize)

// SecurityEvent is a single entry in the append-only audit trail. Each event
// carries the hash of its predecessor, forming a hash chain: mutating any stored
// event breaks verification for every subsequent link.
type SecurityEvent struct {
	ID          uuid.UUID      // Unique identifier (UUIDv7, time-ordered)
	Type        EventType      // What happened
	PrincipalID *uuid.UUID     // Acting principal, nil for anonymous traffic
	IP          string         // Source address (IPv4 or IPv6)
	Severity    Severity       // Low, Medium, High, or Critical
	Details     map[string]any // Non-sensitive structured context
	PrevHash    []byte         // SHA-256 of the previous event's canonical form
	EventHash   []byte         // SHA-256 of this event's canonical form (includes PrevHash)
	Signature   []byte         // HMAC-SHA256 over the canonical form, keyed per active symmetric key
	KeyVersion  uint           // Symmetric key version used for the signature
	CreatedAt   time.Time
}

// SubjectKey returns the identifier the threat monitor aggregates this event
// under: the principal ID when present, otherwise the source IP.
func (e *SecurityEvent) SubjectKey() string {
	if e.PrincipalID != nil {
		return e.PrincipalID.String()
	}
	return e.IP
}
