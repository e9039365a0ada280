package domain

import "github.com/google/uuid"

// EventDraft is the caller-supplied part of a security event. The audit trail
// assigns the identifier, timestamp, chain hashes and signature on append.
type EventDraft struct {
	Type        EventType
	PrincipalID *uuid.UUID
	IP          string
	Severity    Severity
	Details     map[string]any
}
