// Package usecase implements the append-only security audit trail.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
)

// EventRepository defines persistence operations for security events.
type EventRepository interface {
	Create(ctx context.Context, event *auditDomain.SecurityEvent) error
	Latest(ctx context.Context) (*auditDomain.SecurityEvent, error)
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error)
	ListRange(ctx context.Context, fromID, toID uuid.UUID) ([]*auditDomain.SecurityEvent, error)
	List(ctx context.Context, offset, limit int, createdAtFrom, createdAtTo *time.Time) ([]*auditDomain.SecurityEvent, error)
	ListBySeverity(ctx context.Context, severities []auditDomain.Severity, limit int) ([]*auditDomain.SecurityEvent, error)
}

// SigningKeyProvider supplies the symmetric key material used to sign events.
// Satisfied by the key store use case.
type SigningKeyProvider interface {
	ActiveKey(ctx context.Context) (material []byte, version uint, err error)
	KeyByVersion(ctx context.Context, version uint) ([]byte, error)
}

// VerifyResult reports the outcome of a chain verification walk.
type VerifyResult struct {
	Checked  int        // Number of events whose links were verified
	BrokenAt *uuid.UUID // First event failing verification, nil when intact
}

// SecurityEventUseCase defines operations on the audit trail.
type SecurityEventUseCase interface {
	// Append finalizes the draft (ID, timestamp, chain hashes, signature) and
	// persists it. Appends are serialized; a store failure places the draft on
	// a bounded retry buffer and returns ErrAuditUnavailable.
	Append(ctx context.Context, draft *auditDomain.EventDraft) (*auditDomain.SecurityEvent, error)

	// VerifyChain walks events between fromID and toID (inclusive, append
	// order) recomputing every hash link and signature.
	VerifyChain(ctx context.Context, fromID, toID uuid.UUID) (*VerifyResult, error)

	// Get retrieves a single event by ID.
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error)

	// List retrieves events newest-first with pagination and optional
	// created-at filtering (nil bounds mean unfiltered).
	List(ctx context.Context, offset, limit int, createdAtFrom, createdAtTo *time.Time) ([]*auditDomain.SecurityEvent, error)

	// RecentCritical retrieves the newest high and critical severity events.
	RecentCritical(ctx context.Context, limit int) ([]*auditDomain.SecurityEvent, error)

	// Close stops the retry worker and waits for it to drain.
	Close()
}
