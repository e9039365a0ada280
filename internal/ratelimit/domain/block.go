package domain

import (
	"time"

	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

var (
	// ErrRateLimitExceeded is returned when a request is denied by any tier
	// or by an active block.
	ErrRateLimitExceeded = apperrors.Wrap(apperrors.ErrRateLimited, "rate limit exceeded")

	// ErrBlockNotFound indicates no block exists for the subject.
	ErrBlockNotFound = apperrors.Wrap(apperrors.ErrNotFound, "block not found")
)

// Block is the persisted penalty state of one subject. Surviving restarts is
// the point: a process bounce must not clear an abuser's penalty.
//
// Cycles counts completed block periods. Each new escalation increments it;
// reaching the configured ceiling makes the block indefinite, clearable only
// by manual operator action.
type Block struct {
	SubjectKey   string
	Cycles       int
	BlockedUntil *time.Time // nil while indefinite or between cycles
	Indefinite   bool
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActiveAt reports whether the subject is blocked at the given instant.
func (b *Block) ActiveAt(now time.Time) bool {
	if b.Indefinite {
		return true
	}
	return b.BlockedUntil != nil && now.Before(*b.BlockedUntil)
}
