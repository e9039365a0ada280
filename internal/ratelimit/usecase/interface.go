// Package usecase implements multi-tier token bucket rate limiting with
// escalating penalty blocks.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
)

// BlockRepository defines persistence operations for penalty blocks.
type BlockRepository interface {
	Upsert(ctx context.Context, block *ratelimitDomain.Block) error
	Get(ctx context.Context, subjectKey string) (*ratelimitDomain.Block, error)
	Delete(ctx context.Context, subjectKey string) error
	List(ctx context.Context) ([]*ratelimitDomain.Block, error)
}

// Recorder receives rate limit violation events for the audit trail.
type Recorder interface {
	Record(ctx context.Context, draft *auditDomain.EventDraft)
}

// Subject identifies who is being throttled. Key() prefers the principal;
// anonymous traffic falls back to the address.
type Subject struct {
	PrincipalID *uuid.UUID
	IP          string
	Operation   string
}

// Key returns the identity the penalty state is tracked under.
func (s Subject) Key() string {
	if s.PrincipalID != nil {
		return s.PrincipalID.String()
	}
	return s.IP
}

// TierLimit is one tier's bucket shape.
type TierLimit struct {
	Capacity        int
	RefillPerSecond float64
}

// Limits maps each tier to its bucket shape.
type Limits map[ratelimitDomain.Tier]TierLimit

// Escalation controls the penalty ladder applied on Deny.
type Escalation struct {
	FirstBlock          time.Duration // First offense
	RepeatBlock         time.Duration // Re-offense within the block-free window
	BlockFreeWindow     time.Duration // Clean time required to de-escalate
	IndefiniteThreshold int           // Cycles before the block becomes indefinite
}

// RateLimiterUseCase defines the throttling operations.
type RateLimiterUseCase interface {
	// Load warms the block cache from the store. Call once at startup.
	Load(ctx context.Context) error

	// Check runs every applicable tier for the subject plus its block state.
	// A Deny feeds the escalation ladder and is audited. The returned error
	// reports infrastructure failures only; Deny is a routine outcome.
	Check(ctx context.Context, subject Subject) (ratelimitDomain.Decision, error)

	// TryAcquire evaluates a single bucket without block or escalation
	// side effects.
	TryAcquire(subjectKey string, tier ratelimitDomain.Tier) ratelimitDomain.Decision

	// TryAcquireAt is TryAcquire at an explicit instant.
	TryAcquireAt(subjectKey string, tier ratelimitDomain.Tier, at time.Time) ratelimitDomain.Decision

	// ForceBlock imposes a block regardless of bucket state. Zero or
	// negative duration blocks indefinitely.
	ForceBlock(ctx context.Context, subjectKey string, duration time.Duration, reason string) error

	// Unblock clears a subject's block and resets its escalation cycles.
	// Authorization (operator clearance) is the caller's responsibility.
	Unblock(ctx context.Context, subjectKey string) error

	// ActiveBlocks returns the blocks in force right now.
	ActiveBlocks(ctx context.Context) []*ratelimitDomain.Block

	// Close stops the stale bucket janitor.
	Close()
}
