package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
)

// softWarnBand: a bucket with less than this fraction of its capacity left
// answers SoftWarn instead of Allow.
const softWarnBand = 0.2

const janitorInterval = time.Minute

// bucketEntry guards one subject's limiter on one tier. Entries lock
// independently, so contention on one subject never blocks another.
type bucketEntry struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterUseCase struct {
	limits     Limits
	escalation Escalation
	repo       BlockRepository
	recorder   Recorder
	logger     *slog.Logger

	buckets sync.Map // tier + "\x00" + subjectKey -> *bucketEntry
	blocks  sync.Map // subjectKey -> *ratelimitDomain.Block

	// blockMu serializes escalation transitions; bucket checks stay
	// independent of it.
	blockMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRateLimiterUseCase creates the rate limiter and starts its stale bucket
// janitor. Callers must Close() it on shutdown.
func NewRateLimiterUseCase(
	limits Limits,
	escalation Escalation,
	repo BlockRepository,
	recorder Recorder,
	logger *slog.Logger,
) RateLimiterUseCase {
	u := &rateLimiterUseCase{
		limits:     limits,
		escalation: escalation,
		repo:       repo,
		recorder:   recorder,
		logger:     logger,
		done:       make(chan struct{}),
	}

	u.wg.Add(1)
	go u.janitor()

	return u
}

func (u *rateLimiterUseCase) Load(ctx context.Context) error {
	blocks, err := u.repo.List(ctx)
	if err != nil {
		return apperrors.Wrap(err, "failed to load rate blocks")
	}
	for _, block := range blocks {
		u.blocks.Store(block.SubjectKey, block)
	}
	return nil
}

func (u *rateLimiterUseCase) TryAcquire(
	subjectKey string,
	tier ratelimitDomain.Tier,
) ratelimitDomain.Decision {
	return u.TryAcquireAt(subjectKey, tier, time.Now())
}

func (u *rateLimiterUseCase) TryAcquireAt(
	subjectKey string,
	tier ratelimitDomain.Tier,
	at time.Time,
) ratelimitDomain.Decision {
	limit, ok := u.limits[tier]
	if !ok {
		return ratelimitDomain.Allow
	}

	entry := u.entry(tier, subjectKey, limit)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.lastSeen = at
	if !entry.limiter.AllowN(at, 1) {
		return ratelimitDomain.Deny
	}
	if entry.limiter.TokensAt(at) < softWarnBand*float64(limit.Capacity) {
		return ratelimitDomain.SoftWarn
	}
	return ratelimitDomain.Allow
}

func (u *rateLimiterUseCase) Check(
	ctx context.Context,
	subject Subject,
) (ratelimitDomain.Decision, error) {
	now := time.Now()

	if blocked, reason := u.isBlocked(subject, now); blocked {
		u.record(ctx, subject, auditDomain.SeverityMedium, map[string]any{
			"decision": string(ratelimitDomain.Deny),
			"reason":   reason,
		})
		return ratelimitDomain.Deny, nil
	}

	decision := ratelimitDomain.Allow
	deniedTiers := make([]string, 0, 3)

	for _, check := range u.tierChecks(subject) {
		switch u.TryAcquireAt(check.key, check.tier, now) {
		case ratelimitDomain.Deny:
			decision = ratelimitDomain.Deny
			deniedTiers = append(deniedTiers, string(check.tier))
		case ratelimitDomain.SoftWarn:
			if decision == ratelimitDomain.Allow {
				decision = ratelimitDomain.SoftWarn
			}
		}
	}

	if decision != ratelimitDomain.Deny {
		return decision, nil
	}

	severity, details := u.escalate(ctx, subject.Key(), now)
	details["decision"] = string(ratelimitDomain.Deny)
	details["tiers"] = deniedTiers
	u.record(ctx, subject, severity, details)

	return ratelimitDomain.Deny, nil
}

type tierCheck struct {
	tier ratelimitDomain.Tier
	key  string
}

// tierChecks lists the buckets a request must pass. Anonymous traffic skips
// the principal tier; the operation tier scopes to the subject.
func (u *rateLimiterUseCase) tierChecks(subject Subject) []tierCheck {
	checks := []tierCheck{{tier: ratelimitDomain.TierIP, key: subject.IP}}
	if subject.PrincipalID != nil {
		checks = append(checks, tierCheck{
			tier: ratelimitDomain.TierPrincipal,
			key:  subject.PrincipalID.String(),
		})
	}
	if subject.Operation != "" {
		checks = append(checks, tierCheck{
			tier: ratelimitDomain.TierOperation,
			key:  subject.Key() + "\x00" + subject.Operation,
		})
	}
	return checks
}

// isBlocked checks the penalty state for both the subject identity and its
// address, so a blocked IP cannot sidestep the block by authenticating.
func (u *rateLimiterUseCase) isBlocked(subject Subject, now time.Time) (bool, string) {
	keys := []string{subject.Key()}
	if subject.IP != "" && subject.IP != keys[0] {
		keys = append(keys, subject.IP)
	}

	for _, key := range keys {
		if value, ok := u.blocks.Load(key); ok {
			block := value.(*ratelimitDomain.Block)
			if block.ActiveAt(now) {
				return true, block.Reason
			}
		}
	}
	return false, ""
}

// escalate advances the penalty ladder for a denied subject: first offense
// gets the short block, re-offense within the block-free window the long one,
// and enough cycles an indefinite block that only an operator can clear.
func (u *rateLimiterUseCase) escalate(
	ctx context.Context,
	subjectKey string,
	now time.Time,
) (auditDomain.Severity, map[string]any) {
	u.blockMu.Lock()
	defer u.blockMu.Unlock()

	var block *ratelimitDomain.Block
	if value, ok := u.blocks.Load(subjectKey); ok {
		copied := *value.(*ratelimitDomain.Block)
		block = &copied
	} else {
		block = &ratelimitDomain.Block{SubjectKey: subjectKey, CreatedAt: now}
	}

	if block.ActiveAt(now) {
		// Already serving a block; nothing to escalate.
		return auditDomain.SeverityMedium, map[string]any{"cycles": block.Cycles}
	}

	duration := u.escalation.FirstBlock
	if block.BlockedUntil != nil && now.Sub(*block.BlockedUntil) <= u.escalation.BlockFreeWindow {
		duration = u.escalation.RepeatBlock
	}

	block.Cycles++
	block.Reason = "rate limit exceeded"
	block.UpdatedAt = now

	severity := auditDomain.SeverityMedium
	details := map[string]any{"cycles": block.Cycles}

	if block.Cycles >= u.escalation.IndefiniteThreshold {
		block.Indefinite = true
		block.BlockedUntil = nil
		block.Reason = "sustained abuse"
		severity = auditDomain.SeverityHigh
		details["escalation"] = "indefinite"
	} else {
		until := now.Add(duration)
		block.BlockedUntil = &until
		details["blocked_for"] = duration.String()
	}

	u.storeBlock(ctx, block)
	return severity, details
}

func (u *rateLimiterUseCase) ForceBlock(
	ctx context.Context,
	subjectKey string,
	duration time.Duration,
	reason string,
) error {
	u.blockMu.Lock()
	defer u.blockMu.Unlock()

	now := time.Now().UTC()
	block := &ratelimitDomain.Block{
		SubjectKey: subjectKey,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if value, ok := u.blocks.Load(subjectKey); ok {
		copied := *value.(*ratelimitDomain.Block)
		block = &copied
		block.Reason = reason
		block.UpdatedAt = now
	}

	if duration <= 0 {
		block.Indefinite = true
		block.BlockedUntil = nil
	} else {
		until := now.Add(duration)
		if block.BlockedUntil == nil || until.After(*block.BlockedUntil) {
			block.BlockedUntil = &until
		}
	}

	u.storeBlock(ctx, block)
	return nil
}

func (u *rateLimiterUseCase) Unblock(ctx context.Context, subjectKey string) error {
	u.blockMu.Lock()
	defer u.blockMu.Unlock()

	if _, ok := u.blocks.Load(subjectKey); !ok {
		return ratelimitDomain.ErrBlockNotFound
	}

	u.blocks.Delete(subjectKey)
	if err := u.repo.Delete(ctx, subjectKey); err != nil &&
		!apperrors.Is(err, ratelimitDomain.ErrBlockNotFound) {
		return err
	}
	return nil
}

func (u *rateLimiterUseCase) ActiveBlocks(_ context.Context) []*ratelimitDomain.Block {
	now := time.Now()
	active := make([]*ratelimitDomain.Block, 0)
	u.blocks.Range(func(_, value any) bool {
		block := value.(*ratelimitDomain.Block)
		if block.ActiveAt(now) {
			active = append(active, block)
		}
		return true
	})
	return active
}

func (u *rateLimiterUseCase) Close() {
	close(u.done)
	u.wg.Wait()
}

// storeBlock updates the cache and writes through to the store. The block
// holds in memory even when persistence fails: a database outage must not
// lift penalties.
func (u *rateLimiterUseCase) storeBlock(ctx context.Context, block *ratelimitDomain.Block) {
	u.blocks.Store(block.SubjectKey, block)
	if err := u.repo.Upsert(ctx, block); err != nil {
		u.logger.Error("failed to persist rate block",
			"subject", block.SubjectKey,
			"error", err,
		)
	}
}

func (u *rateLimiterUseCase) entry(
	tier ratelimitDomain.Tier,
	subjectKey string,
	limit TierLimit,
) *bucketEntry {
	key := string(tier) + "\x00" + subjectKey
	if value, ok := u.buckets.Load(key); ok {
		return value.(*bucketEntry)
	}

	created := &bucketEntry{
		limiter:  rate.NewLimiter(rate.Limit(limit.RefillPerSecond), limit.Capacity),
		lastSeen: time.Now(),
	}
	actual, _ := u.buckets.LoadOrStore(key, created)
	return actual.(*bucketEntry)
}

// janitor drops buckets idle long enough to have fully refilled; recreating
// one later is equivalent to having kept it.
func (u *rateLimiterUseCase) janitor() {
	defer u.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.done:
			return
		case now := <-ticker.C:
			u.buckets.Range(func(key, value any) bool {
				entry := value.(*bucketEntry)
				entry.mu.Lock()
				stale := now.Sub(entry.lastSeen) > 3*janitorInterval
				entry.mu.Unlock()
				if stale {
					u.buckets.Delete(key)
				}
				return true
			})
		}
	}
}

func (u *rateLimiterUseCase) record(
	ctx context.Context,
	subject Subject,
	severity auditDomain.Severity,
	details map[string]any,
) {
	if u.recorder == nil {
		return
	}
	u.recorder.Record(ctx, &auditDomain.EventDraft{
		Type:        auditDomain.RateLimitViolationEvent,
		PrincipalID: subject.PrincipalID,
		IP:          subject.IP,
		Severity:    severity,
		Details:     details,
	})
}
