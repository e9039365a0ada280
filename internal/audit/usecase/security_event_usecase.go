package usecase

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/aknoru/lacbot-security/internal/audit/domain"
	"github.com/aknoru/lacbot-security/internal/audit/service"
	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// RetryPolicy controls how failed appends are buffered and retried.
type RetryPolicy struct {
	AppendTimeout time.Duration // Per-attempt deadline against the store
	RetryInterval time.Duration // Delay between drain attempts
	RetryBudget   int           // Max attempts per buffered draft before it is dropped
	BufferSize    int           // Max drafts buffered while the store is down
}

type retryItem struct {
	draft    *auditDomain.EventDraft
	attempts int
}

type securityEventUseCase struct {
	repo   EventRepository
	hasher service.ChainHasher
	signer service.EventSigner
	keys   SigningKeyProvider
	policy RetryPolicy

	// mu serializes appends: the chain head admits exactly one writer.
	mu       sync.Mutex
	lastHash []byte // nil until seeded from the store

	pending chan *retryItem
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSecurityEventUseCase creates the audit trail use case and starts its
// retry worker. Callers must Close() it on shutdown.
func NewSecurityEventUseCase(
	repo EventRepository,
	hasher service.ChainHasher,
	signer service.EventSigner,
	keys SigningKeyProvider,
	policy RetryPolicy,
) SecurityEventUseCase {
	u := &securityEventUseCase{
		repo:    repo,
		hasher:  hasher,
		signer:  signer,
		keys:    keys,
		policy:  policy,
		pending: make(chan *retryItem, policy.BufferSize),
		done:    make(chan struct{}),
	}

	u.wg.Add(1)
	go u.retryLoop()

	return u
}

// Append finalizes and persists a draft. On store failure the draft is placed
// on the retry buffer and ErrAuditUnavailable is returned; callers decide
// whether their control fails open or closed.
func (u *securityEventUseCase) Append(
	ctx context.Context,
	draft *auditDomain.EventDraft,
) (*auditDomain.SecurityEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, u.policy.AppendTimeout)
	defer cancel()

	event, err := u.append(ctx, draft)
	if err != nil {
		select {
		case u.pending <- &retryItem{draft: draft}:
		default:
			// Buffer full: the draft is lost. The recovery self-report
			// carries the drop count once the store comes back.
		}
		return nil, apperrors.Wrap(auditDomain.ErrAuditUnavailable, err.Error())
	}

	return event, nil
}

// append performs one serialized chain append. The chain head is seeded from
// the store on first use, so restarts continue the existing chain.
func (u *securityEventUseCase) append(
	ctx context.Context,
	draft *auditDomain.EventDraft,
) (*auditDomain.SecurityEvent, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.lastHash == nil {
		latest, err := u.repo.Latest(ctx)
		switch {
		case err == nil:
			u.lastHash = latest.EventHash
		case apperrors.Is(err, auditDomain.ErrEventNotFound):
			u.lastHash = auditDomain.GenesisHash
		default:
			return nil, apperrors.Wrap(err, "failed to seed chain head")
		}
	}

	key, version, err := u.keys.ActiveKey(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load signing key")
	}

	event := &auditDomain.SecurityEvent{
		ID:          uuid.Must(uuid.NewV7()),
		Type:        draft.Type,
		PrincipalID: draft.PrincipalID,
		IP:          draft.IP,
		Severity:    draft.Severity,
		Details:     draft.Details,
		PrevHash:    u.lastHash,
		KeyVersion:  version,
		CreatedAt:   time.Now().UTC(),
	}

	event.EventHash, err = u.hasher.HashEvent(event)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash event")
	}

	event.Signature, err = u.signer.Sign(key, event)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sign event")
	}

	if err := u.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	u.lastHash = event.EventHash
	return event, nil
}

// retryLoop drains the pending buffer once per interval. A failed attempt
// stops the drain until the next tick; budget-exhausted drafts are dropped.
// After a successful drain a critical self-report is appended so operators
// learn the trail was degraded.
func (u *securityEventUseCase) retryLoop() {
	defer u.wg.Done()

	ticker := time.NewTicker(u.policy.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.done:
			return
		case <-ticker.C:
			u.drainPending()
		}
	}
}

func (u *securityEventUseCase) drainPending() {
	retried, dropped := 0, 0

	for {
		var item *retryItem
		select {
		case item = <-u.pending:
		default:
			if retried > 0 {
				u.reportRecovery(retried, dropped)
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), u.policy.AppendTimeout)
		_, err := u.append(ctx, item.draft)
		cancel()

		if err != nil {
			item.attempts++
			if item.attempts >= u.policy.RetryBudget {
				dropped++
			} else {
				select {
				case u.pending <- item:
				default:
					dropped++
				}
			}
			// Store still unavailable, wait for the next tick.
			if retried > 0 {
				u.reportRecovery(retried, dropped)
			}
			return
		}

		retried++
	}
}

func (u *securityEventUseCase) reportRecovery(retried, dropped int) {
	ctx, cancel := context.WithTimeout(context.Background(), u.policy.AppendTimeout)
	defer cancel()

	// Best effort: if the store fails again here the degradation is still
	// visible through ErrAuditUnavailable on the caller side.
	_, _ = u.append(ctx, &auditDomain.EventDraft{
		Type:     auditDomain.AuditFailureEvent,
		Severity: auditDomain.SeverityCritical,
		Details: map[string]any{
			"retried": retried,
			"dropped": dropped,
		},
	})
}

// VerifyChain walks the stored events between fromID and toID in append order,
// recomputing each hash link and signature. The first event of the range is
// verified against its own recomputed hash; its backward link is checked only
// when it claims to be the genesis event.
func (u *securityEventUseCase) VerifyChain(
	ctx context.Context,
	fromID, toID uuid.UUID,
) (*VerifyResult, error) {
	events, err := u.repo.ListRange(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, auditDomain.ErrEventNotFound
	}

	result := &VerifyResult{}
	var prev *auditDomain.SecurityEvent

	for i, event := range events {
		if i == 0 && !isGenesis(event.PrevHash) {
			// Mid-chain start: only the event's own digest can be checked.
			recomputed, err := u.hasher.HashEvent(event)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(event.EventHash, recomputed) {
				id := event.ID
				result.BrokenAt = &id
				return result, nil
			}
		} else {
			if err := u.hasher.VerifyLink(prev, event); err != nil {
				if apperrors.Is(err, auditDomain.ErrChainBroken) {
					id := event.ID
					result.BrokenAt = &id
					return result, nil
				}
				return nil, err
			}
		}

		key, err := u.keys.KeyByVersion(ctx, event.KeyVersion)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to load verification key")
		}
		if err := u.signer.Verify(key, event); err != nil {
			if apperrors.Is(err, service.ErrSignatureInvalid) {
				id := event.ID
				result.BrokenAt = &id
				return result, nil
			}
			return nil, err
		}

		result.Checked++
		prev = event
	}

	return result, nil
}

func (u *securityEventUseCase) Get(ctx context.Context, id uuid.UUID) (*auditDomain.SecurityEvent, error) {
	return u.repo.Get(ctx, id)
}

func (u *securityEventUseCase) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*auditDomain.SecurityEvent, error) {
	return u.repo.List(ctx, offset, limit, createdAtFrom, createdAtTo)
}

func (u *securityEventUseCase) RecentCritical(ctx context.Context, limit int) ([]*auditDomain.SecurityEvent, error) {
	severities := []auditDomain.Severity{auditDomain.SeverityHigh, auditDomain.SeverityCritical}
	return u.repo.ListBySeverity(ctx, severities, limit)
}

// Close stops the retry worker. Buffered drafts that were never persisted are
// abandoned; the process is shutting down and has nowhere to put them.
func (u *securityEventUseCase) Close() {
	close(u.done)
	u.wg.Wait()
}

func isGenesis(hash []byte) bool {
	return bytes.Equal(hash, auditDomain.GenesisHash)
}
