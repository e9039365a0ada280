package commands

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ratelimitDomain "github.com/aknoru/lacbot-security/internal/ratelimit/domain"
	ratelimitUseCase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
)

type fakeRateLimiter struct {
	unblocked []string
	err       error
}

func (f *fakeRateLimiter) Load(_ context.Context) error { return nil }

func (f *fakeRateLimiter) Check(_ context.Context, _ ratelimitUseCase.Subject) (ratelimitDomain.Decision, error) {
	return ratelimitDomain.Allow, nil
}

func (f *fakeRateLimiter) TryAcquire(_ string, _ ratelimitDomain.Tier) ratelimitDomain.Decision {
	return ratelimitDomain.Allow
}

func (f *fakeRateLimiter) TryAcquireAt(_ string, _ ratelimitDomain.Tier, _ time.Time) ratelimitDomain.Decision {
	return ratelimitDomain.Allow
}

func (f *fakeRateLimiter) ForceBlock(_ context.Context, _ string, _ time.Duration, _ string) error {
	return nil
}

func (f *fakeRateLimiter) Unblock(_ context.Context, subjectKey string) error {
	if f.err != nil {
		return f.err
	}
	f.unblocked = append(f.unblocked, subjectKey)
	return nil
}

func (f *fakeRateLimiter) ActiveBlocks(_ context.Context) []*ratelimitDomain.Block { return nil }

func (f *fakeRateLimiter) Close() {}

func TestRunUnblockSubject(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("clears the block", func(t *testing.T) {
		limiter := &fakeRateLimiter{}
		err := RunUnblockSubject(ctx, limiter, logger, "ip:203.0.113.7")
		require.NoError(t, err)
		require.Equal(t, []string{"ip:203.0.113.7"}, limiter.unblocked)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		limiter := &fakeRateLimiter{}
		err := RunUnblockSubject(ctx, limiter, logger, "  principal:42  ")
		require.NoError(t, err)
		require.Equal(t, []string{"principal:42"}, limiter.unblocked)
	})

	t.Run("blank subject key", func(t *testing.T) {
		limiter := &fakeRateLimiter{}
		err := RunUnblockSubject(ctx, limiter, logger, "   ")
		require.Error(t, err)
		require.Empty(t, limiter.unblocked)
	})

	t.Run("unknown block", func(t *testing.T) {
		limiter := &fakeRateLimiter{err: ratelimitDomain.ErrBlockNotFound}
		err := RunUnblockSubject(ctx, limiter, logger, "ip:203.0.113.7")
		require.Error(t, err)
		require.ErrorIs(t, err, ratelimitDomain.ErrBlockNotFound)
	})
}
