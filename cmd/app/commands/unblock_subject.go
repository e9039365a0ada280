package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ratelimitUseCase "github.com/aknoru/lacbot-security/internal/ratelimit/usecase"
)

// RunUnblockSubject clears a subject's rate limit block and resets its
// escalation cycles. The subject key is the value recorded on the block, e.g.
// "principal:<uuid>" or "ip:<address>".
func RunUnblockSubject(
	ctx context.Context,
	rateLimiter ratelimitUseCase.RateLimiterUseCase,
	logger *slog.Logger,
	subjectKey string,
) error {
	subjectKey = strings.TrimSpace(subjectKey)
	if subjectKey == "" {
		return fmt.Errorf("subject key must not be blank")
	}

	if err := rateLimiter.Unblock(ctx, subjectKey); err != nil {
		return fmt.Errorf("failed to unblock subject: %w", err)
	}

	logger.Info("subject unblocked", slog.String("subject_key", subjectKey))
	return nil
}
