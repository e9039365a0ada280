package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aknoru/lacbot-security/internal/app"
	"github.com/aknoru/lacbot-security/internal/config"
)

// RunRevokeExpiredKeys revokes every retiring key version whose rotation
// grace period has elapsed. Intended to run on a schedule (e.g. daily cron).
func RunRevokeExpiredKeys(ctx context.Context) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("revoking expired key versions")

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get key store use case from container
	keyStore, err := container.KeyStoreUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	if err := keyStore.Load(ctx); err != nil {
		return fmt.Errorf("failed to load key chain: %w", err)
	}

	revoked, err := keyStore.RevokeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke expired keys: %w", err)
	}

	logger.Info("expired key versions revoked", slog.Int("revoked", revoked))
	return nil
}
