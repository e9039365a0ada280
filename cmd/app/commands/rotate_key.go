package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aknoru/lacbot-security/internal/app"
	"github.com/aknoru/lacbot-security/internal/config"
)

// RunRotateKey atomically creates a new active key version and demotes the
// current one to retiring. Data sealed under the old version stays readable
// until the rotation grace period expires.
//
// Key rotation recommended every 90 days or when suspecting key compromise.
func RunRotateKey(ctx context.Context, kindStr string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("rotating key", slog.String("kind", kindStr))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Parse key kind
	kind, err := parseKeyKind(kindStr)
	if err != nil {
		return err
	}

	// Get key store use case from container
	keyStore, err := container.KeyStoreUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	if err := keyStore.Load(ctx); err != nil {
		return fmt.Errorf("failed to load key chain: %w", err)
	}

	key, err := keyStore.Rotate(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}

	logger.Info("key rotated successfully",
		slog.String("kind", string(key.Kind)),
		slog.Uint64("new_version", uint64(key.Version)),
	)

	return nil
}
