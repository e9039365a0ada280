package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aknoru/lacbot-security/internal/app"
	"github.com/aknoru/lacbot-security/internal/config"
)

// RunGenerateKey creates the first key version for a kind. Returns an error
// if an active version already exists; rotate instead.
//
// Requirements: MASTER_KEYS and ACTIVE_MASTER_KEY_ID must be set, or a KMS
// key URI must be configured.
func RunGenerateKey(ctx context.Context, kindStr string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("generating key", slog.String("kind", kindStr))

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

	key, err := keyStore.Generate(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	logger.Info("key generated successfully",
		slog.String("kind", string(key.Kind)),
		slog.Uint64("version", uint64(key.Version)),
	)

	return nil
}
