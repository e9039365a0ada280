package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/aknoru/lacbot-security/cmd/app/commands"
	"github.com/aknoru/lacbot-security/internal/app"
	"github.com/aknoru/lacbot-security/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunMigrations()
			},
		},
		{
			Name:  "verify-events",
			Usage: "Verify the hash chain of security events between two event IDs",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "from",
					Required: true,
					Usage:    "First event ID of the range (UUID)",
				},
				&cli.StringFlag{
					Name:     "to",
					Required: true,
					Usage:    "Last event ID of the range (UUID)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				// Signature checks derive MAC keys from the stored symmetric keys
				keyStore, err := container.KeyStoreUseCase()
				if err != nil {
					return err
				}
				if err := keyStore.Load(ctx); err != nil {
					return err
				}

				eventUseCase, err := container.SecurityEventUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifyEvents(
					ctx,
					eventUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("from"),
					cmd.String("to"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "export-events",
			Usage: "Export security events as JSON lines for archival",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "from",
					Usage: "Earliest creation time to export (RFC 3339)",
				},
				&cli.StringFlag{
					Name:  "to",
					Usage: "Latest creation time to export (RFC 3339)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				eventUseCase, err := container.SecurityEventUseCase()
				if err != nil {
					return err
				}

				return commands.RunExportEvents(
					ctx,
					eventUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("from"),
					cmd.String("to"),
				)
			},
		},
		{
			Name:  "status",
			Usage: "Show the current security posture",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rateLimiter, err := container.RateLimiterUseCase()
				if err != nil {
					return err
				}
				if err := rateLimiter.Load(ctx); err != nil {
					return err
				}

				gateway, err := container.SecurityGatewayUseCase()
				if err != nil {
					return err
				}

				return commands.RunStatus(
					ctx,
					gateway,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "unblock-subject",
			Usage: "Clear a subject's rate limit block and reset its escalation cycles",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "subject",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Subject key recorded on the block (e.g. principal:<uuid> or ip:<address>)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				rateLimiter, err := container.RateLimiterUseCase()
				if err != nil {
					return err
				}
				if err := rateLimiter.Load(ctx); err != nil {
					return err
				}

				return commands.RunUnblockSubject(
					ctx,
					rateLimiter,
					container.Logger(),
					cmd.String("subject"),
				)
			},
		},
	}
}
