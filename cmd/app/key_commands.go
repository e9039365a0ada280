package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/aknoru/lacbot-security/cmd/app/commands"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new master key for key wrapping",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateMasterKey(cmd.String("id"))
			},
		},
		{
			Name:  "generate-key",
			Usage: "Create the first key version for a kind",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "kind",
					Aliases: []string{"k"},
					Value:   "symmetric",
					Usage:   "Key kind to generate (symmetric or signing)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunGenerateKey(ctx, cmd.String("kind"))
			},
		},
		{
			Name:  "rotate-key",
			Usage: "Rotate a key kind to a new active version",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "kind",
					Aliases: []string{"k"},
					Value:   "symmetric",
					Usage:   "Key kind to rotate (symmetric or signing)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRotateKey(ctx, cmd.String("kind"))
			},
		},
		{
			Name:  "revoke-expired-keys",
			Usage: "Revoke retiring key versions whose grace period has elapsed",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunRevokeExpiredKeys(ctx)
			},
		},
	}
}
