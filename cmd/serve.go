package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/courierchat/internal/api"
	"github.com/courierchat/internal/config"
	"github.com/courierchat/internal/database"
	"github.com/courierchat/internal/identity"
	"github.com/courierchat/internal/logging"
	"github.com/courierchat/internal/presence"
	"github.com/courierchat/internal/relay"
	"github.com/courierchat/internal/store"
	"github.com/courierchat/internal/users"
)

// ServeCommand returns the CLI command for starting the relay server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the courier relay server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the server (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

			ctx := context.Background()

			if cfg.Database.AutoMigrate {
				if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
					return err
				}
			}

			pool, err := database.NewPool(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			directory := presence.NewDirectory[*relay.Session](cfg.Presence.DuplicatePolicy)
			verifier := identity.NewVerifier(cfg.Auth.Secret)
			conversations := store.NewPostgres(pool)
			accounts := users.NewRepository(pool)

			engine := relay.NewEngine(directory, verifier, conversations, cfg.Relay.SendTimeout, log.Logger)

			log.Info().
				Int("port", cfg.Server.Port).
				Str("duplicate_policy", cfg.Presence.DuplicatePolicy).
				Msg("starting courier relay")

			server := api.NewServer(cfg, engine, conversations, accounts)
			return server.Start()
		},
	}
}
