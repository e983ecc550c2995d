package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/courierchat/internal/config"
	"github.com/courierchat/internal/database"
)

// MigrateCommand returns the CLI command for applying schema migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database url is required")
			}

			if err := database.Migrate(context.Background(), cfg.Database.URL); err != nil {
				return err
			}

			fmt.Println("Migrations applied")
			return nil
		},
	}
}
