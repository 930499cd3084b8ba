package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vintera/labelforge/db"
	"github.com/vintera/labelforge/internal/config"
	"github.com/vintera/labelforge/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return db.Migrate(cfg.PostgresURL(), log.New(log.Config{Level: level}))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
