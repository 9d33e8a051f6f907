package main

import (
	"github.com/spf13/cobra"
	"github.com/vedran77/campuschat/internal/database"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.log.Sync()

		pool, err := rt.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := database.Migrate(cmd.Context(), pool)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			rt.log.Info("schema up to date")
			return nil
		}
		rt.log.Info("migrations applied", zap.Strings("versions", applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
