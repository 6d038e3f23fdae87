package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/estateAuth/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	Long:  `Applies the schema idempotently. serve does the same on startup unless ESTATE_DB_AUTO_MIGRATE=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("schema up to date")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
}
