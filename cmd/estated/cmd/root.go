package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/store"
)

var (
	cfg    estateAuth.Config
	logger *zap.Logger

	dsnFlag string
)

var rootCmd = &cobra.Command{
	Use:   "estated",
	Short: "Real estate listings API with cookie sessions",
	Long: `estated serves the listings, agent directory and account API. Configuration is read
from ESTATE_* environment variables; flags override the most common ones.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = estateAuth.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if dsnFlag != "" {
			cfg.Database.DSN = dsnFlag
		}

		logger, err = cfg.Log.NewLogger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "db", "", "SQLite DSN (env: ESTATE_DB_DSN)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(usersCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB(cmd *cobra.Command) (*bun.DB, error) {
	db, err := store.Open(cmd.Context(), cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
