// Package cli implements queuectl, the operator command line for the
// dispatch engine.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campus-queue/internal/config"
	"campus-queue/internal/logging"
	"campus-queue/internal/store/mysql"
)

var (
	dsnFlag string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "queuectl",
	Short:         "Operate the campus queue dispatch engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "MySQL DSN (default DB_DSN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd, sweepCmd, queuesCmd, setRoleCmd, blockCmd, createAccountCmd, issueTokenCmd)
}

// loadConfig reads .env and the environment, applying flag overrides.
func loadConfig() (config.Config, error) {
	config.LoadEnv(envFile)
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if dsn := strings.TrimSpace(dsnFlag); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level)
}

func openStore(ctx context.Context, cfg config.Config) (*mysql.Store, error) {
	return mysql.Open(ctx, cfg.DatabaseDSN)
}
