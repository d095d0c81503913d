package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MilekOfficial/SwapSnap/config"
	"github.com/MilekOfficial/SwapSnap/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "swapsnap",
	Short:        "A photo rotation service with emoji reactions",
	SilenceUsage: true,
}

func Execute() {
	slog.SetDefault(logging.CreateLogger())
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the configured logger as the
// default one.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to get env-file: %w", err)
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Debug("Loaded config",
		"addr", cfg.Addr,
		"db_driver", cfg.DBDriver,
		"ledger_driver", cfg.LedgerDriver,
		"redis", cfg.RedisAddr != "",
		"upload_dir", cfg.UploadDir,
	)
	return cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
}
