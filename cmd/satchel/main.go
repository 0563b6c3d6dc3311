package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/satchel/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "satchel",
	Short:   "On-demand ZIP archive downloads over HTTP",
	Long: `Satchel serves files from a storage tree over HTTP. Single files
are streamed as-is; directories and multi-file selections are packed into
a ZIP archive on the fly, subject to a configurable size ceiling.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Env, cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, merged left to right (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "download log database: sqlite, postgres, none (env: SATCHEL_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (env: SATCHEL_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-type", "", "storage tree: filesystem, s3 (env: SATCHEL_STORAGE_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: SATCHEL_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: SATCHEL_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
