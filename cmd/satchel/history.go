package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/config"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the download log",
	Long: `Print recorded downloads, newest first, as YAML.

Use the printed next_cursor with --cursor to fetch the following page.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyDirPrefix string
	historyLimit     int
	historyCursor    string
)

func init() {
	historyCmd.Flags().StringVar(&historyDirPrefix, "dir-prefix", "", "only show downloads whose base directory starts with this prefix")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of records")
	historyCmd.Flags().StringVar(&historyCursor, "cursor", "", "cursor from a previous page")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Database.Type == "none" {
		return errors.New("download log is disabled (database.type is none)")
	}

	if historyLimit < 1 || historyLimit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000, got %d", historyLimit)
	}

	ctx := cmd.Context()

	downloadLog, cleanup, err := openDownloadLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := downloadLog.List(ctx, satchel.ListQuery{
		DirPrefix: historyDirPrefix,
		Limit:     historyLimit,
		Cursor:    historyCursor,
	})
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return enc.Close()
}
