package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/config"
)

var zipCmd = &cobra.Command{
	Use:   "zip --dir <base> --files <path>[;<path>...] [-o out.zip]",
	Short: "Build a download locally",
	Long: `Resolve a download the same way the server does and write the result
to a local file. A directory or a ';' separated list produces a ZIP archive,
subject to the configured archive policy; a single file is copied as-is.

Examples:
  # Archive a directory
  satchel zip --dir /projects --files reports -o reports.zip

  # Archive a selection to stdout
  satchel zip --dir /docs --files "a.txt;b/" -o - > selection.zip`,
	Args: cobra.NoArgs,
	RunE: runZip,
}

var (
	zipDir    string
	zipFiles  string
	zipOutput string
)

func init() {
	zipCmd.Flags().StringVar(&zipDir, "dir", "/", "base directory in storage")
	zipCmd.Flags().StringVar(&zipFiles, "files", "", "path, or ';' separated paths, relative to --dir")
	zipCmd.Flags().StringVarP(&zipOutput, "output", "o", "", "output file, '-' for stdout (default: the download name)")
	_ = zipCmd.MarkFlagRequired("files")

	rootCmd.AddCommand(zipCmd)
}

func runZip(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	service, cleanup, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req := satchel.Request{Dir: zipDir, Files: zipFiles}
	tracker := service.NewTracker()

	var payload *satchel.Payload
	defer func() {
		if closeErr := tracker.Close(); closeErr != nil {
			slog.Warn("failed to remove temp files", "err", closeErr)
		}
		service.Record(ctx, req, payload, err)
	}()

	payload, err = service.Prepare(ctx, req, tracker)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	output := zipOutput
	if output == "" {
		output = payload.Name
	}

	n, err := writePayload(ctx, service, payload, cmd.OutOrStdout(), output)
	if err != nil {
		return err
	}

	if output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", output, humanize.IBytes(uint64(n)))
	}
	return nil
}

func writePayload(ctx context.Context, service *satchel.Service, p *satchel.Payload, stdout io.Writer, output string) (int64, error) {
	var w io.Writer = stdout
	if output != "-" {
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return 0, fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if p.Kind == satchel.PayloadFile {
		n, err := service.Send(ctx, p, w)
		if err != nil {
			return n, fmt.Errorf("write output: %w", err)
		}
		return n, nil
	}

	src, err := os.Open(p.LocalPath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w: %w", satchel.ErrArchiveOpenFailed, err)
	}
	defer func() { _ = src.Close() }()

	n, err := io.Copy(w, src)
	if err != nil {
		return n, fmt.Errorf("write output: %w", err)
	}
	return n, nil
}
