package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/config"
	"github.com/sagarc03/satchel/database"
	"github.com/sagarc03/satchel/filesystem"
	"github.com/sagarc03/satchel/s3"
)

// openTree builds the storage tree selected by cfg.
func openTree(ctx context.Context, cfg *config.Config) (satchel.Tree, error) {
	switch cfg.Storage.Type {
	case "s3":
		s3cfg := cfg.Storage.S3
		tree, err := s3.New(ctx, s3.Config{
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			UseSSL:    s3cfg.UseSSL,
			Prefix:    s3cfg.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 tree: %w", err)
		}
		slog.Info("serving from s3", "endpoint", s3cfg.Endpoint, "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix)
		return tree, nil
	default:
		tree, err := filesystem.NewOSTree(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open filesystem tree: %w", err)
		}
		slog.Info("serving from filesystem", "path", cfg.Storage.Path)
		return tree, nil
	}
}

// openDownloadLog connects the configured download log. The returned log
// is nil when recording is turned off.
func openDownloadLog(ctx context.Context, cfg *config.Config) (satchel.DownloadLog, func(), error) {
	downloadLog, cleanup, err := database.Connect(ctx, database.Config{
		Type:  cfg.Database.Type,
		DSN:   cfg.Database.DSN,
		Table: cfg.Database.Tables.Downloads,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if downloadLog != nil {
		slog.Info("connected to database", "type", cfg.Database.Type)
	}
	return downloadLog, cleanup, nil
}

// newService wires a Service from cfg. The cleanup function closes the
// download log and the storage tree.
func newService(ctx context.Context, cfg *config.Config) (*satchel.Service, func(), error) {
	tree, err := openTree(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	closeTree := func() {
		if c, ok := tree.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close storage tree", "err", err)
			}
		}
	}

	downloadLog, closeLog, err := openDownloadLog(ctx, cfg)
	if err != nil {
		closeTree()
		return nil, nil, err
	}

	cleanup := func() {
		closeLog()
		closeTree()
	}

	service, err := satchel.NewService(tree, downloadLog, satchel.ServiceConfig{
		Policy:  cfg.Archive.Policy(),
		Method:  satchel.ArchiveMethod(cfg.Archive.Method),
		TempDir: cfg.Archive.TempDir,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create service: %w", err)
	}

	return service, cleanup, nil
}
