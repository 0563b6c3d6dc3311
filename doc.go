// Package satchel assembles and delivers file downloads on demand from a
// storage tree.
//
// A download request names a base directory and one or more entries inside
// it. A single regular file is streamed as-is; a directory or a list of
// entries is packed into a freshly built ZIP archive first. Archive requests
// are checked against an aggregate size ceiling before any archive work
// starts, and every temporary file created while serving a request is
// removed when the request is done, whatever the outcome.
//
// # Key Components
//
//   - Selection: typed request shape (single path, directory, or list)
//   - Guard: size policy check run before an archive is built
//   - Builder: recursive ZIP assembly mirroring the storage tree
//   - Tracker: request-scoped registry of temporary files
//   - Service: glues the above together behind Prepare
//   - Tree: interface for storage backends (filesystem, S3)
//   - DownloadLog: interface for the download audit log (SQLite, PostgreSQL)
//
// # Example Usage
//
//	svc, err := satchel.NewService(tree, nil, satchel.ServiceConfig{
//	    Policy: satchel.ArchivePolicy{Enabled: true, MaxInputSize: satchel.DefaultMaxInputSize},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tracker := svc.NewTracker()
//	defer func() { _ = tracker.Close() }()
//
//	payload, err := svc.Prepare(ctx, satchel.Request{Dir: "docs", Files: "a.txt;b/"}, tracker)
//
// See the http package for the HTTP delivery layer and the filesystem and
// s3 packages for storage backends.
package satchel
