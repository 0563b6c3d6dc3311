package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/postgres"
	"github.com/sagarc03/satchel/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a download log backend.
type Config struct {
	// Type specifies the database type: "sqlite", "postgres" or "none"
	Type string
	// DSN is the data source name (connection string)
	DSN string
	// Table is the name of the downloads table
	Table string
}

// Connect establishes a connection to the configured database backend,
// runs migrations, validates the schema, and returns a DownloadLog.
// The returned cleanup function should be called to close the connection.
//
// Type "none" returns a nil DownloadLog, which turns recording off.
func Connect(ctx context.Context, cfg Config) (satchel.DownloadLog, func(), error) {
	tables := satchel.Tables{Downloads: cfg.Table}

	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN, tables)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN, tables)
	case "none", "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// step is one named stage of bringing a backend up.
type step struct {
	name string
	run  func(context.Context) error
}

// bringUp runs steps in order and calls closeFn if any of them fails.
func bringUp(ctx context.Context, backend string, closeFn func(), steps ...step) error {
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			closeFn()
			return fmt.Errorf("%s %s: %w", s.name, backend, err)
		}
	}
	return nil
}

func connectSQLite(ctx context.Context, dsn string, tables satchel.Tables) (satchel.DownloadLog, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	// one writer at a time; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)
	closeDB := func() { _ = db.Close() }

	err = bringUp(ctx, "sqlite", closeDB,
		step{"ping", db.PingContext},
		step{"migrate", func(ctx context.Context) error { return sqlite.Migrate(ctx, db, tables) }},
		step{"validate", func(ctx context.Context) error { return sqlite.ValidateSchema(ctx, db, tables) }},
	)
	if err != nil {
		return nil, nil, err
	}

	repo, err := sqlite.NewRepo(db, tables)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("sqlite repo: %w", err)
	}

	return repo, closeDB, nil
}

func connectPostgres(ctx context.Context, dsn string, tables satchel.Tables) (satchel.DownloadLog, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	err = bringUp(ctx, "postgres", pool.Close,
		step{"ping", pool.Ping},
		step{"migrate", func(ctx context.Context) error { return postgres.Migrate(ctx, pool, tables) }},
		step{"validate", func(ctx context.Context) error { return postgres.ValidateSchema(ctx, pool, tables) }},
	)
	if err != nil {
		return nil, nil, err
	}

	repo, err := postgres.NewRepo(pool, tables)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres repo: %w", err)
	}

	return repo, pool.Close, nil
}
