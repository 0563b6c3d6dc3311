package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/sagarc03/satchel/config"
)

// setupLogging installs the default slog logger. Logs go to stderr so that
// `satchel zip -o -` can write the archive to stdout.
func setupLogging(env string, lc config.LogConfig) {
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, env, lc)))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())
}

func newLogHandler(w *os.File, env string, lc config.LogConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}

	format := lc.Format
	if format == "" {
		format = "text"
		if env == "prod" || env == "production" {
			format = "json"
		}
	}

	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  level == slog.LevelDebug,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	})
}
