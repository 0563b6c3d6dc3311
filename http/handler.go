package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/metrics"
)

type Service interface {
	NewTracker() *satchel.Tracker
	Prepare(ctx context.Context, req satchel.Request, tracker *satchel.Tracker) (*satchel.Payload, error)
	Send(ctx context.Context, p *satchel.Payload, w io.Writer) (int64, error)
	Record(ctx context.Context, req satchel.Request, p *satchel.Payload, err error)
	History(ctx context.Context, q satchel.ListQuery) (satchel.ListResult, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	CORS CORSConfig
	// WriteTimeout is restored on the connection once an archive is built.
	// Zero leaves the deadline cleared.
	WriteTimeout time.Duration
	Metrics      bool
}

// Handler provides HTTP handlers for downloads.
type Handler struct {
	config     HandlerConfig
	service    Service
	dispatcher *Dispatcher
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:     *config,
		service:    service,
		dispatcher: NewDispatcher(service),
	}
}

// Router returns an http.Handler with all routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)

	if h.config.Metrics {
		r.Use(metrics.Middleware)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/healthz", h.handleHealth)
	r.Get("/download", h.handleDownload)
	r.Head("/download", h.handleDownload)
	r.Get("/history", h.handleHistory)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := satchel.Request{
		Dir:   query.Get("dir"),
		Files: query.Get("files"),
	}
	headersOnly := r.Method == http.MethodHead || isTruthy(query.Get("headers_only"))

	tracker := h.service.NewTracker()

	var (
		payload *satchel.Payload
		sent    int64
		err     error
	)

	defer func() {
		removed, sweepErr := tracker.Sweep()
		metrics.RecordTempFilesSwept(removed)
		if sweepErr != nil {
			slog.Warn("failed to sweep temp files", "err", sweepErr)
		}

		kind := ""
		if payload != nil {
			kind = payload.Kind.String()
		}
		metrics.RecordDownload(kind, string(satchel.OutcomeFromError(err)), sent)
		h.service.Record(r.Context(), req, payload, err)
	}()

	payload, err = h.prepare(w, r, req, tracker)
	if err != nil {
		writeDownloadError(w, r, req, err)
		return
	}

	sent, err = h.dispatcher.Deliver(w, r, payload, tracker, headersOnly)
	if err != nil {
		if sent == 0 && errors.Is(err, satchel.ErrArchiveOpenFailed) {
			writeDownloadError(w, r, req, err)
			return
		}
		slog.Warn("download interrupted", "dir", req.Dir, "files", req.Files, "sent", sent, "err", err)
	}
}

// prepare runs the service with the connection write deadline cleared.
// Archive construction is bounded by the size ceiling, not by time.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, req satchel.Request, tracker *satchel.Tracker) (*satchel.Payload, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Debug("failed to clear write deadline", "err", err)
	}

	defer func() {
		if h.config.WriteTimeout <= 0 {
			return
		}
		if err := rc.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			slog.Debug("failed to restore write deadline", "err", err)
		}
	}()

	return h.service.Prepare(r.Context(), req, tracker)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	dirPrefix := r.URL.Query().Get("dir_prefix")
	limitStr := r.URL.Query().Get("limit")
	cursor := r.URL.Query().Get("cursor")

	limit := 100
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = max(1, min(1000, parsed))
		}
	}

	result, err := h.service.History(r.Context(), satchel.ListQuery{
		DirPrefix: dirPrefix,
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func isTruthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
