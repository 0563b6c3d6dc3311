package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/sagarc03/satchel"
)

// ChunkSize is the size of each write when streaming a built archive.
const ChunkSize = 8 << 10

// Sender streams a single-file payload from storage.
type Sender interface {
	Send(ctx context.Context, p *satchel.Payload, w io.Writer) (int64, error)
}

// Dispatcher writes prepared payloads to clients.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Deliver writes the framing headers for p and, unless headersOnly is set,
// its body. It returns the number of body bytes written.
//
// An archive payload is read from local disk in ChunkSize pieces with a
// flush after each piece, and removed through tracker once streaming stops,
// whether it finished or not. A file payload is streamed by the Sender.
func (d *Dispatcher) Deliver(w http.ResponseWriter, r *http.Request, p *satchel.Payload, tracker *satchel.Tracker, headersOnly bool) (int64, error) {
	var archive *os.File
	if p.Kind == satchel.PayloadArchive {
		defer func() {
			if err := tracker.RemoveArchive(); err != nil {
				slog.Warn("failed to remove archive", "path", p.LocalPath, "err", err)
			}
		}()

		f, err := os.Open(p.LocalPath)
		if err != nil {
			return 0, fmt.Errorf("deliver: %w: %w", satchel.ErrArchiveOpenFailed, err)
		}
		defer func() { _ = f.Close() }()
		archive = f
	}

	writeFraming(w.Header(), p)

	if headersOnly {
		w.WriteHeader(http.StatusOK)
		return 0, nil
	}

	switch p.Kind {
	case satchel.PayloadArchive:
		w.WriteHeader(http.StatusOK)
		return streamChunks(w, archive)
	case satchel.PayloadFile:
		w.WriteHeader(http.StatusOK)
		n, err := d.sender.Send(r.Context(), p, w)
		if err != nil {
			return n, fmt.Errorf("deliver %s: %w", p.Name, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("deliver: %w: unknown payload kind %d", satchel.ErrInvalidInput, p.Kind)
	}
}

func writeFraming(h http.Header, p *satchel.Payload) {
	h.Set("Content-Type", p.ContentType)
	h.Set("Content-Disposition", contentDisposition(p.Name))
	h.Set("Content-Transfer-Encoding", "binary")
	h.Set("Content-Length", strconv.FormatInt(p.Size, 10))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	// archives are already compressed containers
	h.Del("Content-Encoding")
}

func contentDisposition(name string) string {
	if isPlainASCII(name) {
		return `attachment; filename="` + name + `"`
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func isPlainASCII(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

func streamChunks(w http.ResponseWriter, f io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, ChunkSize)
	var written int64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, fmt.Errorf("stream archive: %w", writeErr)
			}
			if flushErr := rc.Flush(); flushErr != nil && !errors.Is(flushErr, http.ErrNotSupported) {
				return written, fmt.Errorf("stream archive: %w", flushErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("stream archive: %w", readErr)
		}
	}
}
