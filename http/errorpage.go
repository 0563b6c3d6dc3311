package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/sagarc03/satchel"
)

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head><meta charset="utf-8"><title>{{.Status}} {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Hint}}<p>{{.Hint}}</p>
{{end}}{{if .Detail}}<p>{{.Detail}}</p>
{{end}}{{if .Back}}<p><a href="javascript:history.back()">{{.Back}}</a></p>
{{end}}<hr><center>satchel</center>
</body>
</html>
`))

type errorPage struct {
	Lang   string
	Status int
	Title  string
	Hint   string
	Detail string
	Back   string
}

func writeErrorPage(w http.ResponseWriter, code int, page errorPage) {
	page.Status = code
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := errorPageTemplate.Execute(w, page); err != nil {
		slog.Error("failed to render error page", "err", err)
	}
}

// writeConflict renders the 409 page for a disabled archive feature or an
// oversized selection.
func writeConflict(w http.ResponseWriter, r *http.Request, err error) {
	p, tag := printerFor(r)
	page := errorPage{Lang: tag.String(), Back: p.Sprintf(msgBackToFiles)}

	var quotaErr *satchel.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		page.Title = p.Sprintf(msgTooLarge)
		page.Hint = p.Sprintf(msgTooLargeHint)
		page.Detail = p.Sprintf(msgTooLargeDetail, humanize.IBytes(uint64(quotaErr.Total)), humanize.IBytes(uint64(quotaErr.Limit)))
	case errors.Is(err, satchel.ErrQuotaExceeded):
		page.Title = p.Sprintf(msgTooLarge)
		page.Hint = p.Sprintf(msgTooLargeHint)
	default:
		page.Title = p.Sprintf(msgArchiveDisabled)
		page.Hint = p.Sprintf(msgDownloadOneByOne)
	}

	writeErrorPage(w, http.StatusConflict, page)
}

// writeNotFound renders the 404 page naming the requested path.
// detail selects the message variant.
func writeNotFound(w http.ResponseWriter, r *http.Request, requested string, detail string) {
	p, tag := printerFor(r)
	writeErrorPage(w, http.StatusNotFound, errorPage{
		Lang:   tag.String(),
		Title:  p.Sprintf(msgNotFound),
		Detail: p.Sprintf(detail, requested),
	})
}
