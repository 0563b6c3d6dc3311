// Package http serves satchel downloads over HTTP.
//
// # Routes
//
//	GET  /download?dir=<base>&files=<path>[;<path>...]   stream a file or a built ZIP archive
//	HEAD /download                                        framing headers only
//	GET  /history?dir_prefix=&limit=&cursor=              download log page (JSON)
//	GET  /healthz                                         liveness check
//	GET  /metrics                                         Prometheus metrics, when enabled
//
// A GET with headers_only=1 behaves like HEAD.
//
// # Responses
//
// Every successful download carries Content-Disposition: attachment, a
// Content-Length and no-cache headers. Archives are read back from local
// disk in ChunkSize pieces with a flush after each piece and removed as soon
// as streaming stops.
//
// Failures map to:
//
//	archive disabled, size ceiling exceeded   409 HTML page, localized
//	archive could not be produced             404 HTML page
//	path does not exist                       404 HTML page naming the path
//	path exists but is unreadable             403, empty body
//	malformed request                         400 JSON
//	anything else                             500 JSON
//
// Error pages are rendered in English or German, picked from Accept-Language.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{WriteTimeout: 30 * time.Second}, service)
//	srv := &nethttp.Server{Addr: ":8080", Handler: handler.Router()}
//
// The write deadline is cleared while an archive is being built and set
// again from WriteTimeout before the body is streamed.
package http
