package obs

import (
	"net/http"
	"strings"
	"time"
)

// CallIDHeader carries a call ID in both directions. A client that sends one
// sees it again in the response and in the router's call log.
const CallIDHeader = "X-Request-Id"

// statusWriter remembers what the wrapped handler wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

// Flush lets reverse-proxied streams through.
func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// TagCalls puts a call ID into each request's Scope, reusing CallIDHeader
// when the client sent one, and echoes it back.
func TagCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CallIDHeader))
		if id == "" {
			id = NewCallID()
		}
		w.Header().Set(CallIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), Scope{CallID: id})))
	})
}

// AccessLog writes one http_access line per request.
func AccessLog(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		From(r.Context()).Info("http_access",
			"pkg", pkg,
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", status,
			"dur_ms", float64(time.Since(start).Microseconds())/1000.0,
			"req_bytes", max(r.ContentLength, 0),
			"resp_bytes", sw.bytes,
		)
	})
}
