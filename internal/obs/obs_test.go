package obs

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &line), "log output: %q", buf.String())
	return line
}

func TestFrom_TagsScope(t *testing.T) {
	var buf bytes.Buffer
	restore := Capture(&buf)
	defer restore()

	ctx := WithScope(context.Background(), Scope{CallID: "call-1", Test: "TestAgentList"})
	ctx = WithScope(ctx, Scope{Rule: "rule-9"})
	From(ctx).Debug("mock_dispatch")

	line := lastLine(t, &buf)
	assert.Equal(t, "call-1", line["call_id"])
	assert.Equal(t, "TestAgentList", line["test"])
	assert.Equal(t, "rule-9", line["rule"])
	assert.True(t, strings.HasSuffix(line["time"].(string), "Z"), "time not UTC: %v", line["time"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestTagCalls_ReusesClientID(t *testing.T) {
	var seen string
	h := TagCalls(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ScopeOf(r.Context()).CallID
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/", nil)
	req.Header.Set(CallIDHeader, "call-from-client")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "call-from-client", seen)
	assert.Equal(t, "call-from-client", rec.Header().Get(CallIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents/", nil))
	assert.True(t, strings.HasPrefix(seen, "call-"))
	assert.NotEqual(t, "call-from-client", seen)
	assert.Equal(t, seen, rec.Header().Get(CallIDHeader))
}

func TestAccessLog_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	restore := Capture(&buf)
	defer restore()

	h := TagCalls(AccessLog("mockserver", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unmatched"}`))
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/todos/1/?x=1", nil))

	line := lastLine(t, &buf)
	assert.Equal(t, "http_access", line["msg"])
	assert.Equal(t, "mockserver", line["pkg"])
	assert.Equal(t, "/api/todos/1/", line["path"])
	assert.Equal(t, "x=1", line["query"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
	assert.EqualValues(t, len(`{"error":"unmatched"}`), line["resp_bytes"])
	assert.NotEmpty(t, line["call_id"])
}
