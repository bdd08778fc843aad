// Package obs owns the JSON logger of the mock backend and the per-call
// scope (call ID, test, rule) that log lines are tagged with.
package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scope identifies the mocked call a log line belongs to.
type Scope struct {
	CallID string
	Test   string
	Rule   string
}

type scopeKey struct{}

var (
	mu     sync.RWMutex
	root   *slog.Logger
	level  = new(slog.LevelVar)
	output io.Writer = os.Stderr
)

// Init installs the JSON logger as the slog default. Later calls are no-ops.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		install(output)
	}
}

func install(w io.Writer) {
	output = w
	root = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: utcTime,
	}))
	slog.SetDefault(root)
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

func SetLevel(l slog.Level) { level.Set(l) }

// ParseLevel reads a level name as slog spells it ("debug", "WARN", "error").
// "warning" is accepted too; anything unknown is info.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Capture sends every log line to w at debug level until the returned func
// runs.
func Capture(w io.Writer) (restore func()) {
	mu.Lock()
	prevOut, prevLevel, hadRoot := output, level.Level(), root != nil
	install(w)
	level.Set(slog.LevelDebug)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		level.Set(prevLevel)
		install(prevOut)
		if !hadRoot {
			root = nil
		}
	}
}

func logger() *slog.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l == nil {
		Init()
		mu.RLock()
		l = root
		mu.RUnlock()
	}
	return l
}

// Pkg returns a logger tagged with pkg.
func Pkg(pkg string) *slog.Logger {
	return logger().With("pkg", pkg)
}

// From returns a logger tagged with the Scope carried by ctx.
func From(ctx context.Context) *slog.Logger {
	s := ScopeOf(ctx)
	var attrs []any
	if s.CallID != "" {
		attrs = append(attrs, "call_id", s.CallID)
	}
	if s.Test != "" {
		attrs = append(attrs, "test", s.Test)
	}
	if s.Rule != "" {
		attrs = append(attrs, "rule", s.Rule)
	}
	if attrs == nil {
		return logger()
	}
	return logger().With(attrs...)
}

// WithScope layers the non-empty fields of s over the scope already in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	merged := ScopeOf(ctx)
	if s.CallID != "" {
		merged.CallID = s.CallID
	}
	if s.Test != "" {
		merged.Test = s.Test
	}
	if s.Rule != "" {
		merged.Rule = s.Rule
	}
	return context.WithValue(ctx, scopeKey{}, merged)
}

func ScopeOf(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// NewCallID returns an ID for a call that arrived without one.
func NewCallID() string {
	return "call-" + uuid.NewString()
}
