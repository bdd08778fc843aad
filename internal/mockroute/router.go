// Package mockroute simulates a REST backend for browser tests.
//
// A Router holds an ordered table of rules. Dispatch picks one rule per
// request: exact patterns before globs, most recently registered first,
// skipping rules whose method filter excludes the request. The chosen
// handler's ResponseSpec is validated, optionally delayed, and returned.
// Requests nothing matches either pass through or fail with
// ErrUnmatchedRoute.
//
// A Router is built per test case (see NewForTest) and is safe for
// concurrent dispatch.
package mockroute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/todo-e2e/internal/logutil"
	"github.com/kuitang/todo-e2e/internal/obs"
)

const maxLoggedBodyBytes = 2048

// Options configure a Router.
type Options struct {
	// BaseURL resolves patterns and request URLs that start with "/".
	BaseURL string
	// PassThrough forwards unmatched requests instead of failing them.
	PassThrough bool
	// Next is the transport RoundTrip forwards pass-through requests to.
	// Defaults to http.DefaultTransport.
	Next http.RoundTripper
	// Upstream is where ServeHTTP proxies pass-through requests.
	Upstream *url.URL
	// TestName tags log lines and failures.
	TestName string
}

// Option mutates Options.
type Option func(*Options)

// WithBaseURL sets Options.BaseURL.
func WithBaseURL(base string) Option {
	return func(o *Options) { o.BaseURL = base }
}

// WithPassThrough sets Options.PassThrough.
func WithPassThrough(enabled bool) Option {
	return func(o *Options) { o.PassThrough = enabled }
}

// WithTransport sets Options.Next.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.Next = rt }
}

// WithUpstream sets Options.Upstream and enables pass-through.
func WithUpstream(u *url.URL) Option {
	return func(o *Options) {
		o.Upstream = u
		o.PassThrough = u != nil
	}
}

// WithTestName sets Options.TestName.
func WithTestName(name string) Option {
	return func(o *Options) { o.TestName = name }
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Response    *Response
	Rule        *Rule
	PassThrough bool
}

// Call records one dispatch, successful or not.
type Call struct {
	ID          string
	Method      string
	URL         string
	RuleID      string
	Pattern     string
	Status      int
	PassThrough bool
	Err         error
	Started     time.Time
	Duration    time.Duration
}

// Router is a per-test mock backend.
type Router struct {
	opts   Options
	base   *url.URL
	logger *slog.Logger

	mu     sync.RWMutex
	rules  []*Rule
	closed bool
	done   chan struct{}

	inflight sync.WaitGroup

	recMu    sync.Mutex
	calls    []Call
	failures []Failure

	proxyOnce sync.Once
	proxy     *httputil.ReverseProxy
}

// New returns an empty Router. An unparseable BaseURL is ignored and logged.
func New(opts ...Option) *Router {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	r := &Router{
		opts:   o,
		done:   make(chan struct{}),
		logger: obs.Pkg("mockroute"),
	}
	if o.TestName != "" {
		r.logger = r.logger.With("test", o.TestName)
	}
	if base := strings.TrimSpace(o.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || !u.IsAbs() {
			r.logger.Warn("mock_base_url_ignored", "base_url", base, "error", err)
		} else {
			r.base = u
		}
	}
	return r
}

// Register adds a rule. Precedence is resolved at dispatch time, so a later
// rule shadows an earlier one with an equally specific pattern.
func (r *Router) Register(pattern string, h Handler, opts ...RuleOption) *Rule {
	rule := newRule(pattern, h, r.base, opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy-on-write: in-flight dispatches keep the slice they started with.
	next := make([]*Rule, len(r.rules), len(r.rules)+1)
	copy(next, r.rules)
	r.rules = append(next, rule)
	return rule
}

// Reset drops every rule and every recorded call and failure.
func (r *Router) Reset() {
	r.mu.Lock()
	r.rules = nil
	r.mu.Unlock()

	r.recMu.Lock()
	r.calls = nil
	r.failures = nil
	r.recMu.Unlock()
}

// Rules returns the registered rules in registration order.
func (r *Router) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Dispatch matches req against the rule table and produces its response.
func (r *Router) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, closedError(req)
	}
	r.inflight.Add(1)
	rules := r.rules
	r.mu.RUnlock()
	defer r.inflight.Done()

	// Dispatches arriving through ServeHTTP keep the call ID obs.TagCalls
	// assigned.
	callID := obs.ScopeOf(ctx).CallID
	if callID == "" {
		callID = obs.NewCallID()
	}
	ctx = obs.WithScope(ctx, obs.Scope{CallID: callID, Test: r.opts.TestName})
	target := r.resolve(req.URL)

	for _, rule := range candidates(rules, target) {
		if !rule.allows(req.Method) {
			continue
		}

		spec, err := rule.invoke(req)
		if errors.Is(err, ErrFallThrough) {
			continue
		}
		if err != nil {
			return nil, r.fail(ctx, start, callID, req, rule, handlerFaultError(req, rule, err))
		}

		resp, err := spec.build()
		if err != nil {
			return nil, r.fail(ctx, start, callID, req, rule, malformedError(req, rule, err))
		}

		if err := r.wait(ctx, start, spec.Delay, req); err != nil {
			r.record(Call{
				ID: callID, Method: req.Method, URL: req.URL.String(), RuleID: rule.ID,
				Pattern: rule.Pattern, Err: err, Started: start, Duration: time.Since(start),
			})
			return nil, err
		}

		r.record(Call{
			ID: callID, Method: req.Method, URL: req.URL.String(), RuleID: rule.ID,
			Pattern: rule.Pattern, Status: resp.Status, Started: start, Duration: time.Since(start),
		})
		obs.From(obs.WithScope(ctx, obs.Scope{Rule: rule.ID})).Debug(
			"mock_dispatch",
			"method", req.Method,
			"url", req.URL.String(),
			"pattern", rule.Pattern,
			"status", resp.Status,
			"delay_ms", spec.Delay.Milliseconds(),
			"req_headers", logutil.Headers(req.Header),
			"req_body", logutil.Body(req.Header.Get("Content-Type"), req.Body, maxLoggedBodyBytes),
		)
		return &Result{Response: resp, Rule: rule}, nil
	}

	if r.opts.PassThrough {
		r.record(Call{
			ID: callID, Method: req.Method, URL: req.URL.String(), PassThrough: true,
			Started: start, Duration: time.Since(start),
		})
		obs.From(ctx).Debug("mock_passthrough", "method", req.Method, "url", req.URL.String())
		return &Result{PassThrough: true}, nil
	}
	return nil, r.fail(ctx, start, callID, req, nil, unmatchedError(req))
}

// resolve makes a relative request URL absolute when the router has a base.
func (r *Router) resolve(u *url.URL) *url.URL {
	if r.base == nil || u.IsAbs() {
		return u
	}
	return r.base.ResolveReference(u)
}

// candidates orders the rules a URL could be served by: exact matches, then
// glob matches, each most recently registered first.
func candidates(rules []*Rule, u *url.URL) []*Rule {
	var exact, glob []*Rule
	for i := len(rules) - 1; i >= 0; i-- {
		rule := rules[i]
		switch {
		case rule.pattern.matchExact(u):
			exact = append(exact, rule)
		case rule.pattern.matchGlob(u):
			glob = append(glob, rule)
		}
	}
	return append(exact, glob...)
}

// wait holds the response until d has elapsed since start. It never holds a
// lock, so concurrent dispatches proceed during the delay.
func (r *Router) wait(ctx context.Context, start time.Time, d time.Duration, req *Request) error {
	if d <= 0 {
		return nil
	}
	remaining := d - time.Since(start)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		select {
		case <-r.done:
			return closedError(req)
		default:
			return nil
		}
	case <-r.done:
		return closedError(req)
	case <-ctx.Done():
		return canceledError(req, ctx.Err())
	}
}

func (r *Router) fail(ctx context.Context, start time.Time, callID string, req *Request, rule *Rule, err error) error {
	f := Failure{
		Method: req.Method,
		URL:    req.URL.String(),
		Err:    err,
		At:     time.Now(),
	}
	call := Call{
		ID: callID, Method: req.Method, URL: req.URL.String(), Err: err,
		Started: start, Duration: time.Since(start),
	}
	if rule != nil {
		f.Rule = rule.label()
		call.RuleID = rule.ID
		call.Pattern = rule.Pattern
	}

	r.recMu.Lock()
	r.failures = append(r.failures, f)
	r.calls = append(r.calls, call)
	r.recMu.Unlock()

	obs.From(ctx).Warn(
		"mock_dispatch_failed",
		"method", req.Method,
		"url", req.URL.String(),
		"rule", f.Rule,
		"error", err.Error(),
	)
	return err
}

func (r *Router) record(c Call) {
	r.recMu.Lock()
	r.calls = append(r.calls, c)
	r.recMu.Unlock()
}

// Calls returns every recorded dispatch in completion order.
func (r *Router) Calls() []Call {
	r.recMu.Lock()
	defer r.recMu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount counts successful dispatches served by rules registered with
// pattern and, when method is non-empty, made with that method.
func (r *Router) CallCount(method, pattern string) int {
	method = strings.ToUpper(method)
	n := 0
	for _, c := range r.Calls() {
		if c.Err != nil || c.Pattern != pattern {
			continue
		}
		if method != "" && c.Method != method {
			continue
		}
		n++
	}
	return n
}

// Failures returns recorded UnmatchedRoute, HandlerFault and
// MalformedResponseSpec failures. Cancellations and closed-router
// rejections are not failures.
func (r *Router) Failures() []Failure {
	r.recMu.Lock()
	defer r.recMu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Close rejects new dispatches, cancels pending delays and waits for
// in-flight dispatches to return. It is idempotent.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mockroute: waiting for in-flight dispatches: %w", ctx.Err())
	}
}
