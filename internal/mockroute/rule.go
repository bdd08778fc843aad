package mockroute

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Rule is a registered (pattern, method filter, handler) triple.
type Rule struct {
	ID      string
	Name    string
	Pattern string

	methods map[string]struct{}
	handler Handler
	pattern pattern
}

// RuleOption configures a Rule at registration.
type RuleOption func(*Rule)

// Methods restricts a rule to the given HTTP methods.
func Methods(methods ...string) RuleOption {
	return func(r *Rule) {
		for _, m := range methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if r.methods == nil {
				r.methods = make(map[string]struct{}, len(methods))
			}
			r.methods[m] = struct{}{}
		}
	}
}

// Named labels a rule in errors, logs and call records.
func Named(name string) RuleOption {
	return func(r *Rule) {
		r.Name = strings.TrimSpace(name)
	}
}

func newRule(raw string, h Handler, base *url.URL, opts []RuleOption) *Rule {
	r := &Rule{
		ID:      uuid.NewString(),
		Pattern: raw,
		handler: h,
		pattern: compilePattern(raw, base),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MethodFilter returns the sorted method filter, or nil when the rule
// accepts every method.
func (r *Rule) MethodFilter() []string {
	if len(r.methods) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.methods))
	for m := range r.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (r *Rule) allows(method string) bool {
	if len(r.methods) == 0 {
		return true
	}
	_, ok := r.methods[method]
	return ok
}

func (r *Rule) label() string {
	if r.Name != "" {
		return fmt.Sprintf("%q", r.Name)
	}
	if methods := r.MethodFilter(); len(methods) > 0 {
		return fmt.Sprintf("%s %s", strings.Join(methods, ","), r.Pattern)
	}
	return r.Pattern
}

// invoke runs the handler, turning a panic into an error.
func (r *Rule) invoke(req *Request) (spec ResponseSpec, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if r.handler == nil {
		return ResponseSpec{}, fmt.Errorf("rule has no handler")
	}
	return r.handler(req)
}
