package mockroute

import (
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/todo-e2e/internal/errs"
)

var (
	// ErrUnmatchedRoute means no rule matched and pass-through is off.
	ErrUnmatchedRoute = errors.New("mockroute: unmatched route")
	// ErrHandlerFault means a rule handler returned an error or panicked.
	ErrHandlerFault = errors.New("mockroute: handler fault")
	// ErrMalformedResponse means a handler produced an unusable ResponseSpec.
	ErrMalformedResponse = errors.New("mockroute: malformed response spec")
	// ErrRouterClosed is returned for dispatches after Close, including
	// delayed responses still pending when Close ran.
	ErrRouterClosed = errors.New("mockroute: router closed")
	// ErrFallThrough may be returned by a handler to hand the request to the
	// next matching rule.
	ErrFallThrough = errors.New("mockroute: fall through")
)

// Failure is one recorded dispatch failure.
type Failure struct {
	Method string
	URL    string
	Rule   string
	Err    error
	At     time.Time
}

func (f Failure) String() string {
	if f.Rule == "" {
		return fmt.Sprintf("%s %s: %v", f.Method, f.URL, f.Err)
	}
	return fmt.Sprintf("%s %s (rule %s): %v", f.Method, f.URL, f.Rule, f.Err)
}

func unmatchedError(req *Request) error {
	return errs.Wrapf(errs.Unmatched, ErrUnmatchedRoute,
		"unmatched route: %s %s (no rule registered and pass-through disabled)", req.Method, req.URL)
}

func handlerFaultError(req *Request, rule *Rule, cause error) error {
	return errs.Wrapf(errs.HandlerFault, fmt.Errorf("%w: %w", ErrHandlerFault, cause),
		"handler fault: %s %s (rule %s): %v", req.Method, req.URL, rule.label(), cause)
}

func malformedError(req *Request, rule *Rule, cause error) error {
	return errs.Wrapf(errs.Malformed, fmt.Errorf("%w: %w", ErrMalformedResponse, cause),
		"malformed response: %s %s (rule %s): %v", req.Method, req.URL, rule.label(), cause)
}

func closedError(req *Request) error {
	return errs.Wrapf(errs.Aborted, ErrRouterClosed, "router closed: %s %s", req.Method, req.URL)
}

func canceledError(req *Request, cause error) error {
	return errs.Wrapf(errs.Aborted, cause, "dispatch canceled: %s %s", req.Method, req.URL)
}
