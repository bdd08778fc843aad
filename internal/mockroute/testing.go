package mockroute

import (
	"context"
	"testing"
	"time"
)

const closeTimeout = 5 * time.Second

// NewForTest returns a Router scoped to t. At cleanup the router is closed
// and every recorded failure fails the test, so an unmatched route or a
// broken handler is never silently swallowed by the page under test.
//
// Cleanups run last-registered first: create the router before the browser
// context that routes through it, so the context closes first.
func NewForTest(t testing.TB, opts ...Option) *Router {
	t.Helper()
	r := New(append([]Option{WithTestName(t.Name())}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := r.Close(ctx); err != nil {
			t.Errorf("close mock router: %v", err)
		}
		for _, f := range r.Failures() {
			t.Errorf("mock backend: %s", f)
		}
	})
	return r
}
