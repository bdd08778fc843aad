// Package pwmock routes a Playwright page's or browser context's network
// traffic through a mockroute.Router.
package pwmock

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/todo-e2e/internal/mockroute"
	"github.com/kuitang/todo-e2e/internal/obs"
)

// DefaultScope is the browser-side route pattern installed when none is
// given. Static assets stay on the real frontend server.
const DefaultScope = "**/api/**"

// abortReason is the Playwright error code used when a dispatch fails. The
// page sees a network error; the router records the failure for the test.
const abortReason = "failed"

// Options configure an installation.
type Options struct {
	// Scope is the Playwright URL glob whose requests reach the router.
	Scope string
}

// Option mutates Options.
type Option func(*Options)

// WithScope narrows or widens which requests reach the router.
func WithScope(scope string) Option {
	return func(o *Options) { o.Scope = scope }
}

func resolve(opts []Option) Options {
	o := Options{Scope: DefaultScope}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.Scope) == "" {
		o.Scope = DefaultScope
	}
	return o
}

// InstallOnPage routes page's requests within scope through r.
func InstallOnPage(page playwright.Page, r *mockroute.Router, opts ...Option) error {
	o := resolve(opts)
	h := handler(r)
	return page.Route(o.Scope, func(route playwright.Route) { h(route) })
}

// InstallOnContext routes every page of bctx through r, including popups.
func InstallOnContext(bctx playwright.BrowserContext, r *mockroute.Router, opts ...Option) error {
	o := resolve(opts)
	h := handler(r)
	return bctx.Route(o.Scope, func(route playwright.Route) { h(route) })
}

func handler(r *mockroute.Router) func(playwright.Route) {
	logger := obs.Pkg("pwmock")
	return func(route playwright.Route) {
		preq := route.Request()
		req, err := toRequest(preq)
		if err != nil {
			logger.Warn("pwmock_request_unreadable", "url", preq.URL(), "error", err)
			_ = route.Abort(abortReason)
			return
		}

		res, err := r.Dispatch(context.Background(), req)
		switch {
		case errors.Is(err, mockroute.ErrRouterClosed):
			logger.Debug("pwmock_router_closed", "method", req.Method, "url", req.URL.String())
			_ = route.Abort(abortReason)
		case err != nil:
			_ = route.Abort(abortReason)
		case res.PassThrough:
			if cerr := route.Continue(); cerr != nil {
				logger.Warn("pwmock_continue_failed", "url", req.URL.String(), "error", cerr)
			}
		default:
			if ferr := route.Fulfill(fulfillOptions(res.Response)); ferr != nil {
				logger.Warn("pwmock_fulfill_failed", "url", req.URL.String(), "error", ferr)
			}
		}
	}
}

func toRequest(preq playwright.Request) (*mockroute.Request, error) {
	body, err := preq.PostDataBuffer()
	if err != nil {
		body = nil
	}
	headers, err := preq.AllHeaders()
	if err != nil {
		headers = preq.Headers()
	}
	return newRequest(preq.Method(), preq.URL(), headers, body)
}

// newRequest converts the plain values Playwright exposes into a
// mockroute.Request.
func newRequest(method, rawURL string, headers map[string]string, body []byte) (*mockroute.Request, error) {
	req, err := mockroute.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// fulfillOptions translates a mockroute.Response for route.Fulfill.
// Repeated header values are joined the way Playwright expects: newlines for
// Set-Cookie, commas otherwise.
func fulfillOptions(resp *mockroute.Response) playwright.RouteFulfillOptions {
	headers := make(map[string]string, len(resp.Header))
	for k, values := range resp.Header {
		sep := ", "
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			sep = "\n"
		}
		headers[k] = strings.Join(values, sep)
	}

	// A []byte body travels base64-encoded; a string would be re-encoded as
	// UTF-8 and corrupt binary payloads.
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	opts := playwright.RouteFulfillOptions{
		Status:  playwright.Int(resp.Status),
		Headers: headers,
		Body:    body,
	}
	if ct := resp.ContentType(); ct != "" {
		opts.ContentType = playwright.String(ct)
	}
	return opts
}

// AddCookie sets a cookie for baseURL on bctx, e.g. the CSRF cookie the
// frontend copies into X-CSRFToken on mutating requests.
func AddCookie(bctx playwright.BrowserContext, baseURL, name, value string) error {
	return bctx.AddCookies([]playwright.OptionalCookie{
		{
			Name:     name,
			Value:    value,
			URL:      playwright.String(baseURL),
			SameSite: playwright.SameSiteAttributeLax,
		},
	})
}
