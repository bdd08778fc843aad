package mockroute

import (
	"net/http"
	"net/http/httputil"

	"github.com/kuitang/todo-e2e/internal/errs"
)

// RoundTrip makes Router an http.RoundTripper, so an *http.Client can talk
// to the mock backend directly. Dispatch errors surface as transport errors;
// pass-through requests go to Options.Next as a copy, leaving hreq as the
// caller built it apart from its consumed body.
func (r *Router) RoundTrip(hreq *http.Request) (*http.Response, error) {
	req, err := FromHTTP(hreq)
	if err != nil {
		return nil, err
	}
	res, err := r.Dispatch(hreq.Context(), req)
	if err != nil {
		return nil, err
	}
	if res.PassThrough {
		next := r.opts.Next
		if next == nil {
			next = http.DefaultTransport
		}
		return next.RoundTrip(req.Forward(hreq))
	}
	return res.Response.HTTPResponse(hreq), nil
}

// ServeHTTP serves the mock backend over a real listener. Dispatch errors
// become an errs.Body with a status derived from the error code.
func (r *Router) ServeHTTP(w http.ResponseWriter, hreq *http.Request) {
	req, err := FromHTTP(hreq)
	if err != nil {
		errs.Write(w, errs.Wrap(errs.Malformed, "unreadable request body", err))
		return
	}
	res, err := r.Dispatch(hreq.Context(), req)
	if err != nil {
		errs.Write(w, err)
		return
	}
	if res.PassThrough {
		proxy := r.upstreamProxy()
		if proxy == nil {
			errs.Write(w, errs.Newf(errs.NoUpstream,
				"pass-through without upstream: %s %s", req.Method, req.URL))
			return
		}
		proxy.ServeHTTP(w, req.Forward(hreq))
		return
	}
	res.Response.ServeTo(w)
}

func (r *Router) upstreamProxy() *httputil.ReverseProxy {
	r.proxyOnce.Do(func() {
		if r.opts.Upstream == nil {
			return
		}
		target := r.opts.Upstream
		r.proxy = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
			},
			Transport: r.opts.Next,
		}
	})
	return r.proxy
}
