package mockroute

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// Request is the read-only view of an intercepted request handed to rule
// handlers. Handlers must not modify it.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest builds a Request. rawURL may be absolute or path-relative.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url %q: %w", rawURL, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: http.Header{},
		Body:   body,
	}, nil
}

// FromHTTP snapshots an *http.Request. The body is consumed and closed; r
// itself is not modified. Use Forward to send a copy on.
func FromHTTP(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	u := *r.URL
	return &Request{
		Method: strings.ToUpper(r.Method),
		URL:    &u,
		Header: r.Header.Clone(),
		Body:   body,
	}, nil
}

// Forward returns a copy of orig for pass-through, carrying the body that
// FromHTTP consumed. Headers, cookies included, are copied unchanged.
func (r *Request) Forward(orig *http.Request) *http.Request {
	out := orig.Clone(orig.Context())
	if r.Body == nil {
		out.Body = http.NoBody
		out.GetBody = nil
		return out
	}
	body := r.Body
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return out
}

// DecodeJSON decodes the request body into v.
func (r *Request) DecodeJSON(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("decode %s %s body: empty body", r.Method, r.URL)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s body: %w", r.Method, r.URL, err)
	}
	return nil
}

// Cookie returns the named cookie sent with the request, if any.
func (r *Request) Cookie(name string) (string, bool) {
	if r.Header == nil {
		return "", false
	}
	for _, c := range (&http.Request{Header: r.Header}).Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (r *Request) String() string {
	return r.Method + " " + r.URL.String()
}
