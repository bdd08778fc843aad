package mockroute

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ResponseSpec describes the fake response a handler produces.
//
// Body and JSON are mutually exclusive. A nil JSON means "no JSON body";
// use Body: []byte("null") for a literal null.
type ResponseSpec struct {
	Status      int
	Headers     map[string]string
	ContentType string
	Body        []byte
	JSON        any
	// Delay holds the response back, measured from the start of dispatch.
	Delay time.Duration
}

// Response is a validated ResponseSpec with its body serialized.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (s ResponseSpec) build() (*Response, error) {
	if s.Status == 0 {
		return nil, errors.New("status code missing")
	}
	if s.Status < 100 || s.Status > 599 {
		return nil, fmt.Errorf("status code %d outside 100..599", s.Status)
	}
	if s.Delay < 0 {
		return nil, fmt.Errorf("negative delay %s", s.Delay)
	}
	if s.JSON != nil && len(s.Body) > 0 {
		return nil, errors.New("both Body and JSON set")
	}

	header := make(http.Header, len(s.Headers)+1)
	for k, v := range s.Headers {
		header.Set(k, v)
	}

	body := s.Body
	if s.JSON != nil {
		encoded, err := json.Marshal(s.JSON)
		if err != nil {
			return nil, fmt.Errorf("json body not serializable: %w", err)
		}
		body = encoded
		if header.Get("Content-Type") == "" && s.ContentType == "" {
			header.Set("Content-Type", "application/json")
		}
	}
	if s.ContentType != "" {
		header.Set("Content-Type", s.ContentType)
	}

	return &Response{
		Status: s.Status,
		Header: header,
		Body:   body,
	}, nil
}

// ContentType returns the response's Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// HTTPResponse converts r into an *http.Response answering req.
func (r *Response) HTTPResponse(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + http.StatusText(r.Status),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// ServeTo writes r to an http.ResponseWriter.
func (r *Response) ServeTo(w http.ResponseWriter) {
	for k, values := range r.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}
