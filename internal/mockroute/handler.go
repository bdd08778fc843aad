package mockroute

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Handler builds the fake response for one intercepted request.
// Returning ErrFallThrough passes the request to the next matching rule.
type Handler func(req *Request) (ResponseSpec, error)

// Respond always returns spec.
func Respond(spec ResponseSpec) Handler {
	return func(*Request) (ResponseSpec, error) {
		return spec, nil
	}
}

// JSON responds with v serialized as JSON.
func JSON(status int, v any) Handler {
	return Respond(ResponseSpec{Status: status, JSON: v})
}

// Empty responds with status and no body.
func Empty(status int) Handler {
	return Respond(ResponseSpec{Status: status})
}

// Text responds with a text/plain body.
func Text(status int, body string) Handler {
	return Respond(ResponseSpec{Status: status, ContentType: "text/plain; charset=utf-8", Body: []byte(body)})
}

// Delayed wraps h so its response is held back by d.
func Delayed(d time.Duration, h Handler) Handler {
	return func(req *Request) (ResponseSpec, error) {
		spec, err := h(req)
		if err != nil {
			return spec, err
		}
		spec.Delay = d
		return spec, nil
	}
}

// ByMethod dispatches on the request method. Methods without a branch fall
// through to the next rule, and to UnmatchedRoute when none is left.
func ByMethod(branches map[string]Handler) Handler {
	normalized := make(map[string]Handler, len(branches))
	for method, h := range branches {
		normalized[strings.ToUpper(strings.TrimSpace(method))] = h
	}
	return func(req *Request) (ResponseSpec, error) {
		h, ok := normalized[req.Method]
		if !ok {
			return ResponseSpec{}, ErrFallThrough
		}
		return h(req)
	}
}

// Sequence returns specs in order, one per call; the last one repeats.
// It is the explicit way to model "first call returns A, second returns B".
func Sequence(specs ...ResponseSpec) Handler {
	if len(specs) == 0 {
		panic("mockroute: Sequence needs at least one response")
	}
	var calls atomic.Int64
	return func(*Request) (ResponseSpec, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(specs) {
			n = len(specs) - 1
		}
		return specs[n], nil
	}
}

// Echo responds with base overlaid by the fields of the submitted JSON
// object, the way a create or update endpoint returns the saved record.
func Echo(status int, base any) Handler {
	return func(req *Request) (ResponseSpec, error) {
		merged := map[string]any{}
		if base != nil {
			encoded, err := json.Marshal(base)
			if err != nil {
				return ResponseSpec{}, fmt.Errorf("encode echo base: %w", err)
			}
			if err := json.Unmarshal(encoded, &merged); err != nil {
				return ResponseSpec{}, fmt.Errorf("echo base must be a JSON object: %w", err)
			}
		}
		if len(req.Body) > 0 {
			submitted := map[string]any{}
			if err := req.DecodeJSON(&submitted); err != nil {
				return ResponseSpec{}, err
			}
			for k, v := range submitted {
				merged[k] = v
			}
		}
		return ResponseSpec{Status: status, JSON: merged}, nil
	}
}

// Fail always returns err, which the router reports as a HandlerFault.
func Fail(err error) Handler {
	return func(*Request) (ResponseSpec, error) {
		return ResponseSpec{}, err
	}
}

// ServerError mimics the backend's error payload: {"detail": message}.
func ServerError(message string) Handler {
	return JSON(http.StatusInternalServerError, map[string]string{"detail": message})
}
