// Package errs classifies mock backend failures and renders them as the JSON
// error bodies the frontend under test receives.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Code says which part of a mocked exchange went wrong.
type Code string

const (
	// Malformed covers unusable input: scenario files, request bodies and
	// response specs a handler produced.
	Malformed Code = "malformed"
	// Unmatched means no rule answered the request.
	Unmatched Code = "unmatched"
	// Missing means a file the harness was pointed at does not exist.
	Missing Code = "missing"
	// NoUpstream means a request was passed through with nowhere to go.
	NoUpstream Code = "no_upstream"
	// Aborted means the router closed or the caller gave up mid-dispatch.
	Aborted Code = "aborted"
	// HandlerFault means a rule handler returned an error or panicked.
	HandlerFault Code = "handler_fault"
	// Internal is the code of anything unclassified.
	Internal Code = "internal"
)

var statusByCode = map[Code]int{
	Malformed:    http.StatusBadRequest,
	Unmatched:    http.StatusNotFound,
	Missing:      http.StatusNotFound,
	NoUpstream:   http.StatusBadGateway,
	Aborted:      http.StatusServiceUnavailable,
	HandlerFault: http.StatusInternalServerError,
}

// Error carries a Code and the message shown to the page. Err keeps the cause
// reachable through errors.Is and errors.As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

func Wrapf(code Code, cause error, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

func coded(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the outermost Code in err's chain, or Internal.
func CodeOf(err error) Code {
	if e := coded(err); e != nil && e.Code != "" {
		return e.Code
	}
	return Internal
}

// MessageOf returns the outermost coded message. Uncoded errors read as
// "internal error" so raw dial errors and file paths never reach the page.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	if e := coded(err); e != nil && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus is the status a failure with code is served with.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body is the JSON document written for a failed dispatch.
type Body struct {
	Error string `json:"error"`
	Code  Code   `json:"code"`
}

// BodyOf describes err as a Body.
func BodyOf(err error) Body {
	return Body{Error: MessageOf(err), Code: CodeOf(err)}
}

// Write serves err as a JSON Body with the status its code maps to.
func Write(w http.ResponseWriter, err error) {
	body := BodyOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(body.Code))
	_ = json.NewEncoder(w).Encode(body)
}
