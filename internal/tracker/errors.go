package tracker

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/oauth2"
)

// Error categories. Every error returned by Client matches exactly one of
// these with errors.Is.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("insufficient permission")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("transient failure")
	ErrRejected        = errors.New("request rejected")
)

// maxDetailBytes bounds how much of an upstream error body is kept.
const maxDetailBytes = 4096

// Error is a categorized tracker failure.
type Error struct {
	// Op is the client operation that failed (e.g., "search")
	Op string

	// Status is the upstream HTTP status, 0 when no response was received
	Status int

	// Detail is the raw upstream error payload, if any
	Detail string

	kind error
	err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("jira %s: %v", e.Op, e.kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status: %d)", e.Status)
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

// Unwrap exposes both the category sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// Kind returns the category sentinel.
func (e *Error) Kind() error {
	return e.kind
}

// newError builds a categorized error from a go-jira call result.
func newError(op string, resp *jira.Response, err error) error {
	if err == nil {
		return nil
	}

	e := &Error{Op: op, err: err}
	if resp != nil && resp.Response != nil {
		e.Status = resp.StatusCode
		e.Detail = readDetail(resp.Response)
	}
	e.kind = categorize(e.Status, err)
	return e
}

// statusError builds a categorized error from a bare HTTP status.
func statusError(op string, status int, detail string) error {
	return &Error{
		Op:     op,
		Status: status,
		Detail: detail,
		kind:   categorize(status, nil),
	}
}

func categorize(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthenticated
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrTransient
	case status >= 400:
		return ErrRejected
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return ErrUnauthenticated
	}
	if err != nil && strings.Contains(err.Error(), "token expired") {
		return ErrUnauthenticated
	}
	// no response at all: timeouts, cancellation, DNS, connection resets
	return ErrTransient
}

func readDetail(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Category returns a short machine-readable code for err.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "insufficient_permission"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient_failure"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "internal_error"
	}
}

// UserMessage returns the human-readable primary message for err. Upstream
// payloads are never part of it; callers attach them separately via Detail.
func UserMessage(err error) string {
	switch Category(err) {
	case "unauthenticated":
		return "Not authenticated. Please sign in to Jira again."
	case "insufficient_permission":
		return "Insufficient permission in Jira for this action."
	case "not_found":
		return "The requested Jira item was not found."
	case "transient_failure":
		return "Jira is temporarily unavailable. Please retry."
	case "rejected":
		return "Jira rejected the request."
	case "":
		return ""
	default:
		return "Unexpected error while talking to Jira."
	}
}

// Detail returns the upstream payload carried by err, if any.
func Detail(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Detail
	}
	return ""
}
