package tracker

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   error
	}{
		{name: "401", status: http.StatusUnauthorized, want: ErrUnauthenticated},
		{name: "403", status: http.StatusForbidden, want: ErrForbidden},
		{name: "404", status: http.StatusNotFound, want: ErrNotFound},
		{name: "429", status: http.StatusTooManyRequests, want: ErrTransient},
		{name: "500", status: http.StatusInternalServerError, want: ErrTransient},
		{name: "422", status: http.StatusUnprocessableEntity, want: ErrRejected},
		{name: "Timeout", err: context.DeadlineExceeded, want: ErrTransient},
		{name: "Refresh failed", err: &oauth2.RetrieveError{}, want: ErrUnauthenticated},
		{name: "Expired token", err: errors.New("oauth2: token expired and refresh token is not set"), want: ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorize(tt.status, tt.err))
		})
	}
}

func TestErrorWrapsKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Op: "search", Status: 503, kind: ErrTransient, err: cause}

	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "jira search: transient failure (status: 503): boom", err.Error())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err      error
		category string
	}{
		{statusError("x", 401, ""), "unauthenticated"},
		{statusError("x", 403, ""), "insufficient_permission"},
		{statusError("x", 404, ""), "not_found"},
		{statusError("x", 502, ""), "transient_failure"},
		{statusError("x", 400, "bad field"), "rejected"},
		{errors.New("plain"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.category, Category(tt.err))
			assert.NotEmpty(t, UserMessage(tt.err))
			assert.NotContains(t, UserMessage(tt.err), "bad field")
		})
	}

	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "bad field", Detail(statusError("x", 400, "bad field")))
}
