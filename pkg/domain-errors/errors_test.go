package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeConflict, "duplicate entry")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeInvalidTransition, "used registrations are final")
		outer := Wrap(inner, CodeInternal, "transition failed")
		assert.True(t, HasCode(outer, CodeInvalidTransition))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeUnauthorized, "no session"))
		assert.True(t, HasCode(err, CodeUnauthorized))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
	})

	t.Run("cause stays reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "store unreachable")
		require.ErrorIs(t, err, cause)
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeBadRequest:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeInvalidTransition:  http.StatusConflict,
		CodeInvariantViolation: http.StatusConflict,
		CodeDeadlineExceeded:   http.StatusUnprocessableEntity,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
