package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NotFound, CodeOf(New(NotFound, "book not found")))
	assert.Equal(t, Internal, CodeOf(errors.New("plain")))
	assert.Equal(t, Internal, CodeOf(nil))

	wrapped := fmt.Errorf("outer: %w", New(FailedPrecondition, "account already exists"))
	assert.Equal(t, FailedPrecondition, CodeOf(wrapped))
}

func TestIsCode(t *testing.T) {
	t.Parallel()

	err := Wrap(MalformedCredential, "stored credential is malformed", errors.New("odd-length hex"))
	assert.True(t, IsCode(err, MalformedCredential))
	assert.False(t, IsCode(err, NotFound))
	assert.False(t, IsCode(errors.New("plain"), MalformedCredential))
}

func TestMessageOf_HidesInternalDetail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "internal error", MessageOf(errors.New("dial tcp 127.0.0.1:5432: connection refused")))
	assert.Equal(t, "account already exists", MessageOf(New(FailedPrecondition, "account already exists")))
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidArgument))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthenticated))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(PermissionDenied))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(FailedPrecondition))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(MalformedCredential))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Internal))
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	err := Wrap(Internal, "something broke", cause)
	assert.ErrorIs(t, err, cause)
}
