package apierror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, KindNotFound, NotFound("nope").Kind)
	assert.Equal(t, KindBadRequest, BadRequest("bad").Kind)
	assert.Equal(t, KindAuthorizationDenied, AuthorizationDenied("denied").Kind)
	assert.Equal(t, KindConflict, Conflict("conflict").Kind)

	wrapped := errors.New("boom")
	internal := Internal(wrapped)
	assert.Equal(t, KindInternal, internal.Kind)
	assert.ErrorIs(t, internal, wrapped)
}

func TestErrorMessage(t *testing.T) {
	e := New(KindBadRequest, "missing field")
	assert.Equal(t, "missing field", e.Error())

	wrapped := errors.New("underlying")
	e2 := Wrap(KindInternal, "", wrapped)
	assert.Equal(t, "underlying", e2.Error())

	e3 := &Error{Kind: KindConflict}
	assert.Equal(t, "Conflict", e3.Error())
}

func TestIs(t *testing.T) {
	err := NotFound("job not found")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))

	plain := errors.New("plain")
	assert.False(t, Is(plain, KindInternal))

	assert.True(t, Is(Wrap(KindInternal, "db", plain), KindInternal))
}

func TestUnwrap(t *testing.T) {
	wrapped := errors.New("root cause")
	e := Wrap(KindInternal, "context", wrapped)
	assert.Same(t, wrapped, errors.Unwrap(e))
}
