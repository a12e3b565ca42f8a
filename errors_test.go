package modred

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrConfiguration, ErrUndefinedState, ErrData, ErrNumerical, ErrIndex} {
		wrapped := pkgerrors.Wrapf(sentinel, "context %d", 3)
		kind := Kind(wrapped)
		assert.NotEmpty(t, kind)

		rebuilt := FromKind(kind, wrapped.Error())
		assert.True(t, errors.Is(rebuilt, sentinel), "kind %s", kind)
		assert.Equal(t, wrapped.Error(), rebuilt.Error())
	}
}

func TestKindUnknown(t *testing.T) {
	assert.Equal(t, "", Kind(errors.New("boom")))
	err := FromKind("", "boom")
	assert.EqualError(t, err, "boom")
	assert.False(t, errors.Is(err, ErrData))
}
