package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsKindAndCause(t *testing.T) {
	err := New(ErrNavigation, "navigator.goto", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrNavigation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrIO)
	assert.Equal(t, "navigator.goto: navigation failed: context deadline exceeded", err.Error())
}

func TestError_NilCause(t *testing.T) {
	err := New(ErrMissingCredentials, "authn.authenticate", nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, "authn.authenticate: missing credentials", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("scrape: %w", Newf(ErrFormNotFound, "authn.authenticate", "selector %q", "#username"))

	assert.Equal(t, "form_not_found", KindOf(wrapped))
	assert.Equal(t, "internal", KindOf(errors.New("boom")))
	assert.Equal(t, "", KindOf(nil))
	assert.Equal(t, "io_failure", KindOf(fmt.Errorf("x: %w", ErrIO)))
}
