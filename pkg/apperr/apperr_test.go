package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", NotFound("template", "t-1"))

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestDependencyUnwrap(t *testing.T) {
	err := Dependency("resolve passport.number", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "dependency: resolve passport.number failed: context deadline exceeded", err.Error())
}

func TestValidationMessageListsFields(t *testing.T) {
	err := Validation("unknown fields in mapping", "passportNumber", "dob")

	assert.Equal(t, "validation: unknown fields in mapping [passportNumber, dob]", err.Error())
	assert.Equal(t, []string{"passportNumber", "dob"}, err.Fields)
}

func TestImmutableField(t *testing.T) {
	err := ImmutableField("portalId")

	assert.True(t, IsKind(err, KindImmutableField))
	assert.Contains(t, err.Error(), "portalId cannot be changed after creation")
}
