package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingArgumentError(t *testing.T) {
	err := MissingArgument("daily-report", "x")

	var missing *MissingArgumentError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "x", missing.Name)
	assert.Equal(t, "daily-report", missing.Handler)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), "daily-report")
}

func TestMissingArgumentError_Is(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", MissingArgument("h", "db"))

	assert.ErrorIs(t, err, ErrMissingArgument)
	assert.NotErrorIs(t, err, ErrUnexpectedArgument)
}

func TestMissingArgumentError_NoHandlerName(t *testing.T) {
	err := MissingArgument("", "fs")
	assert.Equal(t, `analytics: missing argument "fs"`, err.Error())
}

func TestErrorVariables(t *testing.T) {
	// Verify all error variables are defined and prefixed
	for _, err := range []error{
		ErrMissingArgument,
		ErrUnexpectedArgument,
		ErrNoDeclaringModule,
		ErrHandlerNotFound,
		ErrDuplicateHandler,
		ErrUnknownModule,
		ErrModuleAlreadyLoaded,
		ErrInvalidHandlerName,
		ErrHandlerNameTooLong,
		ErrInvalidModuleName,
		ErrInvalidNamespace,
		ErrUnsupportedDriver,
	} {
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "analytics:")
	}
}
