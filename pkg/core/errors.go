package core

import (
	"errors"
	"fmt"
)

// Resolution errors
var (
	ErrMissingArgument    = errors.New("analytics: missing argument needed for handler")
	ErrUnexpectedArgument = errors.New("analytics: unexpected argument for handler")
	ErrNoDeclaringModule  = errors.New("analytics: handler has no resolvable declaring module")
)

// Registry errors
var (
	ErrHandlerNotFound     = errors.New("analytics: no handler registered")
	ErrDuplicateHandler    = errors.New("analytics: handler already registered")
	ErrUnknownModule       = errors.New("analytics: module is not installed in this binary")
	ErrModuleAlreadyLoaded = errors.New("analytics: module already loaded")
)

// Validation errors
var (
	ErrInvalidHandlerName = errors.New("analytics: invalid handler name (must be alphanumeric, start with letter)")
	ErrHandlerNameTooLong = errors.New("analytics: handler name too long")
	ErrInvalidModuleName  = errors.New("analytics: invalid module name")
	ErrInvalidNamespace   = errors.New("analytics: invalid namespace")
	ErrUnsupportedDriver  = errors.New("analytics: unsupported database driver")
)

// MissingArgumentError reports a handler parameter that could be resolved
// from neither the system providers nor the user-supplied values.
type MissingArgumentError struct {
	Handler string
	Name    string
}

func (e *MissingArgumentError) Error() string {
	if e.Handler == "" {
		return fmt.Sprintf("analytics: missing argument %q", e.Name)
	}
	return fmt.Sprintf("analytics: missing argument %q needed for handler %q", e.Name, e.Handler)
}

// Is reports whether target is ErrMissingArgument.
func (e *MissingArgumentError) Is(target error) bool {
	return target == ErrMissingArgument
}

// MissingArgument returns a MissingArgumentError for the named parameter.
func MissingArgument(handler, name string) error {
	return &MissingArgumentError{Handler: handler, Name: name}
}
