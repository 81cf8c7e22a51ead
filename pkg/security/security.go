// Package security provides validation, sanitization, and limits for the analytics package.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-analytics/pkg/core"
)

// Security limits and configuration
const (
	// MaxHandlerNameLength is the maximum length for handler names
	MaxHandlerNameLength = 255

	// MaxModuleNameLength is the maximum length for qualified module names
	MaxModuleNameLength = 255

	// MaxNamespaceLength is the maximum length for namespace keys
	MaxNamespaceLength = 255

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096
)

// validHandlerName matches alphanumeric, hyphens, underscores, and dots
var validHandlerName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// validModuleName matches dot-separated segments, each starting with a letter
var validModuleName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]*(\.[a-zA-Z][a-zA-Z0-9_\-]*)*$`)

// validNamespace is a single flat segment
var validNamespace = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// ValidateHandlerName validates a handler name
func ValidateHandlerName(name string) error {
	if name == "" {
		return core.ErrInvalidHandlerName
	}
	if len(name) > MaxHandlerNameLength {
		return core.ErrHandlerNameTooLong
	}
	if !validHandlerName.MatchString(name) {
		return core.ErrInvalidHandlerName
	}
	return nil
}

// ValidateModuleName validates a (possibly qualified) module name such as
// "pageviews" or "pageviews.reports".
func ValidateModuleName(name string) error {
	if name == "" || len(name) > MaxModuleNameLength {
		return core.ErrInvalidModuleName
	}
	if !validModuleName.MatchString(name) {
		return core.ErrInvalidModuleName
	}
	return nil
}

// ValidateNamespace validates a namespace key before it is used as a file
// name, directory name or schema name.
func ValidateNamespace(ns string) error {
	if ns == "" || len(ns) > MaxNamespaceLength {
		return core.ErrInvalidNamespace
	}
	if !validNamespace.MatchString(ns) {
		return core.ErrInvalidNamespace
	}
	// Nothing but replaced separators left.
	if strings.Trim(ns, "_-") == "" {
		return core.ErrInvalidNamespace
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}
