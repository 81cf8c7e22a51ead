// Package handler provides internal reflection-based handler execution.
//
// This package is internal and should not be imported directly.
// It provides:
//   - Handler: Metadata for registered analytics handlers, including the
//     ordered list of named parameters a handler declares
//   - Parameter names taken from explicit metadata or from the fields of a
//     single struct parameter
//   - Invocation with a map of named arguments
package handler
