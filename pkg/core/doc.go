// Package core provides the fundamental types and interfaces for the analytics package.
//
// This package contains:
//   - Sentinel errors and the MissingArgumentError type
//   - Resources and Filesystem interfaces implemented by resource providers
//   - The Invocation model recorded for every dispatched handler call
//   - Reserved names of the system-supplied handler arguments
//
// Most users should import the root package github.com/jdziat/simple-analytics
// instead of this package directly.
package core
