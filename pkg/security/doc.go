// Package security provides validation, sanitization, and limits for the analytics package.
//
// Handler names, module names and namespace keys all end up as lookup keys
// for database files, schemas and directories, so they are restricted to a
// conservative character set before they reach a resource provider.
package security
