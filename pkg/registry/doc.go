// Package registry holds the handlers contributed by analytics modules.
//
// Modules are compiled into the binary and listed in a catalog. At startup
// Load walks the configured list of installed module names, finds each one
// in the catalog and lets it register its handlers, followed by the
// handlers of its submodules. Handlers registered by a module remember the
// module's qualified name, which later scopes their database and filesystem.
package registry
