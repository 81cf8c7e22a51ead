// Package resolver binds named arguments for a handler call.
//
// Arguments come from two sources. System providers are controlled by the
// framework and compute privileged values such as the handler's database
// handle. User values are plain values supplied by the caller. A system
// provider is always consulted first, so a caller can never override a
// privileged argument by passing a value with the same name.
package resolver
