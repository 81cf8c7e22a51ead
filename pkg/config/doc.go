// Package config loads the analytics configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// variables from a .env file, then the process environment. The most
// important setting is installed_modules, the ordered list of module names
// loaded at startup.
package config
