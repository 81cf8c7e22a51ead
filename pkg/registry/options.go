package registry

// Options holds configuration for handler registration.
type Options struct {
	Params []string
	Module string
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Params names the handler's positional parameters, in order. Handlers
// taking a single struct derive their parameter names from its fields and
// need no Params.
func Params(names ...string) Option {
	return optionFunc(func(o *Options) {
		o.Params = names
	})
}

// InModule sets the declaring module of the handler. Handlers registered
// through a module Scope always get the scope's module.
func InModule(module string) Option {
	return optionFunc(func(o *Options) {
		o.Module = module
	})
}
