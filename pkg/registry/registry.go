package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/internal/handler"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// Handler is a registered handler with its declared parameter names.
type Handler = handler.Handler

// Registry maps handler names to handlers.
type Registry struct {
	handlers map[string]*handler.Handler
	modules  []string
	mu       sync.RWMutex
	logger   *slog.Logger
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]*handler.Handler),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger used for registration messages.
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register registers a handler function under name.
// Handler names must be alphanumeric (starting with a letter), max 255 chars.
// It panics on an invalid name, an invalid function or a duplicate name;
// use RegisterE to get an error instead.
func (r *Registry) Register(name string, fn any, opts ...Option) {
	if err := r.RegisterE(name, fn, opts...); err != nil {
		panic(err)
	}
}

// RegisterE is Register returning an error instead of panicking.
func (r *Registry) RegisterE(name string, fn any, opts ...Option) error {
	if err := security.ValidateHandlerName(name); err != nil {
		return fmt.Errorf("analytics: invalid handler name %q: %w", name, err)
	}

	o := NewOptions()
	for _, opt := range opts {
		opt.Apply(o)
	}
	if o.Module != "" {
		if err := security.ValidateModuleName(o.Module); err != nil {
			return fmt.Errorf("analytics: handler %q: %w: %q", name, err, o.Module)
		}
	}

	h, err := handler.NewHandler(fn, o.Params...)
	if err != nil {
		return fmt.Errorf("analytics: handler for %q: %w", name, err)
	}
	h.Name = name
	h.Module = o.Module

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %q", core.ErrDuplicateHandler, name)
	}
	r.handlers[name] = h
	r.logger.Debug("registered handler", "handler", name, "module", o.Module, "params", h.Params)
	return nil
}

// HasHandler checks if a handler is registered.
func (r *Registry) HasHandler(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Handler returns a handler by name.
func (r *Registry) Handler(name string) (*handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// Modules returns the qualified names of the loaded modules in load order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// Scope returns a registrar that registers handlers in module.
func (r *Registry) Scope(module string) *Scope {
	return &Scope{registry: r, module: module}
}

// Scope registers handlers on behalf of one module.
type Scope struct {
	registry *Registry
	module   string
}

// Module returns the qualified name of the module.
func (s *Scope) Module() string {
	return s.module
}

// Register registers a handler declared by the scope's module.
// It panics like Registry.Register.
func (s *Scope) Register(name string, fn any, opts ...Option) {
	s.registry.Register(name, fn, s.withModule(opts)...)
}

// RegisterE registers a handler declared by the scope's module.
func (s *Scope) RegisterE(name string, fn any, opts ...Option) error {
	return s.registry.RegisterE(name, fn, s.withModule(opts)...)
}

// withModule appends the scope's module without touching the caller's slice.
func (s *Scope) withModule(opts []Option) []Option {
	return append(slices.Clone(opts), InModule(s.module))
}
