package registry

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/internal/handler"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// Module is a unit of analytics handlers compiled into the binary.
type Module interface {
	// Name is the module's top-level identifier, as listed in configuration.
	Name() string

	// Register registers the module's handlers.
	Register(s *Scope)
}

// SubmoduleProvider is implemented by modules that contribute submodules.
// A submodule named "reports" of module "pageviews" is loaded as
// "pageviews.reports".
type SubmoduleProvider interface {
	Submodules() []Module
}

// Load registers the installed modules, in the given order, from catalog.
// Each module registers its own handlers first, then those of its
// submodules. It returns the qualified names of the modules loaded.
func Load(r *Registry, installed []string, catalog []Module) ([]string, error) {
	byName := make(map[string]Module, len(catalog))
	for _, m := range catalog {
		if _, dup := byName[m.Name()]; dup {
			return nil, fmt.Errorf("analytics: module %q appears twice in the catalog", m.Name())
		}
		byName[m.Name()] = m
	}

	var loaded []string
	for _, name := range installed {
		if err := security.ValidateModuleName(name); err != nil {
			return loaded, fmt.Errorf("%w: %q", err, name)
		}
		m, ok := byName[name]
		if !ok {
			return loaded, fmt.Errorf("%w: %q", core.ErrUnknownModule, name)
		}

		if err := r.loadModule(name, m); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)

		sp, ok := m.(SubmoduleProvider)
		if !ok {
			continue
		}
		for _, sub := range sp.Submodules() {
			qualified := name + "." + sub.Name()
			if err := security.ValidateModuleName(qualified); err != nil {
				return loaded, fmt.Errorf("%w: %q", err, qualified)
			}
			if err := r.loadModule(qualified, sub); err != nil {
				return loaded, err
			}
			loaded = append(loaded, qualified)
		}
	}
	return loaded, nil
}

// loadModule runs m's registration under the qualified name. A panic from a
// failed Register call is reported as an error, and the module is unloaded
// together with any handlers it registered before panicking.
func (r *Registry) loadModule(qualified string, m Module) (err error) {
	r.mu.Lock()
	for _, done := range r.modules {
		if done == qualified {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q", core.ErrModuleAlreadyLoaded, qualified)
		}
	}
	r.modules = append(r.modules, qualified)
	logger := r.logger
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.unload(qualified)
			if perr, ok := p.(error); ok {
				err = fmt.Errorf("analytics: loading module %q: %w", qualified, perr)
				return
			}
			err = fmt.Errorf("analytics: loading module %q: %v", qualified, p)
		}
	}()

	m.Register(r.Scope(qualified))
	logger.Info("loaded analytics module", "module", qualified)
	return nil
}

// unload removes a module and the handlers declared by it.
func (r *Registry) unload(qualified string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules = slices.DeleteFunc(r.modules, func(m string) bool { return m == qualified })
	maps.DeleteFunc(r.handlers, func(_ string, h *handler.Handler) bool {
		return h.Module == qualified
	})
}
