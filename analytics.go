// Package analytics runs handlers contributed by compiled-in analytics
// modules, giving each module its own database and filesystem.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages and wires them together in Open.
//
// Basic usage:
//
//	type pageviews struct{}
//
//	func (pageviews) Name() string { return "pageviews" }
//
//	func (pageviews) Register(s *analytics.Scope) {
//	    s.Register("track", func(ctx context.Context, db *gorm.DB, url string) error {
//	        return db.Create(&View{URL: url}).Error
//	    }, analytics.Params("db", "url"))
//	}
//
//	cfg, _ := analytics.LoadConfig("analytics.yaml") // installed_modules: [pageviews]
//	app, _ := analytics.Open(ctx, cfg, []analytics.Module{pageviews{}})
//	defer app.Close(ctx)
//
//	app.Dispatch(ctx, "track", map[string]any{"url": "/home"})
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"github.com/jdziat/simple-analytics/pkg/config"
	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/dispatch"
	"github.com/jdziat/simple-analytics/pkg/modulefs"
	"github.com/jdziat/simple-analytics/pkg/namespace"
	"github.com/jdziat/simple-analytics/pkg/registry"
	"github.com/jdziat/simple-analytics/pkg/resolver"
	"github.com/jdziat/simple-analytics/pkg/schedule"
	"github.com/jdziat/simple-analytics/pkg/storage"
)

type (
	// Handler is a registered handler with its declared parameter names.
	Handler = registry.Handler

	// Module contributes handlers to a registry.
	Module = registry.Module

	// SubmoduleProvider is implemented by modules with submodules.
	SubmoduleProvider = registry.SubmoduleProvider

	// Scope registers handlers on behalf of one module.
	Scope = registry.Scope

	// Registry holds registered handlers.
	Registry = registry.Registry

	// Option configures a handler registration.
	Option = registry.Option

	// Provider computes a system-supplied argument.
	Provider = resolver.Provider

	// Resources supplies per-namespace databases and filesystems.
	Resources = core.Resources

	// Filesystem is a namespace's private file area.
	Filesystem = core.Filesystem

	// MissingArgumentError reports an argument no source could supply.
	MissingArgumentError = core.MissingArgumentError

	// Invocation is a recorded handler call.
	Invocation = core.Invocation

	// Config is the analytics configuration.
	Config = config.Config

	// Dispatcher calls handlers by name.
	Dispatcher = dispatch.Dispatcher

	// Scheduler dispatches handlers on recurring schedules.
	Scheduler = schedule.Scheduler
)

// Re-exported errors.
var (
	ErrMissingArgument     = core.ErrMissingArgument
	ErrUnexpectedArgument  = core.ErrUnexpectedArgument
	ErrNoDeclaringModule   = core.ErrNoDeclaringModule
	ErrHandlerNotFound     = core.ErrHandlerNotFound
	ErrDuplicateHandler    = core.ErrDuplicateHandler
	ErrUnknownModule       = core.ErrUnknownModule
	ErrModuleAlreadyLoaded = core.ErrModuleAlreadyLoaded
	ErrInvalidHandlerName  = core.ErrInvalidHandlerName
	ErrInvalidNamespace    = core.ErrInvalidNamespace
)

// Params names a handler's parameters in order.
func Params(names ...string) Option {
	return registry.Params(names...)
}

// InModule sets the declaring module of a handler.
func InModule(module string) Option {
	return registry.InModule(module)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return registry.New()
}

// LoadModules registers the installed modules found in catalog.
func LoadModules(r *Registry, installed []string, catalog []Module) ([]string, error) {
	return registry.Load(r, installed, catalog)
}

// Resolve computes the named arguments for h. See resolver.Resolve.
func Resolve(ctx context.Context, h *Handler, system map[string]Provider, user map[string]any, params []string) (map[string]any, error) {
	return resolver.Resolve(ctx, h, system, user, params)
}

// Call resolves h's arguments and invokes it.
func Call(ctx context.Context, h *Handler, system map[string]Provider, user map[string]any, params []string) (any, error) {
	return resolver.Call(ctx, h, system, user, params)
}

// SystemProviders returns the db and fs providers backed by res.
func SystemProviders(res Resources) map[string]Provider {
	return resolver.SystemProviders(res)
}

// NamespaceOf returns the storage namespace of h.
func NamespaceOf(h *Handler) (string, error) {
	return namespace.Of(h)
}

// LoadConfig reads a configuration file layered over the defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// LoadDefaultConfig reads analytics.yaml when present, layered over the
// defaults and the environment.
func LoadDefaultConfig() (*Config, error) {
	return config.LoadDefault()
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// App is a running analytics installation.
type App struct {
	Config      *Config
	Logger      *slog.Logger
	Registry    *Registry
	Databases   *storage.Databases
	Filesystems *modulefs.Filesystems
	Dispatcher  *Dispatcher
	Scheduler   *Scheduler

	// Invocations is nil unless the invocation log is enabled.
	Invocations *storage.InvocationLog

	// Loaded lists the qualified names of the loaded modules.
	Loaded []string
}

// OpenOption configures Open.
type OpenOption interface {
	apply(*openOptions)
}

type openOptions struct {
	logger *slog.Logger
}

type openOptionFunc func(*openOptions)

func (f openOptionFunc) apply(o *openOptions) { f(o) }

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) OpenOption {
	return openOptionFunc(func(o *openOptions) {
		o.logger = l
	})
}

// Open validates cfg, opens the database and filesystem providers, loads
// the installed modules from catalog and prepares a dispatcher and a
// stopped scheduler.
func Open(ctx context.Context, cfg *Config, catalog []Module, opts ...OpenOption) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &openOptions{}
	for _, opt := range opts {
		opt.apply(o)
	}
	logger := o.logger
	if logger == nil {
		logger = config.NewLogger(cfg.Log, os.Stderr)
	}

	dbs, err := storage.NewDatabases(cfg.Database.Driver, cfg.Database.DSN,
		storage.WithPool(cfg.Database.PoolOptions()...),
		storage.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry.New(),
		Databases:   dbs,
		Filesystems: modulefs.New(cfg.Filesystem.Root).WithLogger(logger),
	}
	app.Registry.SetLogger(logger)

	app.Loaded, err = registry.Load(app.Registry, cfg.InstalledModules, catalog)
	if err != nil {
		return nil, errors.Join(err, app.closeProviders())
	}

	var dopts []dispatch.Option
	dopts = append(dopts, dispatch.WithLogger(logger))
	if cfg.InvocationLog {
		db, err := dbs.Database(ctx, cfg.SystemNamespace)
		if err != nil {
			return nil, errors.Join(err, app.closeProviders())
		}
		app.Invocations = storage.NewInvocationLog(db)
		if err := app.Invocations.Migrate(ctx); err != nil {
			return nil, errors.Join(err, app.closeProviders())
		}
		dopts = append(dopts, dispatch.WithInvocationLog(app.Invocations))
	}

	app.Dispatcher = dispatch.New(app.Registry, app, dopts...)
	app.Scheduler = schedule.New(app.Dispatcher, schedule.WithLogger(logger))

	logger.Info("analytics ready",
		"modules", app.Loaded,
		"handlers", len(app.Registry.Names()),
		"driver", dbs.Driver(),
	)
	return app, nil
}

// Database returns the database of a namespace.
func (a *App) Database(ctx context.Context, ns string) (*gorm.DB, error) {
	return a.Databases.Database(ctx, ns)
}

// Filesystem returns the filesystem of a namespace.
func (a *App) Filesystem(ctx context.Context, ns string) (Filesystem, error) {
	return a.Filesystems.Filesystem(ctx, ns)
}

// Dispatch calls the handler registered under name.
func (a *App) Dispatch(ctx context.Context, name string, user map[string]any) (any, error) {
	return a.Dispatcher.Dispatch(ctx, name, user)
}

// Close stops the scheduler and releases all databases and filesystems.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		errs = append(errs, a.Scheduler.Stop(ctx))
	}
	errs = append(errs, a.closeProviders())
	return errors.Join(errs...)
}

func (a *App) closeProviders() error {
	return errors.Join(a.Filesystems.Close(), a.Databases.Close())
}
