// Package dispatch invokes registered handlers by name.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/namespace"
	"github.com/jdziat/simple-analytics/pkg/registry"
	"github.com/jdziat/simple-analytics/pkg/resolver"
	"github.com/jdziat/simple-analytics/pkg/storage"
)

// Dispatcher looks up handlers in a registry and calls them with their
// namespace resources and caller-supplied values.
type Dispatcher struct {
	registry *registry.Registry
	system   map[string]resolver.Provider
	logger   *slog.Logger
	log      *storage.InvocationLog
}

// Option configures a Dispatcher.
type Option interface {
	apply(*Dispatcher)
}

type optionFunc func(*Dispatcher)

func (f optionFunc) apply(d *Dispatcher) { f(d) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(d *Dispatcher) {
		d.logger = l
	})
}

// WithInvocationLog records every dispatched call in log.
func WithInvocationLog(log *storage.InvocationLog) Option {
	return optionFunc(func(d *Dispatcher) {
		d.log = log
	})
}

// New creates a Dispatcher over reg whose handlers get their db and fs
// arguments from res.
func New(reg *registry.Registry, res core.Resources, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		system:   resolver.SystemProviders(res),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(d)
	}
	return d
}

// Dispatch calls the handler registered under name. user supplies the
// non-privileged arguments; values named like a system argument are
// ignored. The handler's result is returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, user map[string]any) (any, error) {
	h, ok := d.registry.Handler(name)
	if !ok {
		return nil, fmt.Errorf("%w for %q", core.ErrHandlerNotFound, name)
	}

	callID := uuid.New().String()
	logger := d.logger.With("call_id", callID, "handler", name)
	// Handlers that take neither db nor fs can still run without a
	// namespace; the providers report the same error to those that do.
	ns, nsErr := namespace.Of(h)
	if nsErr != nil {
		logger.Warn("handler has no namespace", "error", nsErr)
	} else {
		logger = logger.With("namespace", ns)
	}

	start := time.Now()
	result, err := resolver.Call(ctx, h, d.system, user, nil)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn("handler call failed", "error", err, "duration", elapsed)
	} else {
		logger.Debug("handler call completed", "duration", elapsed)
	}

	if d.log != nil {
		inv := &core.Invocation{
			ID:         callID,
			Handler:    name,
			Namespace:  ns,
			Status:     core.InvocationSucceeded,
			DurationMs: elapsed.Milliseconds(),
			StartedAt:  start,
		}
		if err != nil {
			inv.Status = core.InvocationFailed
			inv.Error = err.Error()
		}
		// A failed record never fails the call.
		if recErr := d.log.Record(context.WithoutCancel(ctx), inv); recErr != nil {
			logger.Error("failed to record invocation", "error", recErr)
		}
	}

	return result, err
}
