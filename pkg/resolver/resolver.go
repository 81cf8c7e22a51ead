package resolver

import (
	"context"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/internal/handler"
	"github.com/jdziat/simple-analytics/pkg/namespace"
)

// Provider computes the value of a system-supplied argument for a handler.
type Provider func(ctx context.Context, h *handler.Handler) (any, error)

// Resolve computes the named arguments for h.
//
// params lists the names to bind; when empty, the handler's declared
// parameters are used. Each name is taken from system if present there,
// else from user. The first name found in neither fails the resolution with
// a *core.MissingArgumentError. Errors returned by a provider are passed
// through unchanged.
func Resolve(ctx context.Context, h *handler.Handler, system map[string]Provider, user map[string]any, params []string) (map[string]any, error) {
	if len(params) == 0 {
		params = h.Params
	}

	args := make(map[string]any, len(params))
	for _, name := range params {
		// System first: users must not be able to pass in db or fs.
		if provide, ok := system[name]; ok {
			v, err := provide(ctx, h)
			if err != nil {
				return nil, err
			}
			args[name] = v
		} else if v, ok := user[name]; ok {
			args[name] = v
		} else {
			return nil, core.MissingArgument(h.Name, name)
		}
	}
	return args, nil
}

// Call resolves the arguments for h and invokes it with exactly those
// arguments. The handler's result is returned unchanged. The handler is not
// invoked when resolution fails.
func Call(ctx context.Context, h *handler.Handler, system map[string]Provider, user map[string]any, params []string) (any, error) {
	args, err := Resolve(ctx, h, system, user, params)
	if err != nil {
		return nil, err
	}
	return h.Invoke(ctx, args)
}

// SystemProviders returns the privileged providers backed by res: the
// handler's database under core.ArgDatabase and its filesystem under
// core.ArgFilesystem, both scoped to the handler's namespace.
func SystemProviders(res core.Resources) map[string]Provider {
	return map[string]Provider{
		core.ArgDatabase: func(ctx context.Context, h *handler.Handler) (any, error) {
			ns, err := namespace.Of(h)
			if err != nil {
				return nil, err
			}
			return res.Database(ctx, ns)
		},
		core.ArgFilesystem: func(ctx context.Context, h *handler.Handler) (any, error) {
			ns, err := namespace.Of(h)
			if err != nil {
				return nil, err
			}
			return res.Filesystem(ctx, ns)
		},
	}
}
