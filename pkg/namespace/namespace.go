// Package namespace derives the key that scopes a handler's database and
// filesystem.
//
// The key comes from the handler's declaring module: the qualified module
// name it was registered under, or, for handlers registered outside of a
// module, the Go package path of the handler function. Hierarchical
// separators are flattened to "_" so the key is a single segment.
package namespace

import (
	"fmt"
	"net/url"
	"reflect"
	"runtime"
	"strings"

	"github.com/jdziat/simple-analytics/pkg/core"
	"github.com/jdziat/simple-analytics/pkg/internal/handler"
	"github.com/jdziat/simple-analytics/pkg/security"
)

// Separator replaces every hierarchical separator in a module identifier.
const Separator = "_"

var flatten = strings.NewReplacer(".", Separator, "/", Separator)

// Of returns the namespace of a registered handler.
func Of(h *handler.Handler) (string, error) {
	if h == nil {
		return "", core.ErrNoDeclaringModule
	}
	if h.Module != "" {
		return FromModule(h.Module)
	}
	if !h.Fn.IsValid() {
		return "", fmt.Errorf("%w: handler %q", core.ErrNoDeclaringModule, h.Name)
	}
	return FromFunc(h.Fn.Interface())
}

// FromModule flattens a module identifier such as "pageviews.reports" into
// a namespace key such as "pageviews_reports".
func FromModule(module string) (string, error) {
	if module == "" {
		return "", core.ErrNoDeclaringModule
	}
	ns := flatten.Replace(module)
	if err := security.ValidateNamespace(ns); err != nil {
		return "", fmt.Errorf("%w: module %q", err, module)
	}
	return ns, nil
}

// FromFunc returns the namespace of the Go package that declares fn.
func FromFunc(fn any) (string, error) {
	pkg, err := PackagePath(fn)
	if err != nil {
		return "", err
	}
	return FromModule(pkg)
}

// PackagePath returns the import path of the package that declares fn.
func PackagePath(fn any) (string, error) {
	if fn == nil {
		return "", core.ErrNoDeclaringModule
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", fmt.Errorf("%w: %T is not a function", core.ErrNoDeclaringModule, fn)
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "", core.ErrNoDeclaringModule
	}
	pkg := packageOfSymbol(f.Name())
	if pkg == "" {
		return "", fmt.Errorf("%w: symbol %q", core.ErrNoDeclaringModule, f.Name())
	}
	return pkg, nil
}

// packageOfSymbol extracts the package path from a runtime symbol name like
// "github.com/acme/mod/pageviews.(*Module).render-fm".
func packageOfSymbol(symbol string) string {
	// Type arguments of generic instantiations may contain slashes.
	symbol, _, _ = strings.Cut(symbol, "[")

	slash := strings.LastIndex(symbol, "/")
	dot := strings.Index(symbol[slash+1:], ".")
	if dot < 0 {
		return ""
	}
	pkg := symbol[:slash+1+dot]

	// The linker escapes dots in the last path element, e.g. yaml%2ev3.
	if unescaped, err := url.PathUnescape(pkg); err == nil {
		pkg = unescaped
	}
	return pkg
}
