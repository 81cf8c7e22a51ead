// Package handler provides reflection-based handler execution for the analytics package.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdziat/simple-analytics/pkg/core"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Handler holds metadata about a registered analytics handler.
type Handler struct {
	// Name is the name the handler was registered under.
	Name string

	// Module is the qualified name of the module that declared the handler.
	// Empty for handlers registered outside of a module.
	Module string

	// Params lists the handler's named parameters in declaration order.
	Params []string

	Fn         reflect.Value
	HasContext bool

	// ArgsType is set when the parameters are the fields of a struct.
	ArgsType reflect.Type
	argsPtr  bool
	fields   []int
}

// NewHandler creates a Handler from a function.
//
// The function may take an optional leading context.Context followed by
// either positional parameters, named by params, or a single struct (or
// pointer to struct) whose exported fields are the parameters. It must
// return error or (T, error).
func NewHandler(fn any, params ...string) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function")
	}
	if fnVal.IsNil() {
		return nil, fmt.Errorf("handler function cannot be nil")
	}

	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("handler cannot be variadic")
	}

	h := &Handler{Fn: fnVal}

	offset := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		h.HasContext = true
		offset = 1
	}
	numParams := fnType.NumIn() - offset

	switch {
	case len(params) > 0:
		if len(params) != numParams {
			return nil, fmt.Errorf("handler takes %d parameters but %d names were given", numParams, len(params))
		}
		if err := checkNames(params); err != nil {
			return nil, err
		}
		h.Params = slices.Clone(params)
	case numParams == 0:
		h.Params = []string{}
	case numParams == 1 && isStructArg(fnType.In(offset)):
		if err := h.deriveStructParams(fnType.In(offset)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("handler with positional parameters needs parameter names")
	}

	// Validate return type - allow error or (T, error)
	switch fnType.NumOut() {
	case 1:
		if !fnType.Out(0).Implements(errorType) {
			return nil, fmt.Errorf("handler must return error")
		}
	case 2:
		if !fnType.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("handler must return (T, error)")
		}
	default:
		return nil, fmt.Errorf("handler must return error or (T, error)")
	}

	return h, nil
}

func isStructArg(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// deriveStructParams reads parameter names from the exported fields of t.
// The arg tag wins over the json tag; untagged fields use the field name
// with its first letter lower-cased. A tag of "-" skips the field.
func (h *Handler) deriveStructParams(t reflect.Type) error {
	if t.Kind() == reflect.Pointer {
		h.argsPtr = true
		t = t.Elem()
	}
	h.ArgsType = t

	var names []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}
		name, ok := fieldParamName(field)
		if !ok {
			continue
		}
		names = append(names, name)
		h.fields = append(h.fields, i)
	}
	if err := checkNames(names); err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	if names == nil {
		names = []string{}
	}
	h.Params = names
	return nil
}

func fieldParamName(field reflect.StructField) (string, bool) {
	for _, key := range []string{"arg", "json"} {
		tag, ok := field.Tag.Lookup(key)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	r, size := utf8.DecodeRuneInString(field.Name)
	return string(unicode.ToLower(r)) + field.Name[size:], true
}

func checkNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate parameter name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Invoke calls the handler with exactly the given named arguments.
// Every declared parameter must be bound and no other names may be given.
// The handler's result and error are returned as the handler produced them.
func (h *Handler) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return nil, fmt.Errorf("handler function is nil or invalid")
	}

	for _, name := range slices.Sorted(maps.Keys(args)) {
		if !slices.Contains(h.Params, name) {
			return nil, fmt.Errorf("%w %q: %q", core.ErrUnexpectedArgument, h.Name, name)
		}
	}

	var callArgs []reflect.Value
	if h.HasContext {
		if ctx == nil {
			ctx = context.Background()
		}
		callArgs = append(callArgs, reflect.ValueOf(ctx))
	}

	if h.ArgsType != nil {
		argPtr := reflect.New(h.ArgsType)
		for i, name := range h.Params {
			v, ok := args[name]
			if !ok {
				return nil, core.MissingArgument(h.Name, name)
			}
			field := argPtr.Elem().Field(h.fields[i])
			val, err := assign(v, field.Type())
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", name, err)
			}
			field.Set(val)
		}
		if h.argsPtr {
			callArgs = append(callArgs, argPtr)
		} else {
			callArgs = append(callArgs, argPtr.Elem())
		}
	} else {
		offset := len(callArgs)
		for i, name := range h.Params {
			v, ok := args[name]
			if !ok {
				return nil, core.MissingArgument(h.Name, name)
			}
			val, err := assign(v, h.Fn.Type().In(offset+i))
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", name, err)
			}
			callArgs = append(callArgs, val)
		}
	}

	results := h.Fn.Call(callArgs)

	var err error
	if last := results[len(results)-1]; !last.IsNil() {
		err = last.Interface().(error)
	}
	if len(results) == 2 {
		return results[0].Interface(), err
	}
	return nil, err
}

// assign turns v into a value of type t. Assignable values are used as is,
// numeric values are converted when exact, anything else goes through JSON.
func assign(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(t) {
		return val, nil
	}
	if isNumeric(val.Kind()) && isNumeric(t.Kind()) {
		return convertNumber(val, t)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("failed to marshal value: %w", err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	return ptr.Elem(), nil
}

// convertNumber converts between numeric kinds only when the value is kept
// exactly: floats must be integral to become integers, negatives never
// become unsigned, and the result must fit t. Floats narrowed to float32
// are checked for range only.
func convertNumber(val reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	lossy := fmt.Errorf("cannot use %v (%s) as %s without changing its value", val.Interface(), val.Type(), t)

	switch {
	case isInt(val.Kind()):
		i := val.Int()
		switch {
		case isInt(t.Kind()):
			if out.OverflowInt(i) {
				return reflect.Value{}, lossy
			}
		case isUint(t.Kind()):
			if i < 0 || out.OverflowUint(uint64(i)) {
				return reflect.Value{}, lossy
			}
		default:
			if !exactInFloat(float64(absInt(i)), t) {
				return reflect.Value{}, lossy
			}
		}
	case isUint(val.Kind()):
		u := val.Uint()
		switch {
		case isInt(t.Kind()):
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return reflect.Value{}, lossy
			}
		case isUint(t.Kind()):
			if out.OverflowUint(u) {
				return reflect.Value{}, lossy
			}
		default:
			if !exactInFloat(float64(u), t) {
				return reflect.Value{}, lossy
			}
		}
	default:
		f := val.Float()
		switch {
		case isInt(t.Kind()):
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return reflect.Value{}, lossy
			}
		case isUint(t.Kind()):
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return reflect.Value{}, lossy
			}
		default:
			if out.OverflowFloat(f) {
				return reflect.Value{}, lossy
			}
		}
	}
	return val.Convert(t), nil
}

// exactInFloat reports whether an integer magnitude has an exact float
// representation of kind t.
func exactInFloat(mag float64, t reflect.Type) bool {
	if t.Kind() == reflect.Float32 {
		return mag <= 1<<24
	}
	return mag <= 1<<53
}

func absInt(i int64) uint64 {
	if i < 0 {
		return uint64(-(i + 1)) + 1
	}
	return uint64(i)
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
