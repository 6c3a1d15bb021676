package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var registryVersions atomic.Uint64

// Function is a custom helper callable from derived-field expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
	version   uint64
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
		version:   registryVersions.Add(1),
	}
}

// Register stores fn under name, rejecting duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("records: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("records: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("records: function %q already registered", name)
	}
	r.functions[key] = fn
	r.version = registryVersions.Add(1)
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
		version:   r.version,
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("records: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("records: function %q not registered", name)
	}
	return fn(args...)
}

// cacheScope identifies the registry contents in program cache keys. Clones
// share the scope of their source until either side registers a function.
func (r *FunctionRegistry) cacheScope() string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("fn%d", r.version)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes registry to the default expr engine.
func WithFunctionRegistry(registry *FunctionRegistry) ProjectorOption {
	return func(cfg *projectorConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default expr engine.
// Registration errors (nil fn, empty or duplicate name) are ignored.
func WithCustomFunction(name string, fn Function) ProjectorOption {
	return func(cfg *projectorConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// StorefrontFunctions returns a registry with helpers for variant and cart
// records:
//
//	fixed(value, digits)  number or numeric string rendered with fixed decimals
//	slug(value)           lower-cased value with runs of spaces replaced by "-"
func StorefrontFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("fixed", fixedFunction)
	_ = registry.Register("slug", slugFunction)
	return registry
}

func fixedFunction(args ...any) (any, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, fmt.Errorf("fixed expects 1 or 2 arguments, got %d", len(args))
	}
	value, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	digits := 2
	if len(args) == 2 {
		d, err := toFloat(args[1])
		if err != nil {
			return nil, err
		}
		digits = int(d)
	}
	if digits < 0 {
		return nil, fmt.Errorf("fixed digits must not be negative, got %d", digits)
	}
	return strconv.FormatFloat(value, 'f', digits, 64), nil
}

func slugFunction(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("slug expects 1 argument, got %d", len(args))
	}
	return strings.Join(strings.Fields(strings.ToLower(fmt.Sprint(args[0]))), "-"), nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", value)
	}
}
