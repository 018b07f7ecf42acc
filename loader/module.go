package loader

import (
	"errors"
	"fmt"

	"github.com/opd-ai/vcable/abi"
)

var (
	// ErrSymbolNotFound indicates a module without the registration entry point.
	ErrSymbolNotFound = errors.New("registration symbol not found")

	// ErrBadSymbol indicates a registration symbol of the wrong type.
	ErrBadSymbol = errors.New("registration symbol has wrong type")

	// ErrRegistryFull indicates that every registry slot is taken.
	ErrRegistryFull = errors.New("plugin registry is full")

	// ErrDuplicate indicates a path that is already registered.
	ErrDuplicate = errors.New("plugin already registered")

	// ErrUnsupported indicates a platform without dynamic module loading.
	ErrUnsupported = errors.New("dynamic plugin loading not supported on this platform")
)

// Module is an opaque handle to one loaded plugin module. It stays resident
// while its descriptor is registered.
type Module interface {
	// Lookup resolves an exported symbol.
	Lookup(symbol string) (any, error)

	// Close releases the handle.
	Close() error
}

// Opener loads a candidate file into its own execution context.
type Opener interface {
	Open(path string) (Module, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Module, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Module, error) {
	return f(path)
}

// Builtin is a plugin module linked into the binary instead of loaded from a
// file. Its Register function is invoked once per registration, exactly like
// the exported entry point of a dynamic module.
type Builtin struct {
	Name     string
	Register abi.RegisterFunc
}

// Path returns the pseudo path under which the builtin is registered.
func (b Builtin) Path() string {
	return "builtin:" + b.Name
}

// Lookup implements Module.
func (b Builtin) Lookup(symbol string) (any, error) {
	if symbol != abi.RegisterSymbol || b.Register == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, b.Path())
	}
	return b.Register, nil
}

// Close implements Module. Builtins hold no resources.
func (b Builtin) Close() error {
	return nil
}

// resolveRegister looks up the registration entry point and checks its type.
func resolveRegister(m Module) (abi.RegisterFunc, error) {
	sym, err := m.Lookup(abi.RegisterSymbol)
	if err != nil {
		if errors.Is(err, ErrSymbolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSymbolNotFound, err)
	}

	switch fn := sym.(type) {
	case abi.RegisterFunc:
		if fn == nil {
			return nil, fmt.Errorf("%w: nil %s", ErrBadSymbol, abi.RegisterSymbol)
		}
		return fn, nil
	case *abi.RegisterFunc:
		// Exported variables resolve to pointers.
		if fn == nil || *fn == nil {
			return nil, fmt.Errorf("%w: nil %s", ErrBadSymbol, abi.RegisterSymbol)
		}
		return *fn, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadSymbol, sym)
	}
}
