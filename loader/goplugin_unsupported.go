//go:build !cgo || !(linux || darwin || freebsd)

package loader

import "fmt"

// DefaultOpener returns an opener that rejects every file, since this
// platform cannot load Go plugins. Builtin modules still work.
func DefaultOpener() Opener {
	return OpenerFunc(func(path string) (Module, error) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	})
}
