//go:build cgo && (linux || darwin || freebsd)

package loader

import (
	"plugin"
	"sync"

	"github.com/sirupsen/logrus"
)

// GoPluginOpener loads shared objects built with -buildmode=plugin.
//
// The Go runtime never unloads a plugin and maps a given path only once per
// process, so isolation between sessions comes from the registration entry
// point returning a fresh plugin instance on every call.
type GoPluginOpener struct{}

// Open implements Opener.
func (GoPluginOpener) Open(path string) (Module, error) {
	logrus.WithFields(logrus.Fields{
		"function": "GoPluginOpener.Open",
		"path":     path,
	}).Debug("Opening Go plugin")

	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &goPluginModule{path: path, plugin: p}, nil
}

type goPluginModule struct {
	path string

	mu     sync.Mutex
	plugin *plugin.Plugin
}

func (m *goPluginModule) Lookup(symbol string) (any, error) {
	m.mu.Lock()
	p := m.plugin
	m.mu.Unlock()

	if p == nil {
		return nil, ErrSymbolNotFound
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// Close drops the handle. The code stays mapped until the process exits.
func (m *goPluginModule) Close() error {
	m.mu.Lock()
	m.plugin = nil
	m.mu.Unlock()
	return nil
}

// DefaultOpener returns the opener for the running platform.
func DefaultOpener() Opener {
	return GoPluginOpener{}
}
