package abi

import (
	"errors"
	"fmt"
)

// Version identifies the plugin contract revision compiled into this core.
const Version = "vcable-abi/1"

// RegisterSymbol is the exported name of the registration entry point every
// plugin module provides. Its value must be a RegisterFunc.
const RegisterSymbol = "PluginRegister"

// RegisterFunc is the type of the registration entry point.
type RegisterFunc = func(out *Descriptor)

var (
	// ErrVersionMismatch indicates a missing or different ABI version string.
	ErrVersionMismatch = errors.New("abi version mismatch")

	// ErrMissingEntryPoints indicates a descriptor without a plugin
	// implementation.
	ErrMissingEntryPoints = errors.New("plugin does not implement open and close")

	// ErrInvalidOptions indicates options without a write callback or name.
	ErrInvalidOptions = errors.New("invalid plugin options")
)

// WriteFunc is the host's own write callback. Plugins use it to hand frames
// back to the host that activated them. userData is Options.UserData.
type WriteFunc func(port int, samples []byte, count int, sampleRate uint32, userData any)

// Options is the configuration a host adapter supplies before any plugin can
// be activated. It is passed on every open and re-open.
type Options struct {
	// UserData is opaque to the core and handed back through Write.
	UserData any
	// Name is the human-readable session name, e.g. a client name.
	Name string
	// Write receives frames routed back to the host.
	Write WriteFunc
	// Ports is the requested number of ports.
	Ports int
	// SampleSize is the width of one sample in bytes.
	SampleSize int
}

// Validate checks the fields the core depends on.
func (o *Options) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil options", ErrInvalidOptions)
	}
	if o.Write == nil {
		return fmt.Errorf("%w: write callback is required", ErrInvalidOptions)
	}
	if o.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOptions)
	}
	return nil
}

// CablePlugin is the capability a loaded plugin provides.
type CablePlugin interface {
	// Open prepares the plugin for the given options. It is called on
	// activation and again whenever the options change.
	Open(opts *Options) error

	// Close releases everything Open acquired. It must be safe to call on a
	// plugin that is not open.
	Close() error

	// Write delivers count samples for port. It runs on the real-time path.
	Write(port int, samples []byte, count int, sampleRate uint32)
}

// Descriptor is what a plugin supplies at registration time.
type Descriptor struct {
	Name        string
	Description string
	Version     string
	Plugin      CablePlugin
}

// Validate applies the registration rules: exact version match and a plugin
// implementation.
func (d *Descriptor) Validate() error {
	if d.Version == "" || d.Version != Version {
		return fmt.Errorf("%w: plugin %q has %q, core is %q", ErrVersionMismatch, d.Name, d.Version, Version)
	}
	if d.Plugin == nil {
		return fmt.Errorf("%w: plugin %q", ErrMissingEntryPoints, d.Name)
	}
	return nil
}
