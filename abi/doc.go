// Package abi defines the contract every vcable cable plugin satisfies.
//
// A plugin module exports a single registration entry point named by
// RegisterSymbol. The loader calls it with a zeroed Descriptor, which the
// plugin fills in:
//
//	func PluginRegister(out *abi.Descriptor) {
//	    out.Name = "passthrough"
//	    out.Description = "Hands written frames straight back to the host"
//	    out.Version = abi.Version
//	    out.Plugin = &passthrough{}
//	}
//
// The version string must match Version exactly; anything else is rejected,
// never coerced.
//
// # Isolation
//
// Each call of the registration entry point must return a fresh CablePlugin
// that owns all of its state. Plugins must not keep mutable package-level
// state, so that several sessions (and several plugins) coexist in one process
// without observing each other.
//
// # Real-time Path
//
// CablePlugin.Write is called from host audio callbacks. It must not block,
// must not allocate unpredictably and must treat invalid input (unknown port,
// foreign sample rate) as a local no-op.
package abi
