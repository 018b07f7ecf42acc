// Package vcable routes live audio from a host application through
// independently built "cable" plugins.
//
// A host adapter owns a Session. The session discovers plugin modules,
// keeps them loaded in a bounded registry and forwards every block the host
// delivers to at most one active plugin, which processes or redirects it,
// usually back to the host through the host's own write callback.
//
// # Getting Started
//
//	cfg := vcable.NewSessionConfig() // VCABLE_PATH, then the build-time default
//	cfg.Builtins = append(cfg.Builtins, loopback.Builtin())
//
//	session := vcable.New(cfg)
//	defer session.Release()
//
//	err := session.SetOptions(abi.Options{
//	    Name:       "my-host",
//	    Write:      receiveFromPlugin,
//	    Ports:      2,
//	    SampleSize: 4,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Index 0 is "off", 1..Len() select a registered plugin.
//	if err := session.SetPlugin(1); err != nil {
//	    log.Printf("plugin unavailable: %v", err)
//	}
//
//	// From the audio callback:
//	session.Write(port, samples, frames, sampleRate)
//
// # Activation
//
// The session is a two-state machine, StateInactive and StateActive.
// SetPlugin always closes the active plugin before opening the next one, and
// a plugin whose Open fails leaves the session inactive. SetOptions re-opens
// the active plugin so configuration changes take effect immediately.
//
// # Real-time Path
//
// Write performs one atomic load and one interface call. It never blocks,
// never takes the session mutex and recovers plugin panics, counting them in
// Stats. While inactive, Write drops the frames.
//
// Control operations are serialized by the session itself, but nothing stops
// a concurrent Write from running inside a plugin that a control operation is
// closing. Hosts quiesce their audio callback before reconfiguring.
//
// # Related Packages
//
//   - abi: the plugin contract (Descriptor, CablePlugin, Options, Version)
//   - loader: discovery, Go plugin loading and the bounded Registry
//   - samplebuffer: the block-size reconciling sample buffer
//   - host: the HostAdapter capability and a reference block adapter
//   - plugins/loopback: a reference cable plugin
//   - config: search paths, YAML configuration and environment overrides
package vcable
