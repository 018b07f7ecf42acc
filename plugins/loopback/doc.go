// Package loopback is the reference cable plugin.
//
// An instance accepts up to MaxPorts ports. Frames written to a port are
// buffered and handed back to the host through abi.Options.Write once a full
// block of Config.BlockFrames frames is available, so a host sees its own
// audio again in blocks of a fixed size regardless of the block size it
// writes with. An optional gain stage scales 16-bit integer and 32-bit float
// samples.
//
// The instance locks to the sample rate of the first write after Open.
// Writes with another rate, an invalid port or a short sample slice are
// dropped and counted in Stats.
//
// # Registration
//
// Register is a valid registration entry point. Hosts linking the plugin
// add it as a builtin:
//
//	cfg := vcable.NewSessionConfig()
//	cfg.Builtins = append(cfg.Builtins, loopback.Builtin())
//
// The examples/loopback_plugin command wraps it for -buildmode=plugin.
package loopback
