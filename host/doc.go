// Package host adapts a vcable session to a block-based audio framework.
//
// Adapter is the capability every host integration exposes to its framework:
// one Process call per audio callback and a Close on teardown. Instance is
// the reference implementation. It owns a Session, registers its own write
// callback and keeps one output buffer per port, so a plugin that loops audio
// back is heard on the matching output port.
//
// Per callback, for each port in order, Instance writes the input slice into
// the session and then reads one block for the output slice from its buffer.
// What the output receives when the plugin has not yet returned a full block
// is chosen by Config.Policy:
//
//	samplebuffer.PolicySkip     output left untouched
//	samplebuffer.PolicyZeroPad  available frames followed by silence
//	samplebuffer.PolicyPartial  available frames, rest untouched
//
// Frames returned for an unknown port or at a sample rate other than
// Config.SampleRate are dropped and counted.
package host
