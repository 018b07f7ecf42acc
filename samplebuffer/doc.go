// Package samplebuffer implements the fixed-capacity byte buffer that
// reconciles mismatched callback block sizes between a host and a cable plugin.
//
// Audio arrives from two independent callback sources: the host's block size
// and the plugin's internal block size. A Buffer absorbs the difference without
// ever reallocating on the real-time path.
//
// # Overflow and Underrun
//
// A write that does not fit in the remaining capacity is rejected in full;
// under persistent overflow the newest data is lost rather than growing the
// buffer or blocking the writer:
//
//	buf, err := samplebuffer.New(blockFrames, 4)
//	if err != nil {
//	    return err
//	}
//	buf.Write(samples) // false when the whole write was dropped
//
// Read copies at most Len bytes. Callers reading fixed-size blocks choose how
// to handle a shortfall through an UnderrunPolicy:
//
//	n := buf.ReadBlock(out, samplebuffer.PolicySkip)
//	if n == 0 {
//	    // not enough data yet, one block of latency is added
//	}
//
// # Thread Safety
//
// A Buffer provides no synchronization. It is meant to be used as a
// single-producer/single-consumer structure per port, driven from one calling
// thread, or guarded by the caller.
package samplebuffer
