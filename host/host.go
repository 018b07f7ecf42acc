package host

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/vcable"
	"github.com/opd-ai/vcable/abi"
	"github.com/opd-ai/vcable/samplebuffer"
	"github.com/sirupsen/logrus"
)

// MaxPorts is the largest number of ports an Instance exposes.
const MaxPorts = 256

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("host: invalid config")

// Adapter is the capability a host integration provides to its audio
// framework. Process runs on the real-time thread once per callback with one
// input and one output slice per port, frames samples each.
type Adapter interface {
	Process(inputs, outputs [][]byte, frames int)
	Close() error
}

// Config describes one host instance.
type Config struct {
	// Name is the client name handed to plugins.
	Name string
	// Ports is the number of input/output port pairs.
	Ports int
	// SampleSize is the width of one sample in bytes.
	SampleSize int
	// SampleRate is the host's rate. Returned frames at another rate are
	// dropped.
	SampleRate uint32
	// Plugin is selected at creation. 0 leaves the session inactive.
	Plugin int
	// Policy decides what an output port receives on underrun.
	Policy samplebuffer.UnderrunPolicy
	// BufferFrames is the minimum capacity of each output buffer. It must
	// hold the largest block passed to Process, otherwise that port never
	// fills and every callback underruns.
	BufferFrames int
}

// Mono returns the layout of a single input/output pair of 32-bit float
// samples.
func Mono(sampleRate uint32) Config {
	return Config{Name: "vcable-mono", Ports: 1, SampleSize: 4, SampleRate: sampleRate, Plugin: 1}
}

// Stereo returns the layout of two input/output pairs of 32-bit float
// samples.
func Stereo(sampleRate uint32) Config {
	return Config{Name: "vcable-stereo", Ports: 2, SampleSize: 4, SampleRate: sampleRate, Plugin: 1}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case c.Ports < 1 || c.Ports > MaxPorts:
		return fmt.Errorf("%w: ports must be in [1, %d], got %d", ErrInvalidConfig, MaxPorts, c.Ports)
	case c.SampleSize < 1:
		return fmt.Errorf("%w: sample size must be positive, got %d", ErrInvalidConfig, c.SampleSize)
	case c.SampleRate == 0:
		return fmt.Errorf("%w: sample rate is required", ErrInvalidConfig)
	case c.Plugin < 0:
		return fmt.Errorf("%w: plugin index must not be negative, got %d", ErrInvalidConfig, c.Plugin)
	case c.BufferFrames < 0:
		return fmt.Errorf("%w: buffer frames must not be negative, got %d", ErrInvalidConfig, c.BufferFrames)
	}
	return nil
}

// Stats are the counters of one Instance.
type Stats struct {
	// Produced counts output blocks filled from plugin audio.
	Produced uint64
	// Underruns counts output blocks that were short of plugin audio.
	Underruns uint64
	// Dropped counts returned writes that were discarded.
	Dropped uint64
}

// Instance is the reference block adapter. Each Process call writes every
// input port into the session, then fills every output port from the audio
// the active plugin returned, applying the underrun policy.
type Instance struct {
	session *vcable.Session
	cfg     Config
	out     []*samplebuffer.Buffer

	produced  atomic.Uint64
	underruns atomic.Uint64
	dropped   atomic.Uint64
	oversized atomic.Bool
}

// New configures session for cfg and selects cfg.Plugin. The instance owns
// session from then on and releases it in Close. A plugin that cannot be
// activated is logged and leaves the instance running inactive, so the host
// keeps producing audio.
func New(session *vcable.Session, cfg Config) (*Instance, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inst := &Instance{
		session: session,
		cfg:     cfg,
		out:     make([]*samplebuffer.Buffer, cfg.Ports),
	}
	for i := range inst.out {
		buf, err := samplebuffer.New(cfg.BufferFrames, cfg.SampleSize)
		if err != nil {
			inst.releaseBuffers()
			return nil, fmt.Errorf("host: output %d: %w", i, err)
		}
		inst.out[i] = buf
	}

	err := session.SetOptions(abi.Options{
		UserData:   inst,
		Name:       cfg.Name,
		Write:      receive,
		Ports:      cfg.Ports,
		SampleSize: cfg.SampleSize,
	})
	if err != nil {
		inst.releaseBuffers()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "host.New",
		"session_id":  session.ID(),
		"name":        cfg.Name,
		"ports":       cfg.Ports,
		"sample_size": cfg.SampleSize,
		"sample_rate": cfg.SampleRate,
		"policy":      cfg.Policy.String(),
	}).Info("Host instance created")

	if cfg.Plugin > 0 {
		if err := inst.SelectPlugin(cfg.Plugin); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "host.New",
				"session_id": session.ID(),
				"plugin":     cfg.Plugin,
				"error":      err.Error(),
			}).Warn("Initial plugin unavailable, instance is inactive")
		}
	}

	return inst, nil
}

// Session returns the session driven by the instance.
func (i *Instance) Session() *vcable.Session {
	return i.session
}

// Config returns the instance configuration.
func (i *Instance) Config() Config {
	return i.cfg
}

// SelectPlugin activates plugin index (0 deactivates) and discards audio
// buffered from the previous plugin. Call it only while Process is not
// running.
func (i *Instance) SelectPlugin(index int) error {
	if err := i.session.SetPlugin(index); err != nil {
		return err
	}
	for _, b := range i.out {
		b.Reset()
	}
	return nil
}

// Process implements Adapter. Ports missing from inputs or outputs, or
// slices shorter than frames samples, are skipped.
func (i *Instance) Process(inputs, outputs [][]byte, frames int) {
	if frames <= 0 {
		return
	}
	size := frames * i.cfg.SampleSize

	for port := 0; port < i.cfg.Ports; port++ {
		if port < len(inputs) && len(inputs[port]) >= size {
			i.session.Write(port, inputs[port][:size], frames, i.cfg.SampleRate)
		}

		if port >= len(outputs) || len(outputs[port]) < size {
			continue
		}
		buf := i.out[port]
		if size > buf.Cap() {
			i.warnOversized(frames, buf.Cap())
		}
		full := buf.Available(size)
		buf.ReadBlock(outputs[port][:size], i.cfg.Policy)
		if full {
			i.produced.Add(1)
		} else {
			i.underruns.Add(1)
		}
	}
}

// Stats returns a snapshot of the instance counters.
func (i *Instance) Stats() Stats {
	return Stats{
		Produced:  i.produced.Load(),
		Underruns: i.underruns.Load(),
		Dropped:   i.dropped.Load(),
	}
}

// Close releases the session and the output buffers.
func (i *Instance) Close() error {
	err := i.session.Release()
	i.releaseBuffers()

	logrus.WithFields(logrus.Fields{
		"function":   "Instance.Close",
		"session_id": i.session.ID(),
		"produced":   i.produced.Load(),
		"underruns":  i.underruns.Load(),
		"dropped":    i.dropped.Load(),
	}).Info("Host instance closed")

	return err
}

// warnOversized logs the first callback larger than the output buffers.
func (i *Instance) warnOversized(frames, capacity int) {
	if !i.oversized.CompareAndSwap(false, true) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":       "Instance.Process",
		"session_id":     i.session.ID(),
		"frames":         frames,
		"capacity_bytes": capacity,
		"sample_size":    i.cfg.SampleSize,
	}).Warn("Callback block exceeds output buffer, raise BufferFrames")
}

func (i *Instance) releaseBuffers() {
	for _, b := range i.out {
		b.Release()
	}
}

// receive is the write callback registered with the session. It buffers
// frames the plugin returns for the next Process call.
func receive(port int, samples []byte, count int, sampleRate uint32, userData any) {
	inst, ok := userData.(*Instance)
	if !ok {
		return
	}

	if port < 0 || port >= len(inst.out) || sampleRate != inst.cfg.SampleRate || count < 0 {
		inst.drop(port, count, sampleRate, "foreign port or rate")
		return
	}
	n := count * inst.cfg.SampleSize
	if n > len(samples) {
		inst.drop(port, count, sampleRate, "short sample slice")
		return
	}
	if !inst.out[port].Write(samples[:n]) {
		inst.drop(port, count, sampleRate, "output buffer full")
	}
}

func (i *Instance) drop(port, count int, sampleRate uint32, reason string) {
	i.dropped.Add(1)
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":    "host.receive",
		"port":        port,
		"count":       count,
		"sample_rate": sampleRate,
		"reason":      reason,
	}).Debug("Dropped returned frames")
}
