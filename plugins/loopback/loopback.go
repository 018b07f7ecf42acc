package loopback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/opd-ai/vcable/abi"
	"github.com/opd-ai/vcable/loader"
	"github.com/opd-ai/vcable/samplebuffer"
	"github.com/sirupsen/logrus"
)

const (
	// Name is the registered plugin name.
	Name = "loopback"

	// MaxPorts is the largest number of ports an instance accepts.
	MaxPorts = 256

	// DefaultBlockFrames is the block size handed back to the host.
	DefaultBlockFrames = 256

	// MaxGain is the largest accepted linear gain (about +12dB).
	MaxGain = 4.0
)

var (
	// ErrTooManyPorts indicates options requesting more than MaxPorts ports.
	ErrTooManyPorts = errors.New("loopback: too many ports")

	// ErrInvalidSampleSize indicates a sample width the instance cannot handle.
	ErrInvalidSampleSize = errors.New("loopback: invalid sample size")

	// ErrInvalidConfig indicates an out of range Config field.
	ErrInvalidConfig = errors.New("loopback: invalid config")
)

// Config tunes a loopback instance.
type Config struct {
	// BlockFrames is the number of frames per block handed back to the host.
	BlockFrames int
	// Gain scales the returned samples. 1 returns them untouched, 0 mutes.
	// Any other value requires 16-bit integer or 32-bit float samples.
	Gain float64
}

// DefaultConfig returns a unity-gain configuration with DefaultBlockFrames.
func DefaultConfig() Config {
	return Config{BlockFrames: DefaultBlockFrames, Gain: 1}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.BlockFrames <= 0 {
		return fmt.Errorf("%w: block frames must be positive, got %d", ErrInvalidConfig, c.BlockFrames)
	}
	if c.Gain < 0 || c.Gain > MaxGain || math.IsNaN(c.Gain) {
		return fmt.Errorf("%w: gain must be in [0, %.1f], got %f", ErrInvalidConfig, MaxGain, c.Gain)
	}
	return nil
}

// Stats are the counters of one instance.
type Stats struct {
	// Blocks counts blocks handed back to the host.
	Blocks uint64
	// Dropped counts writes that were discarded.
	Dropped uint64
	// Clipped counts samples limited by the gain stage.
	Clipped uint64
	// SampleRate is the rate the instance locked to, 0 before the first write.
	SampleRate uint32
}

// Plugin loops every port back to the host in fixed-size blocks.
//
// Writes are accumulated per port. Whenever a full block is buffered it is
// passed to the host's write callback with the locked sample rate. The
// instance is not synchronized: Open and Close must not race with Write.
type Plugin struct {
	cfg Config

	opts  *abi.Options
	bufs  []*samplebuffer.Buffer
	block []byte

	rate    atomic.Uint32
	blocks  atomic.Uint64
	dropped atomic.Uint64
	clipped atomic.Uint64
}

// New creates a closed instance.
func New(cfg Config) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":     "loopback.New",
			"block_frames": cfg.BlockFrames,
			"gain":         cfg.Gain,
			"error":        err.Error(),
		}).Error("Invalid loopback configuration")
		return nil, err
	}
	return &Plugin{cfg: cfg}, nil
}

// Open allocates one buffer per port. Frames buffered by an earlier open
// are discarded.
func (p *Plugin) Open(opts *abi.Options) error {
	p.reset()

	if opts.Ports <= 0 || opts.Ports > MaxPorts {
		return fmt.Errorf("%w: %d requested, %d maximum", ErrTooManyPorts, opts.Ports, MaxPorts)
	}
	if opts.SampleSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleSize, opts.SampleSize)
	}
	if p.cfg.Gain != 1 && p.cfg.Gain != 0 && opts.SampleSize != 2 && opts.SampleSize != 4 {
		return fmt.Errorf("%w: gain needs 2 or 4 byte samples, got %d", ErrInvalidSampleSize, opts.SampleSize)
	}

	bufs := make([]*samplebuffer.Buffer, opts.Ports)
	for i := range bufs {
		buf, err := samplebuffer.New(2*p.cfg.BlockFrames, opts.SampleSize)
		if err != nil {
			releaseAll(bufs)
			return fmt.Errorf("loopback: port %d: %w", i, err)
		}
		bufs[i] = buf
	}

	o := *opts
	p.opts = &o
	p.bufs = bufs
	p.block = make([]byte, p.cfg.BlockFrames*opts.SampleSize)
	p.rate.Store(0)

	logrus.WithFields(logrus.Fields{
		"function":     "Plugin.Open",
		"plugin":       Name,
		"client":       opts.Name,
		"ports":        opts.Ports,
		"sample_size":  opts.SampleSize,
		"block_frames": p.cfg.BlockFrames,
		"gain":         p.cfg.Gain,
	}).Info("Loopback opened")

	return nil
}

// Close releases the port buffers. Closing a closed instance does nothing.
func (p *Plugin) Close() error {
	if p.opts == nil {
		return nil
	}
	p.reset()

	logrus.WithFields(logrus.Fields{
		"function": "Plugin.Close",
		"plugin":   Name,
		"blocks":   p.blocks.Load(),
		"dropped":  p.dropped.Load(),
	}).Info("Loopback closed")

	return nil
}

func (p *Plugin) reset() {
	releaseAll(p.bufs)
	p.opts, p.bufs, p.block = nil, nil, nil
}

// Write buffers count samples for port and returns every complete block.
func (p *Plugin) Write(port int, samples []byte, count int, sampleRate uint32) {
	opts := p.opts
	if opts == nil || port < 0 || port >= len(p.bufs) || count < 0 {
		p.drop(port, count, "not accepted")
		return
	}

	n := count * opts.SampleSize
	if n > len(samples) {
		p.drop(port, count, "short sample slice")
		return
	}

	locked := sampleRate
	if !p.rate.CompareAndSwap(0, sampleRate) {
		locked = p.rate.Load()
	}
	if sampleRate != locked {
		p.drop(port, count, "sample rate mismatch")
		return
	}

	buf := p.bufs[port]
	if !buf.Write(samples[:n]) {
		p.drop(port, count, "buffer full")
		return
	}

	for buf.Available(len(p.block)) {
		buf.Read(p.block)
		p.applyGain(p.block, opts.SampleSize)
		p.blocks.Add(1)
		opts.Write(port, p.block, p.cfg.BlockFrames, locked, opts.UserData)
	}
}

// Stats returns a snapshot of the instance counters.
func (p *Plugin) Stats() Stats {
	return Stats{
		Blocks:     p.blocks.Load(),
		Dropped:    p.dropped.Load(),
		Clipped:    p.clipped.Load(),
		SampleRate: p.rate.Load(),
	}
}

// drop runs on the audio thread; the entry is only built when Debug is on.
func (p *Plugin) drop(port, count int, reason string) {
	p.dropped.Add(1)
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "Plugin.Write",
		"plugin":   Name,
		"port":     port,
		"count":    count,
		"reason":   reason,
	}).Debug("Loopback dropped write")
}

// applyGain scales block in place, limiting each sample to its range.
func (p *Plugin) applyGain(block []byte, sampleSize int) {
	gain := p.cfg.Gain
	switch {
	case gain == 1:
		return
	case gain == 0:
		clear(block)
		return
	}

	clipped := 0
	switch sampleSize {
	case 2:
		for i := 0; i+2 <= len(block); i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(block[i:]))) * gain
			if v > math.MaxInt16 {
				v = math.MaxInt16
				clipped++
			} else if v < math.MinInt16 {
				v = math.MinInt16
				clipped++
			}
			binary.LittleEndian.PutUint16(block[i:], uint16(int16(v)))
		}
	case 4:
		for i := 0; i+4 <= len(block); i += 4 {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(block[i:]))) * gain
			if v > 1 {
				v = 1
				clipped++
			} else if v < -1 {
				v = -1
				clipped++
			}
			binary.LittleEndian.PutUint32(block[i:], math.Float32bits(float32(v)))
		}
	}

	if clipped > 0 {
		p.clipped.Add(uint64(clipped))
	}
}

func releaseAll(bufs []*samplebuffer.Buffer) {
	for _, b := range bufs {
		b.Release()
	}
}

// Describe fills out with the loopback descriptor for p.
func Describe(out *abi.Descriptor, p *Plugin) {
	out.Name = Name
	out.Description = "Loops every port back to the host in fixed-size blocks"
	out.Version = abi.Version
	out.Plugin = p
}

// Register is the registration entry point for a default instance. Every
// call yields a fresh instance.
func Register(out *abi.Descriptor) {
	Describe(out, &Plugin{cfg: DefaultConfig()})
}

// Registrar validates cfg once and returns a registration entry point that
// creates a fresh instance with cfg on every call.
func Registrar(cfg Config) (abi.RegisterFunc, error) {
	if _, err := New(cfg); err != nil {
		return nil, err
	}
	return func(out *abi.Descriptor) {
		Describe(out, &Plugin{cfg: cfg})
	}, nil
}

// Builtin returns the default loopback as a module linked into the binary.
func Builtin() loader.Builtin {
	return loader.Builtin{Name: "vcable-" + Name, Register: Register}
}

// NewBuiltin returns a builtin module registering instances configured by cfg.
func NewBuiltin(cfg Config) (loader.Builtin, error) {
	register, err := Registrar(cfg)
	if err != nil {
		return loader.Builtin{}, err
	}
	return loader.Builtin{Name: "vcable-" + Name, Register: register}, nil
}
