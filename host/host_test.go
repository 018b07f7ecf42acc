package host

import (
	"errors"
	"testing"

	"github.com/opd-ai/vcable"
	"github.com/opd-ai/vcable/abi"
	"github.com/opd-ai/vcable/loader"
	"github.com/opd-ai/vcable/plugins/loopback"
	"github.com/opd-ai/vcable/samplebuffer"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noFiles(string) (loader.Module, error) {
	return nil, errors.New("no dynamic modules in tests")
}

func newSession(t *testing.T, builtins ...loader.Builtin) *vcable.Session {
	t.Helper()
	return vcable.New(&vcable.SessionConfig{
		Opener:   loader.OpenerFunc(noFiles),
		Builtins: builtins,
	})
}

func loopbackBuiltin(t *testing.T, blockFrames int) loader.Builtin {
	t.Helper()
	b, err := loopback.NewBuiltin(loopback.Config{BlockFrames: blockFrames, Gain: 1})
	require.NoError(t, err)
	return b
}

// echo returns every write immediately, optionally moved to another port
// or rate.
type echo struct {
	opts      *abi.Options
	rateShift uint32
	port      int
}

func (e *echo) Open(opts *abi.Options) error {
	e.opts = opts
	return nil
}

func (e *echo) Close() error { return nil }

func (e *echo) Write(port int, samples []byte, count int, sampleRate uint32) {
	e.opts.Write(port+e.port, samples, count, sampleRate+e.rateShift, e.opts.UserData)
}

func echoBuiltin(e *echo) loader.Builtin {
	return loader.Builtin{Name: "echo", Register: func(out *abi.Descriptor) {
		out.Name = "echo"
		out.Version = abi.Version
		out.Plugin = e
	}}
}

func frame(b byte) []byte {
	return []byte{b, b, b, b}
}

func block(frames ...byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, frame(f)...)
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"stereo", func(*Config) {}, false},
		{"no name", func(c *Config) { c.Name = "" }, true},
		{"no ports", func(c *Config) { c.Ports = 0 }, true},
		{"too many ports", func(c *Config) { c.Ports = MaxPorts + 1 }, true},
		{"no sample size", func(c *Config) { c.SampleSize = 0 }, true},
		{"no sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"negative plugin", func(c *Config) { c.Plugin = -1 }, true},
		{"negative buffer", func(c *Config) { c.BufferFrames = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Stereo(48000)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}

	mono := Mono(44100)
	assert.Equal(t, 1, mono.Ports)
	assert.Equal(t, uint32(44100), mono.SampleRate)
}

func TestNewRejectsInput(t *testing.T) {
	_, err := New(nil, Stereo(48000))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s := newSession(t)
	defer s.Release()
	_, err = New(s, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoopbackRoundTrip(t *testing.T) {
	s := newSession(t, loopbackBuiltin(t, 4))
	cfg := Stereo(48000)
	inst, err := New(s, cfg)
	require.NoError(t, err)
	defer inst.Close()

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, 1, active)

	out := [][]byte{block(0xee, 0xee), block(0xee, 0xee)}
	process := func(in0, in1 []byte) {
		inst.Process([][]byte{in0, in1}, out, 2)
	}

	// Two frames do not fill a loopback block of four, so nothing comes back.
	process(block(1, 2), block(11, 12))
	assert.Equal(t, block(0xee, 0xee), out[0], "skip leaves the output untouched")
	assert.Equal(t, Stats{Underruns: 2}, inst.Stats())

	// The first full block comes back one callback late.
	process(block(3, 4), block(13, 14))
	assert.Equal(t, block(1, 2), out[0])
	assert.Equal(t, block(11, 12), out[1])

	process(block(5, 6), block(15, 16))
	assert.Equal(t, block(3, 4), out[0])
	assert.Equal(t, block(13, 14), out[1])

	assert.Equal(t, Stats{Produced: 4, Underruns: 2}, inst.Stats())
	assert.Equal(t, uint64(6), s.Stats().Dispatched)
}

func TestUnderrunPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy samplebuffer.UnderrunPolicy
		want   []byte
	}{
		{"skip", samplebuffer.PolicySkip, block(0xee, 0xee, 0xee, 0xee)},
		{"zero pad", samplebuffer.PolicyZeroPad, block(1, 2, 0, 0)},
		{"partial", samplebuffer.PolicyPartial, block(1, 2, 0xee, 0xee)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Loopback returns two-frame blocks, the host reads four.
			s := newSession(t, loopbackBuiltin(t, 2))
			cfg := Mono(48000)
			cfg.Policy = tt.policy
			inst, err := New(s, cfg)
			require.NoError(t, err)
			defer inst.Close()

			out := [][]byte{block(0xee, 0xee, 0xee, 0xee)}
			inst.Process([][]byte{block(1, 2, 3)}, out, 3)
			assert.Equal(t, tt.want[:12], out[0][:12])
			assert.Equal(t, uint64(1), inst.Stats().Underruns)
		})
	}
}

func TestReturnedFramesAreFiltered(t *testing.T) {
	tests := []struct {
		name string
		echo *echo
	}{
		{"foreign rate", &echo{rateShift: 1}},
		{"foreign port", &echo{port: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, echoBuiltin(tt.echo))
			inst, err := New(s, Mono(48000))
			require.NoError(t, err)
			defer inst.Close()

			out := [][]byte{block(0xee)}
			inst.Process([][]byte{block(1)}, out, 1)

			assert.Equal(t, block(0xee), out[0])
			assert.Equal(t, Stats{Underruns: 1, Dropped: 1}, inst.Stats())
		})
	}
}

func TestEchoIsHeardInSameCallback(t *testing.T) {
	s := newSession(t, echoBuiltin(&echo{}))
	inst, err := New(s, Mono(48000))
	require.NoError(t, err)
	defer inst.Close()

	out := [][]byte{make([]byte, 4)}
	inst.Process([][]byte{block(7)}, out, 1)
	assert.Equal(t, block(7), out[0])
	assert.Equal(t, Stats{Produced: 1}, inst.Stats())
}

func TestMissingPluginLeavesInstanceInactive(t *testing.T) {
	s := newSession(t)
	inst, err := New(s, Stereo(48000))
	require.NoError(t, err)
	defer inst.Close()

	assert.Equal(t, vcable.StateInactive, s.State())

	out := [][]byte{block(9), block(9)}
	inst.Process([][]byte{block(1), block(1)}, out, 1)
	assert.Equal(t, block(9), out[0])
	assert.Equal(t, uint64(2), inst.Stats().Underruns)
}

func TestProcessSkipsMissingPorts(t *testing.T) {
	s := newSession(t, echoBuiltin(&echo{}))
	inst, err := New(s, Stereo(48000))
	require.NoError(t, err)
	defer inst.Close()

	// Only port 0 has an input, port 1 has a short output slice.
	out := [][]byte{make([]byte, 4), make([]byte, 2)}
	inst.Process([][]byte{block(3)}, out, 1)
	inst.Process(nil, nil, 0)

	assert.Equal(t, block(3), out[0])
	assert.Equal(t, []byte{0, 0}, out[1])
	assert.Equal(t, uint64(1), s.Stats().Dispatched)
	assert.Equal(t, Stats{Produced: 1}, inst.Stats())
}

func TestSelectPluginDiscardsBufferedAudio(t *testing.T) {
	s := newSession(t, loopbackBuiltin(t, 2), echoBuiltin(&echo{}))
	inst, err := New(s, Mono(48000))
	require.NoError(t, err)
	defer inst.Close()

	scratch := [][]byte{make([]byte, 4)}
	inst.Process([][]byte{block(1)}, scratch, 1)
	inst.Process([][]byte{block(2)}, scratch, 1)
	require.Equal(t, block(1), scratch[0])

	// Frame 2 is still buffered when the plugin changes.
	require.NoError(t, inst.SelectPlugin(0))
	out := [][]byte{make([]byte, 4)}
	inst.Process([][]byte{block(5)}, out, 1)
	assert.Equal(t, make([]byte, 4), out[0], "nothing left from the previous plugin")

	assert.ErrorIs(t, inst.SelectPlugin(3), vcable.ErrIndexOutOfRange)

	require.NoError(t, inst.SelectPlugin(2))
	inst.Process([][]byte{block(6)}, out, 1)
	assert.Equal(t, block(6), out[0])
}

func TestCloseReleasesSession(t *testing.T) {
	s := newSession(t, loopbackBuiltin(t, 4))
	inst, err := New(s, Stereo(48000))
	require.NoError(t, err)

	assert.Same(t, s, inst.Session())
	assert.Equal(t, "vcable-stereo", inst.Config().Name)

	require.NoError(t, inst.Close())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, vcable.StateInactive, s.State())

	var _ Adapter = inst
}

func atInfoLevel(t *testing.T) {
	t.Helper()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.InfoLevel)
	t.Cleanup(func() { logrus.SetLevel(level) })
}

func TestProcessDoesNotAllocate(t *testing.T) {
	atInfoLevel(t)

	tests := []struct {
		name    string
		builtin func(t *testing.T) loader.Builtin
		want    func(*testing.T, Stats)
	}{
		{
			name:    "loopback",
			builtin: func(t *testing.T) loader.Builtin { return loopbackBuiltin(t, 64) },
			want: func(t *testing.T, st Stats) {
				assert.NotZero(t, st.Produced)
				assert.Zero(t, st.Dropped)
			},
		},
		{
			name:    "foreign rate dropped",
			builtin: func(*testing.T) loader.Builtin { return echoBuiltin(&echo{rateShift: 1}) },
			want:    func(t *testing.T, st Stats) { assert.NotZero(t, st.Dropped) },
		},
		{
			name:    "foreign port dropped",
			builtin: func(*testing.T) loader.Builtin { return echoBuiltin(&echo{port: 3}) },
			want:    func(t *testing.T, st Stats) { assert.NotZero(t, st.Dropped) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, tt.builtin(t))
			inst, err := New(s, Stereo(48000))
			require.NoError(t, err)
			defer inst.Close()

			in := [][]byte{make([]byte, 64*4), make([]byte, 64*4)}
			out := [][]byte{make([]byte, 64*4), make([]byte, 64*4)}
			allocs := testing.AllocsPerRun(100, func() {
				inst.Process(in, out, 64)
			})
			assert.Zero(t, allocs)
			tt.want(t, inst.Stats())
		})
	}

	t.Run("inactive", func(t *testing.T) {
		s := newSession(t)
		inst, err := New(s, Mono(48000))
		require.NoError(t, err)
		defer inst.Close()

		in := [][]byte{make([]byte, 64*4)}
		out := [][]byte{make([]byte, 64*4)}
		allocs := testing.AllocsPerRun(100, func() {
			inst.Process(in, out, 64)
		})
		assert.Zero(t, allocs)
	})
}

func TestOversizedBlockWarnsOnce(t *testing.T) {
	hook := logtest.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	s := newSession(t, echoBuiltin(&echo{}))
	inst, err := New(s, Mono(48000))
	require.NoError(t, err)
	defer inst.Close()

	// The default output buffer holds samplebuffer.FloorFrames frames.
	frames := samplebuffer.FloorFrames + 1
	in := [][]byte{make([]byte, frames*4)}
	out := [][]byte{make([]byte, frames*4)}
	inst.Process(in, out, frames)
	inst.Process(in, out, frames)

	st := inst.Stats()
	assert.Equal(t, uint64(2), st.Underruns)
	assert.Equal(t, uint64(2), st.Dropped, "returned block is larger than the buffer")

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["function"] == "Instance.Process" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}
