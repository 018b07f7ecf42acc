package samplebuffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

func TestNewCapacity(t *testing.T) {
	tests := []struct {
		name       string
		minFrames  int
		frameWidth int
		expected   int
	}{
		{"below_floor", 256, 4, FloorFrames * 4},
		{"zero_frames", 0, 2, FloorFrames * 2},
		{"at_floor", FloorFrames, 4, FloorFrames * 4},
		{"above_floor", 8192, 4, 8192 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := New(tt.minFrames, tt.frameWidth)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.Cap())
			assert.Equal(t, 0, buf.Len())
			assert.Equal(t, tt.expected, buf.Free())
		})
	}
}

func TestNewInvalidArguments(t *testing.T) {
	_, err := New(1024, 0)
	assert.ErrorIs(t, err, ErrInvalidFrameWidth)

	_, err = New(-1, 4)
	assert.ErrorIs(t, err, ErrInvalidFrameCount)
}

func TestWriteReadRoundTrip(t *testing.T) {
	buf, err := New(0, 1)
	require.NoError(t, err)

	data := sequence(1000)
	require.True(t, buf.Write(data))
	assert.Equal(t, 1000, buf.Len())

	out := make([]byte, 1000)
	n := buf.Read(out)
	assert.Equal(t, 1000, n)
	assert.Equal(t, data, out)
	assert.Equal(t, 0, buf.Len())
}

func TestWriteOverflowRejectedWhole(t *testing.T) {
	buf, err := New(0, 1)
	require.NoError(t, err)

	first := sequence(buf.Cap() - 10)
	require.True(t, buf.Write(first))

	assert.False(t, buf.Write(sequence(11)))
	assert.Equal(t, len(first), buf.Len(), "offset must not change on rejected write")

	out := make([]byte, buf.Cap())
	n := buf.Read(out)
	assert.Equal(t, first, out[:n], "contents must not change on rejected write")

	// A write that exactly fills the buffer is accepted.
	require.True(t, buf.Write(sequence(buf.Cap())))
	assert.Equal(t, 0, buf.Free())
}

func TestReadShiftsRemainder(t *testing.T) {
	buf, err := New(0, 1)
	require.NoError(t, err)

	require.True(t, buf.Write([]byte{1, 2, 3, 4, 5, 6}))

	out := make([]byte, 4)
	assert.Equal(t, 4, buf.Read(out))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
	assert.Equal(t, 2, buf.Len())

	require.True(t, buf.Write([]byte{7, 8}))
	rest := make([]byte, 8)
	n := buf.Read(rest)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{5, 6, 7, 8}, rest[:n])
}

func TestShortReadDoesNotPad(t *testing.T) {
	buf, err := New(0, 1)
	require.NoError(t, err)
	require.True(t, buf.Write([]byte{9, 9}))

	out := bytes.Repeat([]byte{0xAA}, 4)
	n := buf.Read(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{9, 9, 0xAA, 0xAA}, out)
	assert.Equal(t, 0, buf.Len())
}

// 4096 frames of 4 bytes: write 1024 frames, read them back, then an empty read.
func TestExampleBlockCycle(t *testing.T) {
	buf, err := New(4096, 4)
	require.NoError(t, err)
	require.Equal(t, 4096*4, buf.Cap())

	data := sequence(4096)
	require.True(t, buf.Write(data))

	out := make([]byte, 4096)
	require.True(t, buf.Available(len(out)))
	assert.Equal(t, 4096, buf.Read(out))
	assert.Equal(t, data, out)
	assert.Equal(t, 0, buf.Len())

	assert.False(t, buf.Available(len(out)))
	assert.Equal(t, 0, buf.Read(out))
}

func TestReadBlockPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   UnderrunPolicy
		buffered []byte
		wantN    int
		wantOut  []byte
		wantLeft int
	}{
		{"skip_underrun", PolicySkip, []byte{1, 2}, 0, []byte{0xEE, 0xEE, 0xEE, 0xEE}, 2},
		{"zero_pad_underrun", PolicyZeroPad, []byte{1, 2}, 4, []byte{1, 2, 0, 0}, 0},
		{"partial_underrun", PolicyPartial, []byte{1, 2}, 2, []byte{1, 2, 0xEE, 0xEE}, 0},
		{"skip_full_block", PolicySkip, []byte{1, 2, 3, 4, 5}, 4, []byte{1, 2, 3, 4}, 1},
		{"zero_pad_full_block", PolicyZeroPad, []byte{1, 2, 3, 4}, 4, []byte{1, 2, 3, 4}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := New(0, 1)
			require.NoError(t, err)
			require.True(t, buf.Write(tt.buffered))

			out := bytes.Repeat([]byte{0xEE}, 4)
			n := buf.ReadBlock(out, tt.policy)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantOut, out)
			assert.Equal(t, tt.wantLeft, buf.Len())
		})
	}
}

func TestReleaseIdempotent(t *testing.T) {
	buf, err := New(0, 4)
	require.NoError(t, err)
	require.True(t, buf.Write([]byte{1, 2, 3, 4}))

	buf.Release()
	assert.Equal(t, 0, buf.Cap())
	assert.Equal(t, 0, buf.Len())
	assert.False(t, buf.Write([]byte{1}))
	assert.Equal(t, 0, buf.Read(make([]byte, 4)))

	assert.NotPanics(t, buf.Release)

	var nilBuf *Buffer
	assert.NotPanics(t, nilBuf.Release)
}

func TestReset(t *testing.T) {
	buf, err := New(0, 1)
	require.NoError(t, err)
	require.True(t, buf.Write([]byte{1, 2, 3}))
	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, buf.Cap(), buf.Free())
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected UnderrunPolicy
		wantErr  bool
	}{
		{"", PolicySkip, false},
		{"skip", PolicySkip, false},
		{"Zero-Pad", PolicyZeroPad, false},
		{"silence", PolicyZeroPad, false},
		{" partial ", PolicyPartial, false},
		{"drop", PolicySkip, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			policy, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, policy)
		})
	}

	assert.Equal(t, "zero-pad", PolicyZeroPad.String())
	assert.Equal(t, "UnderrunPolicy(9)", UnderrunPolicy(9).String())
}
