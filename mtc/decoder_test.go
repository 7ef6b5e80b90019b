package mtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fullFrame30 = []byte{0xf0, 0x7f, 0x7f, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04, 0xf7}

	quarterFrames25 = []byte{
		0xf1, 0x04, 0xf1, 0x11, 0xf1, 0x2d, 0xf1, 0x32,
		0xf1, 0x4f, 0xf1, 0x50, 0xf1, 0x6a, 0xf1, 0x72,
	}
)

func feed(t *testing.T, d *Decoder, p []byte) {
	t.Helper()
	n, err := d.Write(p)
	require.NoError(t, err)
	require.Equal(t, len(p), n)
}

func TestDecoder_FullFrame(t *testing.T) {
	d := NewDecoder()
	feed(t, d, fullFrame30)

	require.True(t, d.Available())
	tc, ok := d.Timecode()
	require.True(t, ok)
	assert.Equal(t, Timecode{Rate: Rate30, Hour: 1, Minute: 2, Second: 3, Frame: 4}, tc)
	assert.InDelta(t, 3723.1333, d.Seconds(), 0.0001)
	assert.Equal(t, int64(3723133), d.Millis())
	assert.Equal(t, int64(3723133333), d.Micros())
	assert.Equal(t, int64(111694), d.FrameCount())
	assert.Equal(t, "01:02:03:04", d.String())
}

func TestDecoder_FullFrameByteAtATime(t *testing.T) {
	d := NewDecoder()
	for i, b := range fullFrame30 {
		assert.False(t, d.Available(), "published early at byte %d", i)
		d.Feed(b)
	}
	assert.True(t, d.Available())
	assert.Equal(t, uint8(1), d.Hour())
}

func TestDecoder_QuarterFrames(t *testing.T) {
	d := NewDecoder()
	for i := 0; i < len(quarterFrames25); i += 2 {
		_, ok := d.Timecode()
		assert.False(t, ok)
		assert.False(t, d.Available(), "published after %d quarter frames", i/2)
		feed(t, d, quarterFrames25[i:i+2])
	}

	require.True(t, d.Available())
	assert.Equal(t, Rate25, d.Rate())
	assert.Equal(t, uint8(10), d.Hour())
	assert.Equal(t, uint8(15), d.Minute())
	assert.Equal(t, uint8(45), d.Second())
	assert.Equal(t, uint8(20), d.Frame())
	assert.InDelta(t, 36945.8, d.Seconds(), 1e-9)
	assert.Equal(t, int64(36945800), d.Millis())
	assert.Equal(t, int64(36945*25+20), d.FrameCount())
}

func TestDecoder_QuarterFramesRepeatCycle(t *testing.T) {
	d := NewDecoder()
	feed(t, d, quarterFrames25)
	d.Pop()

	next := QuarterFrames(Timecode{Rate: Rate25, Hour: 10, Minute: 15, Second: 45, Frame: 22})
	feed(t, d, next[:14])
	assert.False(t, d.Available())
	assert.Equal(t, uint8(20), d.Frame())

	feed(t, d, next[14:])
	assert.True(t, d.Available())
	assert.Equal(t, uint8(22), d.Frame())
}

func TestDecoder_QuarterFrameJoinMidCycle(t *testing.T) {
	d := NewDecoder()

	// Pieces 4-7 only: never a complete value.
	feed(t, d, quarterFrames25[8:])
	assert.False(t, d.Available())
	_, ok := d.Timecode()
	assert.False(t, ok)

	// The next full cycle publishes.
	feed(t, d, quarterFrames25)
	assert.True(t, d.Available())
	assert.Equal(t, "10:15:45:20", d.String())
}

func TestDecoder_ResyncKeepsPublished(t *testing.T) {
	d := NewDecoder()
	feed(t, d, fullFrame30)
	d.Pop()
	before, _ := d.Timecode()

	// Wrong sub-ID 2.
	feed(t, d, []byte{0xf0, 0x7f, 0x7f, 0x01, 0x02, 0x61, 0x09, 0x09, 0x09, 0xf7})
	assert.False(t, d.Available())
	after, _ := d.Timecode()
	assert.Equal(t, before, after)
	assert.Equal(t, stateHeader, d.state)

	// A fresh message is accepted immediately.
	feed(t, d, quarterFrames25)
	assert.True(t, d.Available())
	assert.Equal(t, Rate25, d.Rate())
}

func TestDecoder_Resync(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"wrong universal id", []byte{0xf0, 0x7e, 0x7f, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04, 0xf7}},
		{"wrong device id", []byte{0xf0, 0x7f, 0x00, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04, 0xf7}},
		{"wrong sub id 1", []byte{0xf0, 0x7f, 0x7f, 0x02, 0x01, 0x61, 0x02, 0x03, 0x04, 0xf7}},
		{"wrong sub id 2", []byte{0xf0, 0x7f, 0x7f, 0x01, 0x02, 0x61, 0x02, 0x03, 0x04, 0xf7}},
		{"missing eox", []byte{0xf0, 0x7f, 0x7f, 0x01, 0x01, 0x61, 0x02, 0x03, 0x04, 0x00}},
		{"status in data", []byte{0xf0, 0x7f, 0x7f, 0x01, 0x01, 0x61, 0x90, 0x03, 0x04, 0xf7}},
		{"truncated", []byte{0xf0, 0x7f}},
		{"quarter frame status data", []byte{0xf1, 0x90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			feed(t, d, tt.input)
			assert.False(t, d.Available())
			_, ok := d.Timecode()
			assert.False(t, ok)

			feed(t, d, fullFrame30)
			assert.True(t, d.Available())
			assert.Equal(t, "01:02:03:04", d.String())
		})
	}
}

func TestDecoder_LeaderRearmsFullFrame(t *testing.T) {
	d := NewDecoder()
	feed(t, d, []byte{0xf0, 0x7f, 0x7f, 0x01})
	feed(t, d, fullFrame30)
	assert.True(t, d.Available())
	assert.Equal(t, uint8(4), d.Frame())
}

func TestDecoder_FullFrameInterruptsQuarterFrames(t *testing.T) {
	d := NewDecoder()
	feed(t, d, quarterFrames25[:8])
	feed(t, d, fullFrame30)
	require.True(t, d.Available())
	d.Pop()

	// The partial quarter frame cycle was discarded.
	feed(t, d, quarterFrames25[8:])
	assert.False(t, d.Available())
	assert.Equal(t, Rate30, d.Rate())
}

func TestDecoder_InterleavedNoise(t *testing.T) {
	d := NewDecoder()
	noise := []byte{0x90, 0x40, 0x7f}
	for i := 0; i < len(quarterFrames25); i += 2 {
		feed(t, d, noise)
		feed(t, d, quarterFrames25[i:i+2])
	}
	feed(t, d, noise)

	require.True(t, d.Available())
	tc, _ := d.Timecode()
	assert.Equal(t, Timecode{Rate: Rate25, Hour: 10, Minute: 15, Second: 45, Frame: 20}, tc)
}

func TestDecoder_HeaderIgnoresNonLeaders(t *testing.T) {
	d := NewDecoder()
	for b := 0; b < 256; b++ {
		if b == StatusSysEx || b == StatusQuarterFrame {
			continue
		}
		d.Feed(byte(b))
		require.Equal(t, stateHeader, d.state, "byte 0x%02x", b)
	}
	assert.False(t, d.Available())
}

func TestDecoder_AvailablePop(t *testing.T) {
	d := NewDecoder()
	assert.False(t, d.Available())

	feed(t, d, fullFrame30)
	assert.True(t, d.Available())
	assert.True(t, d.Available())

	d.Pop()
	assert.False(t, d.Available())
	assert.Equal(t, "01:02:03:04", d.String())

	feed(t, d, fullFrame30)
	feed(t, d, quarterFrames25)
	assert.True(t, d.Available())
	d.Pop()
	assert.False(t, d.Available())
	assert.Equal(t, "10:15:45:20", d.String())
}

func TestDecoder_AccessorsIdempotent(t *testing.T) {
	d := NewDecoder()
	feed(t, d, quarterFrames25)

	secs := d.Seconds()
	for i := 0; i < 3; i++ {
		assert.Equal(t, uint8(10), d.Hour())
		assert.Equal(t, secs, d.Seconds())
		assert.Equal(t, int64(923645), d.FrameCount())
		assert.Equal(t, "10:15:45:20", d.String())
		assert.True(t, d.Available())
	}
}

// Out-of-range values are published exactly as received.
func TestDecoder_PermissiveValues(t *testing.T) {
	d := NewDecoder()
	feed(t, d, []byte{0xf0, 0x7f, 0x7f, 0x01, 0x01, 0x1f, 61, 63, 31, 0xf7})

	require.True(t, d.Available())
	tc, _ := d.Timecode()
	assert.Equal(t, Timecode{Rate: Rate24, Hour: 31, Minute: 61, Second: 63, Frame: 31}, tc)
	assert.False(t, tc.Valid())

	d.Pop()
	qf := QuarterFrames(Timecode{Rate: Rate30, Hour: 31, Minute: 63, Second: 62, Frame: 31})
	feed(t, d, qf[:])
	require.True(t, d.Available())
	tc, _ = d.Timecode()
	assert.Equal(t, Timecode{Rate: Rate30, Hour: 31, Minute: 63, Second: 62, Frame: 31}, tc)
}

func TestDecoder_DropFrameString(t *testing.T) {
	for _, r := range []Rate{Rate24, Rate25, Rate2997Drop, Rate30} {
		d := NewDecoder()
		ff := FullFrame(Timecode{Rate: r, Hour: 1, Minute: 2, Second: 3, Frame: 4})
		feed(t, d, ff[:])
		if r == Rate2997Drop {
			assert.Equal(t, "01:02:03;04", d.String())
		} else {
			assert.Equal(t, "01:02:03:04", d.String(), "rate %s", r)
		}
	}
}

func TestDecoder_SteadyStateAllocations(t *testing.T) {
	d := NewDecoder()
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = d.Write(fullFrame30)
		_, _ = d.Write(quarterFrames25)
		d.Pop()
	})
	assert.Zero(t, allocs)
}
