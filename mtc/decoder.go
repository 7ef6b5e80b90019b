package mtc

type state uint8

const (
	stateHeader state = iota
	stateFullUniversal
	stateFullDevice
	stateFullSubID1
	stateFullSubID2
	stateFullHour
	stateFullMinute
	stateFullSecond
	stateFullFrame
	stateFullEOX
	stateQuarterValue
)

// allPieces marks a quarter frame cycle in which every piece arrived.
const allPieces = 1<<NumPieces - 1

// assembly is the in-flight message.  It is never read as a Timecode
// until the grammar that fills it has completed.
type assembly struct {
	tc     Timecode
	pieces uint8 // quarter frame pieces received, bit n for piece n
}

func (a *assembly) reset() {
	*a = assembly{}
}

// Decoder is a byte-at-a-time MTC state machine.  It accepts interleaved
// Full Frame and Quarter Frame messages and publishes the last complete
// Timecode.  Bytes that break either grammar silently return it to the
// header state without disturbing the published value.
//
// A Decoder is not safe for concurrent use; see Slot for handing
// decoded values to another goroutine.
type Decoder struct {
	state     state
	buf       assembly
	published Timecode
	seen      bool
	unread    bool
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one byte.
func (d *Decoder) Feed(b byte) {
	switch b {
	case StatusSysEx:
		d.buf.reset()
		d.state = stateFullUniversal
		return
	case StatusQuarterFrame:
		if d.state != stateHeader {
			d.buf.reset()
		}
		d.state = stateQuarterValue
		return
	}

	switch d.state {
	case stateHeader:
		// Anything but a message leader is ignored.

	case stateFullUniversal:
		d.expect(b, UniversalRealTime, stateFullDevice)
	case stateFullDevice:
		d.expect(b, AllCall, stateFullSubID1)
	case stateFullSubID1:
		d.expect(b, SubIDTimeCode, stateFullSubID2)
	case stateFullSubID2:
		d.expect(b, SubIDFullMessage, stateFullHour)

	case stateFullHour:
		if d.data(b) {
			d.buf.tc.Rate = Rate(b>>5) & 0x3
			d.buf.tc.Hour = b & 0x1f
			d.state = stateFullMinute
		}
	case stateFullMinute:
		if d.data(b) {
			d.buf.tc.Minute = b
			d.state = stateFullSecond
		}
	case stateFullSecond:
		if d.data(b) {
			d.buf.tc.Second = b
			d.state = stateFullFrame
		}
	case stateFullFrame:
		if d.data(b) {
			d.buf.tc.Frame = b
			d.state = stateFullEOX
		}
	case stateFullEOX:
		if b == StatusEOX {
			d.publish(d.buf.tc)
		}
		d.abort()

	case stateQuarterValue:
		d.state = stateHeader
		if d.data(b) {
			d.quarter(b)
		}
	}
}

// Write feeds every byte of p in order.  It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		d.Feed(b)
	}
	return len(p), nil
}

func (d *Decoder) expect(b, want byte, next state) {
	if b != want {
		d.abort()
		return
	}
	d.state = next
}

// data reports whether b is a MIDI data byte, aborting the message if not.
func (d *Decoder) data(b byte) bool {
	if b&0x80 != 0 {
		d.abort()
		return false
	}
	return true
}

func (d *Decoder) abort() {
	d.state = stateHeader
	d.buf.reset()
}

func (d *Decoder) quarter(b byte) {
	piece := (b >> 4) & 0x7
	v := b & 0x0f
	tc := &d.buf.tc

	switch piece {
	case 0:
		tc.Frame = tc.Frame&0xf0 | v
	case 1:
		tc.Frame = tc.Frame&0x0f | (v&0x1)<<4
	case 2:
		tc.Second = tc.Second&0xf0 | v
	case 3:
		tc.Second = tc.Second&0x0f | (v&0x3)<<4
	case 4:
		tc.Minute = tc.Minute&0xf0 | v
	case 5:
		tc.Minute = tc.Minute&0x0f | (v&0x3)<<4
	case 6:
		tc.Hour = tc.Hour&0xf0 | v
	case 7:
		tc.Hour = tc.Hour&0x0f | (v&0x1)<<4
		tc.Rate = Rate(v>>1) & 0x3
	}
	d.buf.pieces |= 1 << piece

	if piece == NumPieces-1 {
		// Joining mid-cycle leaves earlier pieces missing.
		if d.buf.pieces == allPieces {
			d.publish(*tc)
		}
		d.buf.reset()
	}
}

func (d *Decoder) publish(tc Timecode) {
	d.published = tc
	d.seen = true
	d.unread = true
}

// Available reports whether a Timecode was published since the last Pop.
func (d *Decoder) Available() bool {
	return d.unread
}

// Pop marks the published Timecode as read.  The value stays readable.
func (d *Decoder) Pop() {
	d.unread = false
}

// Timecode returns the last published value and whether one exists.
func (d *Decoder) Timecode() (Timecode, bool) {
	return d.published, d.seen
}

func (d *Decoder) Rate() Rate        { return d.published.Rate }
func (d *Decoder) Hour() uint8       { return d.published.Hour }
func (d *Decoder) Minute() uint8     { return d.published.Minute }
func (d *Decoder) Second() uint8     { return d.published.Second }
func (d *Decoder) Frame() uint8      { return d.published.Frame }
func (d *Decoder) Seconds() float64  { return d.published.Seconds() }
func (d *Decoder) Millis() int64     { return d.published.Millis() }
func (d *Decoder) Micros() int64     { return d.published.Micros() }
func (d *Decoder) FrameCount() int64 { return d.published.FrameCount() }
func (d *Decoder) String() string    { return d.published.String() }
