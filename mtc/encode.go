package mtc

// FullFrame encodes t as the 10-byte Full Frame SysEx message.
func FullFrame(t Timecode) [10]byte {
	return [10]byte{
		StatusSysEx, UniversalRealTime, AllCall, SubIDTimeCode, SubIDFullMessage,
		byte(t.Rate&0x3)<<5 | t.Hour&0x1f,
		t.Minute & 0x7f,
		t.Second & 0x7f,
		t.Frame & 0x7f,
		StatusEOX,
	}
}

// QuarterFrame returns the data byte of quarter frame piece (0-7) for t.
func QuarterFrame(t Timecode, piece int) byte {
	piece &= NumPieces - 1

	var v byte
	switch piece {
	case 0:
		v = t.Frame & 0xf
	case 1:
		v = t.Frame >> 4 & 0x1
	case 2:
		v = t.Second & 0xf
	case 3:
		v = t.Second >> 4 & 0x3
	case 4:
		v = t.Minute & 0xf
	case 5:
		v = t.Minute >> 4 & 0x3
	case 6:
		v = t.Hour & 0xf
	case 7:
		v = t.Hour>>4&0x1 | byte(t.Rate&0x3)<<1
	}
	return byte(piece)<<4 | v
}

// QuarterFrames encodes a full cycle of eight status/data pairs.
func QuarterFrames(t Timecode) [2 * NumPieces]byte {
	var out [2 * NumPieces]byte
	for i := 0; i < NumPieces; i++ {
		out[2*i] = StatusQuarterFrame
		out[2*i+1] = QuarterFrame(t, i)
	}
	return out
}
