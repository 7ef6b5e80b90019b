package clock

import "github.com/jmacd/mtcmidi/mtc"

// Callback is called with every timecode a Source publishes.
type Callback func(tc mtc.Timecode)

type Source interface {
	AddCallback(cb Callback)

	Latest() (mtc.Timecode, bool)
}

// Phase is the position of tc inside its timecode second, in [0, 1].
func Phase(tc mtc.Timecode) float64 {
	n := tc.Rate.Nominal()
	switch {
	case tc.Frame == 0:
		return 0
	case int(tc.Frame) >= n:
		return 1
	default:
		return float64(tc.Frame) / float64(n)
	}
}

// Beats converts tc to a beat position at the given tempo.
func Beats(tc mtc.Timecode, bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return tc.Seconds() * bpm / 60
}
