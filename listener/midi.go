package listener

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	MIDIStatusSystem   = 0xf0
	MIDIStatusRealTime = 0xf8
)

var ErrNoInput = errors.New("listener: no MIDI input ports")

// discover finds an input through whichever driver the binary registered.
func discover(name string) (drivers.In, error) {
	if len(midi.GetInPorts()) == 0 {
		return nil, ErrNoInput
	}

	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("can't find input %q: %w", name, err)
	}
	return in, nil
}

// Ports returns the names of the available MIDI inputs.
func Ports() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// CloseDriver releases the MIDI driver.  Call it once on exit.
func CloseDriver() {
	midi.CloseDriver()
}

// systemMessage reports whether msg is SysEx or System Common, the only
// messages that can carry timecode.
func systemMessage(msg []byte) bool {
	return len(msg) != 0 && msg[0] >= MIDIStatusSystem && msg[0] < MIDIStatusRealTime
}
