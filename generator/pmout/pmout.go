// Package pmout writes MIDI through portmidi.
package pmout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rakyll/portmidi"
)

const MaxEventsPerWrite = 1024

var ErrNoOutput = errors.New("pmout: no matching MIDI output is connected")

// Output is a portmidi output stream.
type Output struct {
	name   string
	stream *portmidi.Stream
}

// Open initializes portmidi and opens the first output whose name
// contains name.  An empty name selects the default output.
func Open(name string) (*Output, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("midi: initialize: %w", err)
	}

	id, info, err := discover(name)
	if err != nil {
		_ = portmidi.Terminate()
		return nil, err
	}

	stream, err := portmidi.NewOutputStream(id, MaxEventsPerWrite, 0)
	if err != nil {
		_ = portmidi.Terminate()
		return nil, fmt.Errorf("midi: open %s: %w", info.Name, err)
	}
	return &Output{name: info.Name, stream: stream}, nil
}

func (o *Output) String() string {
	return o.name
}

func (o *Output) WriteShort(status, data1, data2 int64) error {
	return o.stream.WriteShort(status, data1, data2)
}

func (o *Output) WriteSysEx(msg []byte) error {
	return o.stream.WriteSysExBytes(portmidi.Time(), msg)
}

func (o *Output) Close() error {
	err := o.stream.Close()
	if terr := portmidi.Terminate(); err == nil {
		err = terr
	}
	return err
}

// Ports lists output device names.  portmidi must be initialized.
func Ports() []string {
	var names []string
	for i := 0; i < portmidi.CountDevices(); i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info != nil && info.IsOutputAvailable {
			names = append(names, info.Name)
		}
	}
	return names
}

// discover finds the output device whose name contains name.
func discover(name string) (portmidi.DeviceID, *portmidi.DeviceInfo, error) {
	if name == "" {
		id := portmidi.DefaultOutputDeviceID()
		if info := portmidi.Info(id); id >= 0 && info != nil {
			return id, info, nil
		}
		return 0, nil, ErrNoOutput
	}
	for i := 0; i < portmidi.CountDevices(); i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info != nil && info.IsOutputAvailable && strings.Contains(info.Name, name) {
			return portmidi.DeviceID(i), info, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %q", ErrNoOutput, name)
}
