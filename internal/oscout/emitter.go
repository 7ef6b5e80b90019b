// Package oscout forwards decoded timecode to OSC receivers such as
// SuperCollider, TidalCycles or a VJ tool.
package oscout

import (
	"net"

	"github.com/jmacd/mtcmidi/midi/clock"
	"github.com/jmacd/mtcmidi/mtc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/scgolang/osc"
)

// AddressTimecode is appended to the configured prefix.
const AddressTimecode = "/timecode"

// Sender is satisfied by *osc.UDPConn.
type Sender interface {
	Send(osc.Packet) error
}

type Emitter struct {
	conn    Sender
	close   func() error
	address string
	session string
	tempo   float64
	log     zerolog.Logger
}

// Dial connects to an OSC receiver at addr (host:port).  tempo is the
// BPM used for the beat position argument.
func Dial(addr, prefix, session string, tempo float64, log zerolog.Logger) (*Emitter, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving osc address")
	}
	conn, err := osc.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing osc receiver")
	}
	e := New(conn, prefix, session, tempo, log)
	e.close = conn.Close
	return e, nil
}

func New(conn Sender, prefix, session string, tempo float64, log zerolog.Logger) *Emitter {
	return &Emitter{
		conn:    conn,
		address: prefix + AddressTimecode,
		session: session,
		tempo:   tempo,
		log:     log,
	}
}

// Message builds <prefix>/timecode with arguments hour, minute, second,
// frame, rate (int32), seconds (float32), display string, session, the
// phase inside the current second and the beat position (float32).
func (e *Emitter) Message(tc mtc.Timecode) osc.Message {
	return osc.Message{
		Address: e.address,
		Arguments: []osc.Argument{
			osc.Int(int32(tc.Hour)),
			osc.Int(int32(tc.Minute)),
			osc.Int(int32(tc.Second)),
			osc.Int(int32(tc.Frame)),
			osc.Int(int32(tc.Rate)),
			osc.Float(float32(tc.Seconds())),
			osc.String(tc.String()),
			osc.String(e.session),
			osc.Float(float32(clock.Phase(tc))),
			osc.Float(float32(clock.Beats(tc, e.tempo))),
		},
	}
}

func (e *Emitter) Emit(tc mtc.Timecode) error {
	return errors.Wrapf(e.conn.Send(e.Message(tc)), "sending %s", e.address)
}

// Callback returns a clock.Callback that emits every timecode, logging
// failures instead of returning them.
func (e *Emitter) Callback() clock.Callback {
	return func(tc mtc.Timecode) {
		if err := e.Emit(tc); err != nil {
			e.log.Warn().Err(err).Msg("osc emit failed")
		}
	}
}

func (e *Emitter) Close() error {
	if e.close == nil {
		return nil
	}
	return errors.Wrap(e.close(), "closing osc connection")
}
