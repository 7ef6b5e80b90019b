// Package generator is an MTC master: it writes quarter frames at the
// real-time rate, with periodic full frames, to a MIDI output.
package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmacd/mtcmidi/mtc"
	"github.com/rs/zerolog"
)

// Output is a MIDI output stream.  pmout.Output implements it with portmidi.
type Output interface {
	WriteShort(status, data1, data2 int64) error
	WriteSysEx(msg []byte) error
	Close() error
}

type (
	Generator struct {
		out            Output
		log            zerolog.Logger
		fullFrameEvery int

		lock      sync.Mutex
		tc        mtc.Timecode // position encoded by the current cycle
		piece     int
		cycles    int
		located   bool
		stats     Stats
		errorChan chan error
	}

	Stats struct {
		QuarterFrames uint64
		FullFrames    uint64
	}

	Option func(*Generator)
)

// DefaultFullFrameEvery is the number of quarter frame cycles between
// full frames.
const DefaultFullFrameEvery = 8

func WithLogger(log zerolog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

// WithFullFrameEvery sets the full frame interval in cycles; 0 sends a
// full frame only when the position is (re)located.
func WithFullFrameEvery(cycles int) Option {
	return func(g *Generator) {
		if cycles >= 0 {
			g.fullFrameEvery = cycles
		}
	}
}

func New(out Output, start mtc.Timecode, opts ...Option) *Generator {
	g := &Generator{
		out:            out,
		log:            zerolog.Nop(),
		fullFrameEvery: DefaultFullFrameEvery,
		tc:             start,
		errorChan:      make(chan error, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interval is the time between quarter frames at rate r.
func Interval(r mtc.Rate) time.Duration {
	return time.Duration(float64(time.Second) / (4 * r.FramesPerSecond()))
}

// Locate jumps to tc.  The next Step sends a full frame first.
func (g *Generator) Locate(tc mtc.Timecode) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.tc = tc
	g.piece = 0
	g.cycles = 0
	g.located = false
}

// Position is the timecode the current quarter frame cycle describes.
func (g *Generator) Position() mtc.Timecode {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.tc
}

func (g *Generator) Stats() Stats {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.stats
}

// Step writes the next quarter frame.  A cycle of eight covers two
// frames, so the position advances by two after the last piece.
func (g *Generator) Step() error {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.piece == 0 && g.fullFrameDue() {
		ff := mtc.FullFrame(g.tc)
		if err := g.out.WriteSysEx(ff[:]); err != nil {
			return fmt.Errorf("midi: write full frame: %w", err)
		}
		g.located = true
		g.stats.FullFrames++
		g.log.Debug().Stringer("timecode", g.tc).Msg("full frame")
	}

	data := mtc.QuarterFrame(g.tc, g.piece)
	if err := g.out.WriteShort(mtc.StatusQuarterFrame, int64(data), 0); err != nil {
		return fmt.Errorf("midi: write quarter frame: %w", err)
	}
	g.stats.QuarterFrames++

	g.piece++
	if g.piece == mtc.NumPieces {
		g.piece = 0
		g.cycles++
		g.tc = g.tc.Add(2)
	}
	return nil
}

func (g *Generator) fullFrameDue() bool {
	if !g.located {
		return true
	}
	return g.fullFrameEvery > 0 && g.cycles%g.fullFrameEvery == 0
}

// Run steps at the real-time quarter frame rate, blocking the caller
// until the context is canceled or a write fails.
func (g *Generator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	defer cancel()
	wg := sync.WaitGroup{}

	interval := Interval(g.Position().Rate)
	g.log.Info().Stringer("start", g.Position()).Dur("interval", interval).Msg("generating timecode")

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Step(); err != nil {
					_ = g.handleError(err)
					return
				}
			}
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-g.errorChan:
	}
	cancel()
	wg.Wait()
	return err
}

func (g *Generator) Close() error {
	if err := g.out.Close(); err != nil {
		return fmt.Errorf("midi: close output: %w", err)
	}
	return nil
}

func (g *Generator) handleError(err error) error {
	if err == nil {
		return err
	}
	select {
	case g.errorChan <- err:
	default:
	}
	return err
}
