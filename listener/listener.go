// Copyright 2013 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package listener reads MIDI Time Code from a MIDI input port.
package listener

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmacd/mtcmidi/midi/clock"
	"github.com/jmacd/mtcmidi/mtc"
	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Listener owns one MIDI input and the decoder fed from it.
	Listener struct {
		input   Input
		log     zerolog.Logger
		session uuid.UUID
		depth   int

		lock      sync.Mutex
		errorChan chan error
		stopFn    func()
		calls     []clock.Callback
		stats     Stats
		lastRate  mtc.Rate

		// decoder is only touched by the Run goroutine.
		decoder *mtc.Decoder
		slot    *mtc.Slot
	}

	// Input is the part of drivers.In a Listener uses.
	Input interface {
		Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error)
		Close() error
		String() string
	}

	Stats struct {
		Messages  uint64 `json:"messages"`
		Bytes     uint64 `json:"bytes"`
		Published uint64 `json:"published"`
		Overflows uint64 `json:"overflows"`
	}

	Option func(*Listener)
)

const (
	// ReadBufferDepth is the default number of messages queued between
	// the driver callback and the decoder.
	ReadBufferDepth = 64
)

var _ clock.Source = (*Listener)(nil)

func WithLogger(log zerolog.Logger) Option {
	return func(l *Listener) {
		l.log = log
	}
}

func WithBufferDepth(depth int) Option {
	return func(l *Listener) {
		if depth > 0 {
			l.depth = depth
		}
	}
}

// Open finds the first input port whose name contains portName, opens
// it and returns a Listener for it.
func Open(portName string, opts ...Option) (*Listener, error) {
	in, err := discover(portName)
	if err != nil {
		return nil, err
	}

	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midi: open %s: %w", in, err)
	}

	return New(in, opts...), nil
}

// New returns a Listener for an already opened input.
func New(in Input, opts ...Option) *Listener {
	l := &Listener{
		input:     in,
		log:       zerolog.Nop(),
		session:   uuid.New(),
		depth:     ReadBufferDepth,
		errorChan: make(chan error, 1),
		decoder:   mtc.NewDecoder(),
		slot:      mtc.NewSlot(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With().Str("port", in.String()).Str("session", l.session.String()).Logger()
	return l
}

func (l *Listener) AddCallback(cb clock.Callback) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.calls = append(l.calls, cb)
}

// Latest returns the newest decoded timecode.
func (l *Listener) Latest() (mtc.Timecode, bool) {
	tc, _, ok := l.slot.Latest()
	return tc, ok
}

func (l *Listener) Slot() *mtc.Slot {
	return l.slot
}

func (l *Listener) SessionID() string {
	return l.session.String()
}

func (l *Listener) Stats() Stats {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.stats
}

// Run begins listening for timecode, blocking the caller until the
// context is canceled or the driver reports an error.
func (l *Listener) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	defer cancel()
	ch := make(chan []byte, l.depth)
	wg := sync.WaitGroup{}

	lcfg := drivers.ListenConfig{
		TimeCode:    true,
		ActiveSense: false,
		SysEx:       true,
		OnErr: func(err error) {
			_ = l.handleError(fmt.Errorf("midi: listen: %w", err))
		},
	}

	stop, err := l.input.Listen(func(msg []byte, milliseconds int32) {
		l.enqueue(ch, msg)
	}, lcfg)
	if err != nil {
		return fmt.Errorf("midi: listen %s: %w", l.input, err)
	}

	l.lock.Lock()
	l.stopFn = stop
	l.lock.Unlock()
	l.log.Info().Msg("listening for timecode")

	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				l.message(msg)
			}
		}
	}()
	go func() {
		defer wg.Done()
		l.fanOut(ctx)
	}()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-l.errorChan:
	}

	cancel()
	wg.Wait()
	l.stop()
	return err
}

// enqueue runs on the driver's thread and must not block it.  Messages
// that find the queue full are counted and discarded.
func (l *Listener) enqueue(ch chan<- []byte, msg []byte) {
	if !systemMessage(msg) {
		return
	}
	// The driver may reuse msg after we return.
	buf := make([]byte, len(msg))
	copy(buf, msg)
	select {
	case ch <- buf:
	default:
		l.lock.Lock()
		l.stats.Overflows++
		l.lock.Unlock()
	}
}

func (l *Listener) stop() {
	l.lock.Lock()
	stop := l.stopFn
	l.stopFn = nil
	l.lock.Unlock()

	if stop != nil {
		stop()
	}
}

func (l *Listener) Close() error {
	l.stop()

	if err := l.input.Close(); err != nil {
		return l.handleError(fmt.Errorf("midi: close input: %w", err))
	}
	return nil
}

func (l *Listener) handleError(err error) error {
	if err == nil {
		return err
	}
	select {
	case l.errorChan <- err:
	default:
	}
	return err
}
