package listener

import "context"

func (l *Listener) message(msg []byte) {
	_, _ = l.decoder.Write(msg)

	l.lock.Lock()
	l.stats.Messages++
	l.stats.Bytes += uint64(len(msg))
	if !l.decoder.Available() {
		l.lock.Unlock()
		return
	}

	tc, _ := l.decoder.Timecode()
	l.decoder.Pop()
	first := l.stats.Published == 0
	l.stats.Published++
	rateChanged := first || tc.Rate != l.lastRate
	l.lastRate = tc.Rate
	l.lock.Unlock()

	l.slot.Publish(tc)

	if rateChanged {
		l.log.Info().Stringer("rate", tc.Rate).Stringer("timecode", tc).Msg("timecode locked")
	}
	if !tc.Valid() {
		l.log.Debug().Stringer("timecode", tc).Msg("timecode outside protocol range")
	}
	l.log.Trace().Stringer("timecode", tc).Msg("timecode")
}

// fanOut hands every timecode it takes from the slot to the callbacks.
// Callbacks that fall behind the decoder show up as slot drops.
func (l *Listener) fanOut(ctx context.Context) {
	for {
		tc, err := l.slot.Take(ctx)
		if err != nil {
			return
		}

		l.lock.Lock()
		cbs := l.calls
		l.lock.Unlock()

		for _, cb := range cbs {
			cb(tc)
		}
	}
}
