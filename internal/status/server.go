// Package status serves the latest decoded timecode over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmacd/mtcmidi/mtc"
	"github.com/rs/zerolog"
)

// Source is what the server reports on.
type Source interface {
	Slot() *mtc.Slot
	SessionID() string
}

// Timecode is the JSON body of GET /timecode.  The MQTT publisher sends
// the same document.
type Timecode struct {
	Session    string  `json:"session" msgpack:"session"`
	Timecode   string  `json:"timecode" msgpack:"timecode"`
	Rate       string  `json:"rate" msgpack:"rate"`
	Hour       uint8   `json:"hour" msgpack:"hour"`
	Minute     uint8   `json:"minute" msgpack:"minute"`
	Second     uint8   `json:"second" msgpack:"second"`
	Frame      uint8   `json:"frame" msgpack:"frame"`
	Seconds    float64 `json:"seconds" msgpack:"seconds"`
	Millis     int64   `json:"millis" msgpack:"millis"`
	FrameCount int64   `json:"frame_count" msgpack:"frame_count"`
	Valid      bool    `json:"valid" msgpack:"valid"`
	Seq        uint64  `json:"seq" msgpack:"seq"`
	Drops      uint64  `json:"drops" msgpack:"drops"`
}

func NewTimecode(session string, tc mtc.Timecode, seq, drops uint64) Timecode {
	return Timecode{
		Session:    session,
		Timecode:   tc.String(),
		Rate:       tc.Rate.String(),
		Hour:       tc.Hour,
		Minute:     tc.Minute,
		Second:     tc.Second,
		Frame:      tc.Frame,
		Seconds:    tc.Seconds(),
		Millis:     tc.Millis(),
		FrameCount: tc.FrameCount(),
		Valid:      tc.Valid(),
		Seq:        seq,
		Drops:      drops,
	}
}

type Server struct {
	src    Source
	log    zerolog.Logger
	router *mux.Router
	http   *http.Server
}

func New(src Source, log zerolog.Logger) *Server {
	s := &Server{
		src:    src,
		log:    log,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/timecode", s.timecode).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
		errc <- s.http.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) timecode(w http.ResponseWriter, _ *http.Request) {
	slot := s.src.Slot()
	tc, seq, ok := slot.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no timecode received"})
		return
	}

	writeJSON(w, http.StatusOK, NewTimecode(s.src.SessionID(), tc, seq, slot.Drops()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
