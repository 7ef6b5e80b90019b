package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmacd/mtcmidi/mtc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	slot *mtc.Slot
}

func (f fakeSource) Slot() *mtc.Slot   { return f.slot }
func (f fakeSource) SessionID() string { return "session-1" }

func TestServer_Timecode(t *testing.T) {
	src := fakeSource{slot: mtc.NewSlot()}
	srv := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timecode", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	src.slot.Publish(mtc.Timecode{Rate: mtc.Rate25, Hour: 10, Minute: 15, Second: 45, Frame: 20})

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timecode", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Timecode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session-1", body.Session)
	assert.Equal(t, "10:15:45:20", body.Timecode)
	assert.Equal(t, "25", body.Rate)
	assert.InDelta(t, 36945.8, body.Seconds, 1e-9)
	assert.Equal(t, int64(36945800), body.Millis)
	assert.True(t, body.Valid)
	assert.Equal(t, uint64(1), body.Seq)
}

func TestServer_Health(t *testing.T) {
	srv := New(fakeSource{slot: mtc.NewSlot()}, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_RunShutdown(t *testing.T) {
	srv := New(fakeSource{slot: mtc.NewSlot()}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0", time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_DropsWithKeepingUpConsumer(t *testing.T) {
	src := fakeSource{slot: mtc.NewSlot()}
	srv := New(src, zerolog.Nop())

	for i := uint8(0); i < 5; i++ {
		src.slot.Publish(mtc.Timecode{Rate: mtc.Rate25, Frame: i})
		_, err := src.slot.Take(context.Background())
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timecode", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body Timecode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(5), body.Seq)
	assert.Zero(t, body.Drops)
	assert.Equal(t, uint8(4), body.Frame)
}
