package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hypnosonore/internal/app"
	"github.com/ayusman/hypnosonore/internal/gesture"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ok", resp["status"])
		assert.Contains(t, resp, "uptime")
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		}
	})
}

func TestServer_UnconfiguredRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/state", "/api/patterns", "/api/bindings", "/api/samples", "/api/ws", "/nonexistent"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>hypno</html>"), 0o644))

	s := New(Config{StaticDir: dir})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hypno")
}

func TestServer_SamplesWithoutApp(t *testing.T) {
	s := New(Config{SamplesDir: t.TempDir()})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// fakeFrames serves one fixed JPEG.
type fakeFrames struct {
	mu       sync.Mutex
	watchers int
	watched  int
}

func (f *fakeFrames) WatchFrames() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers++
	f.watched++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.watchers--
	}
}

func (f *fakeFrames) LatestJPEG() ([]byte, uint64) {
	return []byte{0xff, 0xd8, 0xff, 0xd9}, 1
}

func TestStreamHandler(t *testing.T) {
	frames := &fakeFrames{}
	h := NewStreamHandler(frames)
	h.poll = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "--frame"), "unchanged frames are not resent")
	assert.Contains(t, rec.Body.String(), "Content-Length: 4")

	frames.mu.Lock()
	defer frames.mu.Unlock()
	assert.Equal(t, 1, frames.watched)
	assert.Equal(t, 0, frames.watchers, "watch is released when the client leaves")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeHistory struct{ samples []app.Sample }

func (f fakeHistory) History() []app.Sample           { return f.samples }
func (f fakeHistory) Thresholds() gesture.Thresholds { return gesture.DefaultThresholds() }

func TestMetricsChartHandler(t *testing.T) {
	now := time.Now()
	h := NewMetricsChartHandler(fakeHistory{samples: []app.Sample{
		{Time: now, Face: true, Metrics: gesture.Metrics{Pitch: 0.1}},
		{Time: now.Add(200 * time.Millisecond), Face: false},
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Face metrics")
	assert.Contains(t, rec.Body.String(), "mouthWidth")
}

// fakeSnapshots is a SnapshotSource driven by the test.
type fakeSnapshots struct {
	mu  sync.Mutex
	fns []func(app.Snapshot)
}

func (f *fakeSnapshots) Subscribe(fn func(app.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
	return func() {}
}

func (f *fakeSnapshots) Latest() app.Snapshot { return app.Snapshot{Seq: 7} }

func (f *fakeSnapshots) publish(s app.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.fns {
		fn(s)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) app.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type string       `json:"type"`
		Data app.Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "snapshot", ev.Type)
	return ev.Data
}

func TestSnapshotHandler(t *testing.T) {
	src := &fakeSnapshots{}
	h := NewSnapshotHandler(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, uint64(7), readEvent(t, conn).Seq, "latest snapshot is sent first")

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)
	src.publish(app.Snapshot{Seq: 8, Face: true})

	got := readEvent(t, conn)
	assert.Equal(t, uint64(8), got.Seq)
	assert.True(t, got.Face)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopsWithContext(t *testing.T) {
	h := NewHub("test")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 1}))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, h.IsRunning())
}
