package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedGrabber returns its steps in order and then blocks until the
// context is done.
type scriptedGrabber struct {
	mu    sync.Mutex
	steps []error // nil yields a frame
	calls int
}

func (g *scriptedGrabber) Grab(ctx context.Context) ([]byte, error) {
	g.mu.Lock()
	if g.calls < len(g.steps) {
		err := g.steps[g.calls]
		g.calls++
		g.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return []byte("frame"), nil
	}
	g.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func failures(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = errors.New("camera offline")
	}
	return out
}

func TestCaptureStreamLost(t *testing.T) {
	g := &scriptedGrabber{steps: failures(6)}
	slot := NewLatestFrame()

	err := Capture(context.Background(), "door", g, slot, CaptureOptions{MaxReadFailures: 5})
	require.ErrorIs(t, err, ErrStreamLost)
	require.Equal(t, 6, g.calls)
	_, ok := slot.Latest()
	require.False(t, ok)
}

func TestCaptureSuccessResetsFailures(t *testing.T) {
	steps := append(failures(5), nil)
	steps = append(steps, failures(5)...)
	g := &scriptedGrabber{steps: steps}
	slot := NewLatestFrame()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Capture(ctx, "door", g, slot, CaptureOptions{MaxReadFailures: 5})
	}()

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.calls == len(steps)
	}, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	f, ok := slot.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(1), f.Seq)
}

func TestHTTPGrabber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snapshot.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/empty.jpg":
		default:
			http.Error(w, "no such camera", http.StatusNotFound)
		}
	}))
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	data, err := NewHTTPGrabber(srv.URL+"/snapshot.jpg", time.Second).Grab(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)

	_, err = NewHTTPGrabber(srv.URL+"/missing.jpg", time.Second).Grab(context.Background())
	require.ErrorContains(t, err, "status 404")

	_, err = NewHTTPGrabber(srv.URL+"/empty.jpg", time.Second).Grab(context.Background())
	require.ErrorContains(t, err, "empty snapshot")
}
