package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Grabber returns the current image of a camera.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// HTTPGrabber fetches a JPEG snapshot from a camera URL on every Grab.
type HTTPGrabber struct {
	url    string
	client *http.Client
}

// NewHTTPGrabber creates a grabber for a snapshot endpoint.
func NewHTTPGrabber(url string, timeout time.Duration) *HTTPGrabber {
	return &HTTPGrabber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGrabber) Grab(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed (status %d): %s", resp.StatusCode, truncate(body, 200))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty snapshot from %s", g.url)
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
