package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/metrics"
)

// ErrStreamLost is returned when a camera fails more reads in a row than
// allowed.
var ErrStreamLost = errors.New("stream lost")

// CaptureOptions controls the producer loop.
type CaptureOptions struct {
	PollInterval    time.Duration // pause after a successful grab
	RetryDelay      time.Duration // pause after a failed grab
	MaxReadFailures int           // consecutive failures tolerated
	Metrics         *metrics.Metrics
}

// Capture polls g into slot until ctx is done. It returns nil on
// cancellation and an error wrapping ErrStreamLost once more than
// MaxReadFailures consecutive grabs fail.
func Capture(ctx context.Context, camera string, g Grabber, slot *LatestFrame, opts CaptureOptions) error {
	failures := 0
	for {
		data, err := g.Grab(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := opts.PollInterval
		if err != nil {
			failures++
			opts.Metrics.ReadFailed(camera)
			if failures > opts.MaxReadFailures {
				return fmt.Errorf("%w: %s after %d failed reads: %w", ErrStreamLost, camera, failures, err)
			}
			log.Warn().Err(err).
				Str("camera", camera).
				Int("failures", failures).
				Msg("Failed to grab frame, retrying")
			wait = opts.RetryDelay
		} else {
			failures = 0
			slot.Put(data, time.Now())
		}

		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
