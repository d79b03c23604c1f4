package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/recognition"
)

// Source is one camera.
type Source struct {
	Camera  string
	Grabber Grabber
}

// Flusher persists buffered state.
type Flusher interface {
	Flush() error
}

// ResultHandler receives the results of every processed frame.
type ResultHandler func(camera string, results []recognition.Result)

// Runner drives every camera through the shared recognition engine.
type Runner struct {
	cfg      config.StreamConfig
	engine   *recognition.Engine
	flushers []Flusher
	handler  ResultHandler
	metrics  *metrics.Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFlusher adds state flushed together with the index.
func WithFlusher(f Flusher) RunnerOption {
	return func(r *Runner) { r.flushers = append(r.flushers, f) }
}

// WithResultHandler replaces the default debug logging of results.
func WithResultHandler(h ResultHandler) RunnerOption {
	return func(r *Runner) { r.handler = h }
}

// WithRunnerMetrics sets the metrics collectors.
func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(cfg config.StreamConfig, engine *recognition.Engine, opts ...RunnerOption) *Runner {
	if cfg.ProcessEvery < 1 {
		cfg.ProcessEvery = 1
	}
	r := &Runner{cfg: cfg, engine: engine, handler: logResults}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every source until ctx is done or every stream is lost.
// A lost stream does not stop the others; the first loss is returned once
// all streams have ended. State is flushed periodically and once more on
// the way out.
func (r *Runner) Run(ctx context.Context, sources []Source) error {
	flushCtx, stopFlush := context.WithCancel(ctx)
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		r.flushLoop(flushCtx)
	}()

	var g errgroup.Group
	for _, src := range sources {
		g.Go(func() error {
			return r.runStream(ctx, src)
		})
	}
	err := g.Wait()

	stopFlush()
	<-flushDone
	r.flush()
	return err
}

func (r *Runner) runStream(ctx context.Context, src Source) error {
	g, ctx := errgroup.WithContext(ctx)
	slot := NewLatestFrame()
	session := r.engine.NewSession(src.Camera)

	log.Info().Str("camera", src.Camera).Msg("Stream started")

	g.Go(func() error {
		defer slot.Close()
		return Capture(ctx, src.Camera, src.Grabber, slot, CaptureOptions{
			PollInterval:    r.cfg.PollInterval,
			RetryDelay:      r.cfg.RetryDelay,
			MaxReadFailures: r.cfg.MaxReadFailures,
			Metrics:         r.metrics,
		})
	})
	g.Go(func() error {
		return r.consume(ctx, session, slot)
	})

	err := g.Wait()
	if err != nil {
		log.Error().Err(err).Str("camera", src.Camera).Msg("Stream stopped")
	} else {
		log.Info().Str("camera", src.Camera).Msg("Stream stopped")
	}
	return err
}

// consume runs every ProcessEvery-th frame through the session. A frame is
// fully processed before the next one is taken.
func (r *Runner) consume(ctx context.Context, session *recognition.Session, slot *LatestFrame) error {
	camera := session.Camera()
	var seq uint64
	count := 0
	for {
		f, err := slot.Next(ctx, seq)
		if errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		seq = f.Seq

		count++
		if count%r.cfg.ProcessEvery != 0 {
			r.metrics.FrameSkipped(camera)
			continue
		}

		results, err := session.ProcessFrame(ctx, f.Data)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("camera", camera).Uint64("seq", f.Seq).Msg("Frame processing failed")
			continue
		}
		r.handler(camera, results)
	}
}

func (r *Runner) flushLoop(ctx context.Context) {
	if r.cfg.SaveInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(r.cfg.SaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *Runner) flush() {
	if err := r.engine.Flush(); err != nil {
		log.Error().Err(err).Msg("Failed to flush face index")
	}
	for _, f := range r.flushers {
		if err := f.Flush(); err != nil {
			log.Error().Err(err).Msg("Failed to flush")
		}
	}
}

func logResults(camera string, results []recognition.Result) {
	for _, res := range results {
		log.Debug().
			Str("camera", camera).
			Str("track", res.TrackID.String()).
			Str("label", res.Label()).
			Float64("score", res.Score).
			Floats64("bbox", res.BBox[:]).
			Msg("Face")
	}
}
