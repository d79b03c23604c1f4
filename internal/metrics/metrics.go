// Package metrics provides the Prometheus metrics exported by facewatch.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "facewatch"

// Metrics holds every facewatch collector. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	FramesTotal       *prometheus.CounterVec
	FramesSkipped     *prometheus.CounterVec
	FrameErrors       *prometheus.CounterVec
	FrameDuration     *prometheus.HistogramVec
	DetectionsTotal   *prometheus.CounterVec
	RecognitionsTotal *prometheus.CounterVec
	PromotionsTotal   *prometheus.CounterVec
	TracksLive        *prometheus.GaugeVec
	TracksExpired     *prometheus.CounterVec
	ReadFailures      *prometheus.CounterVec
	MergedTotal       prometheus.Counter
	SaveFailures      prometheus.Counter
	IndexRows         prometheus.Gauge
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register facewatch metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames run through the decision engine.",
		},
		[]string{"camera"},
	)
	m.FramesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Frames dropped by the process_every setting.",
		},
		[]string{"camera"},
	)
	m.FrameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames skipped because detection failed.",
		},
		[]string{"camera"},
	)
	m.FrameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time to detect and resolve the faces of one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"camera"},
	)
	m.DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Faces reported by the detector.",
		},
		[]string{"camera"},
	)
	m.RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognitions_total",
			Help:      "Confident identity matches, by identity kind.",
		},
		[]string{"camera", "kind"},
	)
	m.PromotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_promotions_total",
			Help:      "Tracks promoted to a new Unknown identity.",
		},
		[]string{"camera"},
	)
	m.TracksLive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracks_live",
			Help:      "Tracks currently followed.",
		},
		[]string{"camera"},
	)
	m.TracksExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_expired_total",
			Help:      "Tracks dropped after the grace period.",
		},
		[]string{"camera"},
	)
	m.ReadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_read_failures_total",
			Help:      "Failed frame grabs.",
		},
		[]string{"camera"},
	)
	m.MergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_merged_total",
			Help:      "Unknown identities removed by enrollment of the same person.",
		},
	)
	m.SaveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_save_failures_total",
			Help:      "Failed index saves. The in-memory index is kept.",
		},
	)
	m.IndexRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_rows",
			Help:      "Embedding rows in the face index.",
		},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesTotal.Describe(ch)
	m.FramesSkipped.Describe(ch)
	m.FrameErrors.Describe(ch)
	m.FrameDuration.Describe(ch)
	m.DetectionsTotal.Describe(ch)
	m.RecognitionsTotal.Describe(ch)
	m.PromotionsTotal.Describe(ch)
	m.TracksLive.Describe(ch)
	m.TracksExpired.Describe(ch)
	m.ReadFailures.Describe(ch)
	ch <- m.MergedTotal.Desc()
	ch <- m.SaveFailures.Desc()
	ch <- m.IndexRows.Desc()
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesTotal.Collect(ch)
	m.FramesSkipped.Collect(ch)
	m.FrameErrors.Collect(ch)
	m.FrameDuration.Collect(ch)
	m.DetectionsTotal.Collect(ch)
	m.RecognitionsTotal.Collect(ch)
	m.PromotionsTotal.Collect(ch)
	m.TracksLive.Collect(ch)
	m.TracksExpired.Collect(ch)
	m.ReadFailures.Collect(ch)
	ch <- m.MergedTotal
	ch <- m.SaveFailures
	ch <- m.IndexRows
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(camera string, detections int, took time.Duration) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(camera).Inc()
	m.DetectionsTotal.WithLabelValues(camera).Add(float64(detections))
	m.FrameDuration.WithLabelValues(camera).Observe(took.Seconds())
}

// FrameSkipped records a frame dropped by frame skipping.
func (m *Metrics) FrameSkipped(camera string) {
	if m == nil {
		return
	}
	m.FramesSkipped.WithLabelValues(camera).Inc()
}

// FrameFailed records a frame whose detection failed.
func (m *Metrics) FrameFailed(camera string) {
	if m == nil {
		return
	}
	m.FrameErrors.WithLabelValues(camera).Inc()
}

// Recognized records a confident match against an identity of the given kind.
func (m *Metrics) Recognized(camera, kind string) {
	if m == nil {
		return
	}
	m.RecognitionsTotal.WithLabelValues(camera, kind).Inc()
}

// Promoted records an Unknown promotion.
func (m *Metrics) Promoted(camera string) {
	if m == nil {
		return
	}
	m.PromotionsTotal.WithLabelValues(camera).Inc()
}

// Tracks records the live track count and how many expired this frame.
func (m *Metrics) Tracks(camera string, live, expired int) {
	if m == nil {
		return
	}
	m.TracksLive.WithLabelValues(camera).Set(float64(live))
	m.TracksExpired.WithLabelValues(camera).Add(float64(expired))
}

// ReadFailed records a failed frame grab.
func (m *Metrics) ReadFailed(camera string) {
	if m == nil {
		return
	}
	m.ReadFailures.WithLabelValues(camera).Inc()
}

// Merged records Unknown identities removed by merge-on-enroll.
func (m *Metrics) Merged(n int) {
	if m == nil {
		return
	}
	m.MergedTotal.Add(float64(n))
}

// SaveFailed records a failed index save.
func (m *Metrics) SaveFailed() {
	if m == nil {
		return
	}
	m.SaveFailures.Inc()
}

// SetIndexRows records the index size.
func (m *Metrics) SetIndexRows(n int) {
	if m == nil {
		return
	}
	m.IndexRows.Set(float64(n))
}
