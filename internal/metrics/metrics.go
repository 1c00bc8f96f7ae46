// Package metrics exposes Prometheus instrumentation for the capture pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bracket outcomes used as the "outcome" label.
const (
	OutcomeUploaded      = "uploaded"
	OutcomeEmpty         = "empty_recording"
	OutcomeCaptureFailed = "capture_failed"
	OutcomeDecodeFailed  = "decode_failed"
	OutcomeEncodeFailed  = "encode_failed"
	OutcomeUploadFailed  = "upload_failed"
	OutcomeDiscarded     = "discarded"
)

type Metrics struct {
	Brackets       *prometheus.CounterVec
	CaptureBytes   prometheus.Histogram
	DecodeDuration prometheus.Histogram
	UploadDuration prometheus.Histogram
	WAVBytes       prometheus.Histogram
	RecordingSecs  prometheus.Histogram
}

// New registers the pipeline metrics with reg. A nil reg uses the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Brackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readaloud_brackets_total",
			Help: "Recording brackets by final outcome",
		}, []string{"outcome"}),
		CaptureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_capture_bytes",
			Help:    "Size of compressed captures",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		DecodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_decode_duration_seconds",
			Help:    "Time spent decoding captures to PCM",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_upload_duration_seconds",
			Help:    "Time spent uploading recordings",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		WAVBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_wav_bytes",
			Help:    "Size of encoded WAV containers",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12),
		}),
		RecordingSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_recording_duration_seconds",
			Help:    "Duration of decoded recordings",
			Buckets: prometheus.LinearBuckets(0, 5, 13), // 0s to 60s
		}),
	}
}

// ObserveOutcome is safe on a nil *Metrics.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Brackets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCapture(bytes int) {
	if m == nil {
		return
	}
	m.CaptureBytes.Observe(float64(bytes))
}

func (m *Metrics) ObserveDecode(elapsed, recording time.Duration) {
	if m == nil {
		return
	}
	m.DecodeDuration.Observe(elapsed.Seconds())
	if recording > 0 {
		m.RecordingSecs.Observe(recording.Seconds())
	}
}

func (m *Metrics) ObserveEncode(bytes int) {
	if m == nil {
		return
	}
	m.WAVBytes.Observe(float64(bytes))
}

func (m *Metrics) ObserveUpload(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UploadDuration.Observe(elapsed.Seconds())
}

// Handler serves the metrics gathered by g, or the default gatherer when g is
// nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
