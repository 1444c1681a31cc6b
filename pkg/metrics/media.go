package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MediaMetrics records conversion, transcription and streaming activity.
type MediaMetrics struct {
	conversionDuration *prometheus.HistogramVec
	conversionFailure  *prometheus.CounterVec
	transcriptions     *prometheus.CounterVec
	streamedBytes      prometheus.Counter
	rangeRequests      *prometheus.CounterVec
}

// NewMediaMetrics registers the media metrics on the provided registerer.
func NewMediaMetrics(reg prometheus.Registerer) *MediaMetrics {
	if reg == nil {
		return &MediaMetrics{}
	}
	conversionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_conversion_duration_seconds",
		Help:    "Duration of external tool invocations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
	conversionFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_conversion_failures",
		Help: "Failed external tool invocations.",
	}, []string{"tool"})
	transcriptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_transcriptions",
		Help: "Transcription attempts by outcome.",
	}, []string{"outcome"})
	streamedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_streamed_bytes",
		Help: "Total bytes written to media stream responses.",
	})
	rangeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_range_requests",
		Help: "Media stream requests by resolved plan.",
	}, []string{"plan"})
	reg.MustRegister(conversionDuration, conversionFailure, transcriptions, streamedBytes, rangeRequests)
	return &MediaMetrics{
		conversionDuration: conversionDuration,
		conversionFailure:  conversionFailure,
		transcriptions:     transcriptions,
		streamedBytes:      streamedBytes,
		rangeRequests:      rangeRequests,
	}
}

// ObserveConversion records the duration of one tool invocation.
func (m *MediaMetrics) ObserveConversion(tool string, duration time.Duration) {
	if m == nil || m.conversionDuration == nil {
		return
	}
	m.conversionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// IncConversionFailure counts a failed tool invocation.
func (m *MediaMetrics) IncConversionFailure(tool string) {
	if m == nil || m.conversionFailure == nil {
		return
	}
	m.conversionFailure.WithLabelValues(tool).Inc()
}

// IncTranscription counts a transcription attempt by outcome.
func (m *MediaMetrics) IncTranscription(outcome string) {
	if m == nil || m.transcriptions == nil {
		return
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
}

// AddStreamedBytes accumulates bytes delivered to streaming clients.
func (m *MediaMetrics) AddStreamedBytes(n int64) {
	if m == nil || m.streamedBytes == nil {
		return
	}
	m.streamedBytes.Add(float64(n))
}

// IncRangeRequest counts a stream request by its resolved plan kind.
func (m *MediaMetrics) IncRangeRequest(plan string) {
	if m == nil || m.rangeRequests == nil {
		return
	}
	m.rangeRequests.WithLabelValues(plan).Inc()
}
