package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playcore_sessions_active",
		Help: "Number of live playback sessions",
	})

	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_sessions_created_total",
		Help: "Total number of playback sessions created",
	})

	sessionsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_sessions_reaped_total",
		Help: "Total number of sessions closed for inactivity",
	})

	// Player metrics
	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_player_state_transitions_total",
		Help: "Total playback state transitions",
	}, []string{"from", "to"})

	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playcore_player_load_duration_seconds",
		Help:    "Time spent indexing a container and opening decoders",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"container"})

	loadedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_player_loaded_bytes_total",
		Help: "Total container bytes handed to Load",
	}, []string{"container"})

	packetsDemuxedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_packets_demuxed_total",
		Help: "Total packets read from containers",
	}, []string{"container"})

	framesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_frames_decoded_total",
		Help: "Total frames produced by decoders",
	}, []string{"kind", "codec"})

	framesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_frames_dropped_total",
		Help: "Total decoded frames discarded before presentation",
	}, []string{"kind", "reason"})

	backpressureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_backpressure_total",
		Help: "Total pumps stopped because a frame buffer was full",
	}, []string{"queue"})

	pumpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playcore_pump_duration_seconds",
		Help:    "Duration of one decode pump",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	})

	seeksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_seeks_total",
		Help: "Total seeks performed",
	})

	subtitlesLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_subtitles_loaded_total",
		Help: "Total subtitle documents parsed",
	}, []string{"format"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_errors_total",
		Help: "Total errors by type",
	}, []string{"error_type"})

	// Resume store metrics
	resumeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_resume_operations_total",
		Help: "Total resume store operations",
	}, []string{"operation", "result"})

	// Host API metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_http_requests_total",
		Help: "Total HTTP requests served",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playcore_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_http_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})

	// Debug metrics
	goroutinesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_goroutines_created_total",
		Help: "Total number of goroutines created",
	}, []string{"component"})

	goroutinesDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_goroutines_destroyed_total",
		Help: "Total number of goroutines destroyed",
	}, []string{"component"})

	activeGoroutines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "debug_goroutines_active",
		Help: "Number of active goroutines",
	}, []string{"component"})
)

// SessionOpened counts a new playback session.
func SessionOpened() {
	sessionsCreatedTotal.Inc()
	sessionsActive.Inc()
}

// SessionClosed counts a finished session; reaped marks idle expiry.
func SessionClosed(reaped bool) {
	sessionsActive.Dec()
	if reaped {
		sessionsReapedTotal.Inc()
	}
}

// RecordStateTransition counts a playback state change.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLoad records a completed Load of size bytes.
func RecordLoad(container string, size int, d time.Duration) {
	loadDuration.WithLabelValues(container).Observe(d.Seconds())
	loadedBytesTotal.WithLabelValues(container).Add(float64(size))
}

// RecordPacketDemuxed counts one packet read from a container.
func RecordPacketDemuxed(container string) {
	packetsDemuxedTotal.WithLabelValues(container).Inc()
}

// RecordFrameDecoded counts one decoded frame.
func RecordFrameDecoded(kind, codec string) {
	framesDecodedTotal.WithLabelValues(kind, codec).Inc()
}

// RecordFramesDropped counts decoded frames thrown away, e.g. on seek.
func RecordFramesDropped(kind, reason string, n int) {
	if n <= 0 {
		return
	}
	framesDroppedTotal.WithLabelValues(kind, reason).Add(float64(n))
}

// RecordBackpressure counts a pump that stopped on a full queue.
func RecordBackpressure(queue string) {
	backpressureTotal.WithLabelValues(queue).Inc()
}

// RecordPump records how long one pump took.
func RecordPump(d time.Duration) {
	pumpDuration.Observe(d.Seconds())
}

// RecordSeek counts a seek.
func RecordSeek() {
	seeksTotal.Inc()
}

// RecordSubtitlesLoaded counts a parsed subtitle document.
func RecordSubtitlesLoaded(format string) {
	subtitlesLoadedTotal.WithLabelValues(format).Inc()
}

// IncrementError counts an error by its type.
func IncrementError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordResumeOperation counts a resume store call.
func RecordResumeOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	resumeOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordHTTPRequest records one served request. route is the mux template,
// not the raw path, to keep cardinality bounded.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncrementRateLimited counts a request refused by the limiter.
func IncrementRateLimited() {
	rateLimitedTotal.Inc()
}

// Debug metrics functions

// IncrementGoroutineCreated increments the goroutine creation counter
func IncrementGoroutineCreated(component string) {
	goroutinesCreated.WithLabelValues(component).Inc()
	activeGoroutines.WithLabelValues(component).Inc()
}

// IncrementGoroutineDestroyed increments the goroutine destruction counter
func IncrementGoroutineDestroyed(component string) {
	goroutinesDestroyed.WithLabelValues(component).Inc()
	activeGoroutines.WithLabelValues(component).Dec()
}
