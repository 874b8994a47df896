package streamsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric vectors grounded on internal/driver/camera/metrics.go's
// promauto.NewGaugeVec/NewCounterVec package-var pattern, relabeled from
// "camera" to "source" and extended with assembler-wide gauges that have no
// per-source dimension.
var (
	framesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_frames_read_total",
			Help: "Frames successfully read from a source.",
		},
		[]string{"source"},
	)

	readErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_read_errors_total",
			Help: "Transient read errors observed on a source.",
		},
		[]string{"source"},
	)

	sourceRetiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_source_retired_total",
			Help: "Times a source crossed the MaxReadErrors threshold and was retired.",
		},
		[]string{"source"},
	)

	sourceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamsync_source_up",
			Help: "1 while a source is valid, 0 once retired.",
		},
		[]string{"source"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamsync_queue_depth",
			Help: "Current length of a source's frame queue.",
		},
		[]string{"source"},
	)

	alignmentTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsync_alignment_timestamp_seconds",
			Help: "Most recently computed alignment timestamp T*.",
		},
	)

	outputBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsync_output_buffer_size",
			Help: "Current number of packets buffered in the output deque.",
		},
	)
)
