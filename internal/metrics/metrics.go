package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts finished generations by mode and terminal state
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "padreel_generations_total",
		Help: "Total number of generations by mode and outcome",
	}, []string{"mode", "outcome"})

	// GenerationDuration tracks wall time of a generation
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "padreel_generation_duration_seconds",
		Help:    "Duration of a generation from request to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	}, []string{"mode"})

	// EncodedBytes is the encoder output size before reconciliation
	EncodedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "padreel_encoded_bytes",
		Help:    "Encoder output size in bytes before padding",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KiB to 16GiB
	})

	// PaddingBytesTotal counts zero bytes appended to reach targets
	PaddingBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "padreel_padding_bytes_total",
		Help: "Total padding bytes appended after encoded output",
	})

	// OvershootTotal counts generations whose encoded output exceeded the target
	OvershootTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "padreel_overshoot_total",
		Help: "Total number of generations where encoder output exceeded the target size",
	})

	// FramesTotal counts rendered frames
	FramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "padreel_frames_rendered_total",
		Help: "Total number of frames rendered by capture sessions",
	})

	// EncoderStarts counts encoder process/pipeline starts
	EncoderStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "padreel_encoder_start_total",
		Help: "Total number of encoder starts",
	}, []string{"backend", "result"})

	// EncoderExits counts encoder exits
	EncoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "padreel_encoder_exit_total",
		Help: "Total number of encoder exits",
	}, []string{"backend", "reason"})

	// LiveBlobs is the number of unreleased blob handles
	LiveBlobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "padreel_live_blobs",
		Help: "Number of blob objects not yet released",
	})
)
