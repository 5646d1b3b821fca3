package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NegotiationAttempts - число попыток получить камеру по наборам ограничений.
	NegotiationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_negotiation_attempts_total",
		Help: "Camera acquisition attempts by constraint tier and outcome",
	}, []string{"tier", "outcome"})

	// NegotiationFailures - число согласований, перебравших все наборы.
	NegotiationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_negotiation_failures_total",
		Help: "Failed camera negotiations by error kind",
	}, []string{"kind"})

	// CameraSwitches - число попыток переключения.
	CameraSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_camera_switches_total",
		Help: "Camera switch attempts by outcome",
	}, []string{"outcome"})

	// Recordings - число завершенных записей.
	Recordings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_recordings_total",
		Help: "Recordings by outcome",
	}, []string{"outcome"})

	// RecordedBytes - объем данных от кодировщика в байтах.
	RecordedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lens_recorder_recorded_bytes_total",
		Help: "Bytes of encoded chunks accepted by the recorder",
	})

	// DiscardedChunks - число пустых фрагментов.
	DiscardedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lens_recorder_discarded_chunks_total",
		Help: "Empty chunks discarded by the recorder",
	})

	// TranscodeDuration - длительность перепаковки.
	TranscodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lens_recorder_transcode_duration_seconds",
		Help:    "Duration of post-processing remux jobs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 10),
	})

	// TranscodeErrors - число ошибок перепаковки по шагам.
	TranscodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_transcode_errors_total",
		Help: "Post-processing failures by step",
	}, []string{"step"})

	// Exports - число скачиваний и отправок.
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_exports_total",
		Help: "Export actions by kind and outcome",
	}, []string{"action", "outcome"})

	// RenderFPS - измеренная частота кадров поверхности рендера.
	RenderFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lens_recorder_render_fps",
		Help: "Measured frames per second of the render surface",
	})

	// DroppedFrames - кадры, пропущенные циклом рендера или подписчиком.
	DroppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_recorder_dropped_frames_total",
		Help: "Frames dropped by the render loop by stage",
	}, []string{"stage"})
)
