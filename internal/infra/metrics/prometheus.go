package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bifgen_jobs_processed_total",
		Help: "Total number of BIF jobs processed, by status",
	}, []string{"status"})

	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bifgen_job_stage_duration_seconds",
		Help:    "Duration of BIF generation pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bifgen_frames_sampled_total",
		Help: "Total number of thumbnail frames sampled across all jobs",
	})

	BifBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bifgen_bif_bytes_total",
		Help: "Total bytes of BIF artifacts written",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bifgen_active_workers",
		Help: "Number of currently active workers generating BIFs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bifgen_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
