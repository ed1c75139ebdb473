// Package metrics provides Prometheus metrics for downloads and flash runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Download metrics
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwflash_downloads_total",
			Help: "Total number of part downloads by final state",
		},
		[]string{"role", "state"},
	)

	DownloadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwflash_download_bytes_total",
			Help: "Total bytes downloaded",
		},
		[]string{"role"},
	)

	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fwflash_download_duration_seconds",
			Help:    "Time taken to download one part",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"role"},
	)

	// Flash metrics
	FlashRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwflash_flash_runs_total",
			Help: "Total number of flash batches by outcome",
		},
		[]string{"chip", "outcome"},
	)

	FlashDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fwflash_flash_duration_seconds",
			Help:    "Duration of flash batches",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"chip"},
	)

	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwflash_bytes_written_total",
			Help: "Total bytes written to devices",
		},
		[]string{"chip", "role"},
	)

	// Validation metrics
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwflash_validations_total",
			Help: "Total number of memory map validations by status",
		},
		[]string{"status"},
	)
)

// Recorder records metrics on behalf of a component.
// A nil *Recorder records nothing.
type Recorder struct{}

// NewRecorder creates a recorder backed by the package-level collectors.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordDownload records one settled download.
func (r *Recorder) RecordDownload(role, state string, bytes int, duration time.Duration) {
	if r == nil {
		return
	}
	DownloadsTotal.WithLabelValues(role, state).Inc()
	if bytes > 0 {
		DownloadBytes.WithLabelValues(role).Add(float64(bytes))
	}
	DownloadDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// RecordPartWritten records one part written to a device.
func (r *Recorder) RecordPartWritten(chip, role string, bytes int) {
	if r == nil {
		return
	}
	BytesWritten.WithLabelValues(chip, role).Add(float64(bytes))
}

// RecordFlash records a finished flash batch.
func (r *Recorder) RecordFlash(chip, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	FlashRunsTotal.WithLabelValues(chip, outcome).Inc()
	FlashDuration.WithLabelValues(chip).Observe(duration.Seconds())
}

// RecordValidation records a validation result status.
func (r *Recorder) RecordValidation(status string) {
	if r == nil {
		return
	}
	ValidationsTotal.WithLabelValues(status).Inc()
}
