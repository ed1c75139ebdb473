package session

import (
	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/metrics"
)

// Config holds the session configuration.
type Config struct {
	// Downloader fetches manifest parts. Default is download.New().
	Downloader *download.Downloader

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// Metrics records validation and flash metrics (optional)
	Metrics *metrics.Recorder

	// FlashSize overrides the detected flash size, in bytes (0 = detect)
	FlashSize uint64

	// BaudRate is used when a flash request does not set one
	BaudRate int

	// CompletionSlice is passed to the sequencer
	CompletionSlice float64
}

func defaultConfig() Config {
	return Config{
		BaudRate:        115200,
		CompletionSlice: 0.05,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithDownloader sets the part downloader.
func WithDownloader(d *download.Downloader) Option {
	return func(c *Config) {
		c.Downloader = d
	}
}

// WithLogger sets a logger for the session and the components it drives.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Config) {
		c.Metrics = r
	}
}

// WithFlashSize fixes the flash size used for boundary checks and default
// addresses.
func WithFlashSize(size uint64) Option {
	return func(c *Config) {
		c.FlashSize = size
	}
}

// WithBaudRate sets the default baud rate of batches.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithCompletionSlice sets the per-part completion slice of progress.
func WithCompletionSlice(slice float64) Option {
	return func(c *Config) {
		c.CompletionSlice = slice
	}
}
