package server

import (
	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/metrics"
	"github.com/moffa90/go-fwflash/partition"
)

// ProgrammerFactory creates the device programmer of a new session.
type ProgrammerFactory func() (flasher.DeviceProgrammer, error)

// Config holds the server configuration.
type Config struct {
	// Logger is used for request and job logging (optional)
	Logger logging.Logger

	// Metrics is shared by every session (optional)
	Metrics *metrics.Recorder

	// DownloadOptions configure each session's downloader
	DownloadOptions []download.Option

	// FlashSize overrides the detected flash size of every session (0 = detect)
	FlashSize uint64

	// BaudRate is the default batch baud rate
	BaudRate int

	// EraseBeforeFlash is used when a flash request does not set "erase"
	EraseBeforeFlash bool

	// CompletionSlice is passed to the sequencer
	CompletionSlice float64

	// MaxUploadSize limits multipart uploads, in bytes
	MaxUploadSize int64

	// Partitions is given to every new session (optional)
	Partitions *partition.Table
}

func defaultConfig() Config {
	return Config{
		BaudRate:        115200,
		CompletionSlice: 0.05,
		MaxUploadSize:   32 << 20,
	}
}

// Option is a functional option for configuring a Server.
type Option func(*Config)

// WithLogger sets a logger for the server and its sessions.
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

// WithDownloadOptions sets the options of every session downloader.
func WithDownloadOptions(opts ...download.Option) Option {
	return func(c *Config) {
		c.DownloadOptions = append(c.DownloadOptions, opts...)
	}
}

// WithFlashSize fixes the flash size used by every session.
func WithFlashSize(size uint64) Option {
	return func(c *Config) {
		c.FlashSize = size
	}
}

// WithFlashDefaults sets the batch defaults applied when a flash request
// leaves them out.
func WithFlashDefaults(baudRate int, eraseBeforeFlash bool) Option {
	return func(c *Config) {
		if baudRate > 0 {
			c.BaudRate = baudRate
		}
		c.EraseBeforeFlash = eraseBeforeFlash
	}
}

// WithCompletionSlice sets the per-part completion slice of progress.
func WithCompletionSlice(slice float64) Option {
	return func(c *Config) {
		c.CompletionSlice = slice
	}
}

// WithMaxUploadSize limits the size of uploaded part files.
func WithMaxUploadSize(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxUploadSize = n
		}
	}
}

// WithPartitionTable sets the partition table used by sessions without
// metadata.
func WithPartitionTable(t *partition.Table) Option {
	return func(c *Config) {
		c.Partitions = t
	}
}
