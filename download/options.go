package download

import (
	"net/http"
	"time"

	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/metrics"
)

// Config holds the downloader configuration.
type Config struct {
	// Client performs the requests. Default is a client without a global
	// timeout, since deadlines are set per part.
	Client *http.Client

	// BaseURL resolves relative part paths (optional)
	BaseURL string

	// BaseTimeout bounds each fetch until its size is known
	BaseTimeout time.Duration

	// PerMiBTimeout is added to BaseTimeout for every started MiB once
	// Content-Length is known. Zero disables the size allowance.
	PerMiBTimeout time.Duration

	// UserAgent is sent with every request (optional)
	UserAgent string

	// MaxPartSize is the largest accepted part, in bytes
	MaxPartSize int64

	// Logger is used for logging operations (optional)
	Logger logging.Logger

	// Metrics records download metrics (optional)
	Metrics *metrics.Recorder
}

func defaultConfig() Config {
	return Config{
		Client:        &http.Client{},
		BaseTimeout:   30 * time.Second,
		PerMiBTimeout: 10 * time.Second,
		UserAgent:     "go-fwflash",
		MaxPartSize:   64 << 20,
	}
}

// Option is a functional option for configuring the Downloader.
type Option func(*Config)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Client = c
		}
	}
}

// WithBaseURL sets the URL relative part paths are resolved against.
//
// Example:
//
//	d := download.New(download.WithBaseURL("https://flasher.example.org/api/"))
func WithBaseURL(base string) Option {
	return func(c *Config) {
		c.BaseURL = base
	}
}

// WithTimeout sets the base timeout and the per-MiB allowance.
//
// Example:
//
//	// 20s, plus 5s per MiB once the size is known
//	d := download.New(download.WithTimeout(20*time.Second, 5*time.Second))
func WithTimeout(base, perMiB time.Duration) Option {
	return func(c *Config) {
		if base > 0 {
			c.BaseTimeout = base
		}
		if perMiB >= 0 {
			c.PerMiBTimeout = perMiB
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithMaxPartSize limits the size of one part. Larger bodies, declared or
// received, fail the part.
func WithMaxPartSize(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxPartSize = n
		}
	}
}

// WithLogger sets a logger for download operations.
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
