package flasher

import "github.com/moffa90/go-fwflash/metrics"

// Config holds the sequencer configuration.
type Config struct {
	// ProgressCallback is called during flashing to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Metrics records flash metrics (optional)
	Metrics *metrics.Recorder

	// CompletionSlice is the share of each part's weight reserved for the
	// jump reported when the part finishes. Default is 0.05.
	CompletionSlice float64
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		CompletionSlice: 0.05,
	}
}

// Option is a functional option for configuring the Sequencer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track flashing progress.
//
// Example:
//
//	f := flasher.New(programmer,
//	    flasher.WithProgressCallback(func(p flasher.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the sequencer operations.
//
// Example:
//
//	f := flasher.New(programmer, flasher.WithLogger(logging.Zap(zl)))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics enables Prometheus metrics for flash runs.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Config) {
		c.Metrics = r
	}
}

// WithCompletionSlice sets the share of each part's progress weight that is
// reported only once the part completes. Values outside [0, 1) are ignored.
//
// Example:
//
//	f := flasher.New(programmer, flasher.WithCompletionSlice(0.10))
func WithCompletionSlice(slice float64) Option {
	return func(c *Config) {
		if slice >= 0 && slice < 1 {
			c.CompletionSlice = slice
		}
	}
}
