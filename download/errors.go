package download

import (
	"fmt"
	"strings"
	"time"
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.StatusCode, e.URL)
}

// TimeoutError is returned when a fetch exceeds its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("download of %s timed out after %v", e.URL, e.Timeout)
}

// TooLargeError is returned when a part exceeds the size limit. Size is
// the declared Content-Length, or -1 when the body ran past the limit.
type TooLargeError struct {
	URL   string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("%s is larger than the %d byte limit", e.URL, e.Limit)
	}
	return fmt.Sprintf("%s declares %d bytes, limit is %d", e.URL, e.Size, e.Limit)
}

// PartFailure names one failed part.
type PartFailure struct {
	Index    int
	Filename string
	Err      error
}

// PartialFailureError is returned by DownloadAll when at least one part
// failed. The whole set should be retried.
type PartialFailureError struct {
	Total     int
	Succeeded int
	Cancelled int
	Failures  []PartFailure
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d parts failed to download", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Filename, f.Err)
	}
	return b.String()
}

// Unwrap returns the per-part causes.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
