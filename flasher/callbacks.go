package flasher

import (
	"time"

	"github.com/moffa90/go-fwflash/logging"
)

// State is the sequencer state for the current batch.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateWriting   State = "writing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions happen for the batch.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress contains information about the flashing progress.
// Passed to ProgressCallback during Flash.
type Progress struct {
	// State is the current state:
	//   "preparing" - Erasing flash (only when the batch requests it)
	//   "writing"   - Writing part PartIndex
	//   "completed" - All parts written
	//   "failed"    - The batch stopped; see the error returned by Flash
	State State

	// PartIndex is the index of the current part in write order (0-based)
	PartIndex int

	// PartCount is the number of parts in the batch
	PartCount int

	// Filename and Address describe the current part
	Filename string
	Address  uint32

	// PartBytesWritten and PartBytesTotal track the current part
	PartBytesWritten int
	PartBytesTotal   int

	// Percentage is the overall completion percentage (0.0 to 100.0).
	// It never decreases within a batch.
	Percentage float64

	// BytesWritten is the total number of bytes written so far
	BytesWritten int

	// ElapsedTime is the time elapsed since the batch started
	ElapsedTime time.Duration
}

// ProgressCallback is called during flashing to report progress.
// Implementations should return quickly to avoid stalling the device writes.
//
// Example:
//
//	f := flasher.New(programmer,
//	    flasher.WithProgressCallback(func(p flasher.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %s (%d/%d)\n",
//	            p.State, p.Percentage, p.Filename, p.PartIndex+1, p.PartCount)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is the logging interface accepted by the sequencer.
type Logger = logging.Logger
