package flasher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moffa90/go-fwflash/memmap"
)

var (
	// ErrBusy is returned when a batch is already running on the sequencer.
	ErrBusy = errors.New("a flash batch is already running")

	// ErrNotFlashable is wrapped by *NotFlashableError.
	ErrNotFlashable = errors.New("batch is not flashable")
)

// PartError indicates that writing one part failed. Parts written before it
// stay written; nothing is rolled back.
type PartError struct {
	Index    int
	Filename string
	Address  uint32
	Cause    error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("write %s at 0x%X failed: %v", e.Filename, e.Address, e.Cause)
}

func (e *PartError) Unwrap() error { return e.Cause }

// ConnectionLostError indicates that the device went away mid-batch.
// Filename is empty when the connection was lost during erase.
type ConnectionLostError struct {
	Filename string
	Address  uint32
	Cause    error
}

func (e *ConnectionLostError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("connection lost during erase: %v", e.Cause)
	}
	return fmt.Sprintf("connection lost while writing %s at 0x%X: %v", e.Filename, e.Address, e.Cause)
}

func (e *ConnectionLostError) Unwrap() error { return e.Cause }

// EraseError indicates that the erase before the first write failed.
type EraseError struct {
	Cause error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("erase failed: %v", e.Cause)
}

func (e *EraseError) Unwrap() error { return e.Cause }

// CancelledError indicates that the batch was cancelled between parts.
// The device may hold a partially updated firmware.
type CancelledError struct {
	// PartsWritten is the number of parts fully written before cancellation
	PartsWritten int
	PartCount    int
	Cause        error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled after %d of %d parts: %v", e.PartsWritten, e.PartCount, e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// NotFlashableError is returned by NewBatch for parts that cannot enter
// the sequencer.
type NotFlashableError struct {
	Status     memmap.Status
	Conflicts  []string
	Unresolved []string
	Reason     string
}

func (e *NotFlashableError) Error() string {
	var b strings.Builder
	b.WriteString("batch is not flashable")
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if len(e.Conflicts) > 0 {
		fmt.Fprintf(&b, " (conflicting files: %s)", strings.Join(e.Conflicts, ", "))
	}
	if len(e.Unresolved) > 0 {
		fmt.Fprintf(&b, " (unresolved files: %s)", strings.Join(e.Unresolved, ", "))
	}
	return b.String()
}

func (e *NotFlashableError) Unwrap() error { return ErrNotFlashable }
