package flasher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moffa90/go-fwflash/firmware"
)

// Sequencer writes batches of parts to a connected device.
//
// A Sequencer runs one batch at a time; Flash returns ErrBusy while another
// batch is running. After a batch completes or fails, the next batch may be
// started on the same Sequencer.
type Sequencer struct {
	programmer DeviceProgrammer
	config     Config

	run   sync.Mutex
	mu    sync.Mutex
	state State
}

// New creates a new Sequencer for an already connected programmer.
//
// Example:
//
//	info, err := programmer.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	f := flasher.New(programmer,
//	    flasher.WithProgressCallback(progressFunc),
//	    flasher.WithLogger(logger),
//	)
func New(programmer DeviceProgrammer, opts ...Option) *Sequencer {
	if programmer == nil {
		panic("programmer cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Sequencer{
		programmer: programmer,
		config:     cfg,
		state:      StateIdle,
	}
}

// State returns the state of the current or last batch.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Order returns the batch parts in write order: ascending address, ties
// keeping submission order.
func Order(parts []*firmware.Part) []*firmware.Part {
	ordered := make([]*firmware.Part, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].AddressValue() < ordered[j].AddressValue()
	})
	return ordered
}

// Flash performs the complete flashing sequence:
//  1. Order parts by ascending address
//  2. Erase once, if the batch requests it
//  3. Write each part, stopping at the first failure
//
// Cancellation is checked before the erase and between parts. A write in
// progress is never interrupted. Already written parts are not rolled back
// on failure or cancellation.
//
// Example:
//
//	batch, _ := flasher.NewBatch(parts, validation, flasher.BatchOptions{EraseBeforeFlash: true})
//	err := f.Flash(context.Background(), batch)
func (s *Sequencer) Flash(ctx context.Context, batch *Batch) (err error) {
	if batch == nil || len(batch.Parts) == 0 {
		return fmt.Errorf("batch cannot be empty")
	}
	if !s.run.TryLock() {
		return ErrBusy
	}
	defer s.run.Unlock()

	startTime := time.Now()
	parts := Order(batch.Parts)
	n := len(parts)
	tracker := &progressTracker{
		seq:   s,
		start: startTime,
		count: n,
		slice: s.config.CompletionSlice,
	}

	s.setState(StateIdle)
	s.logInfo("starting batch",
		"batch", batch.ID,
		"parts", n,
		"bytes", batch.TotalBytes(),
		"erase", batch.EraseBeforeFlash,
	)

	defer func() {
		outcome := StateCompleted
		if err != nil {
			outcome = StateFailed
			s.setState(StateFailed)
			tracker.report(Progress{State: StateFailed})
			s.logError("batch failed", "batch", batch.ID, "error", err)
		}
		s.config.Metrics.RecordFlash(batch.ChipFamily, string(outcome), time.Since(startTime))
	}()

	if err := ctx.Err(); err != nil {
		return &CancelledError{PartCount: n, Cause: err}
	}

	// Preparing: erase exactly once
	if batch.EraseBeforeFlash {
		s.setState(StatePreparing)
		tracker.report(Progress{State: StatePreparing})
		s.logDebug("erasing flash", "batch", batch.ID)

		if err := s.programmer.Erase(context.WithoutCancel(ctx)); err != nil {
			if errors.Is(err, ErrConnectionLost) {
				return &ConnectionLostError{Cause: err}
			}
			return &EraseError{Cause: err}
		}
	}

	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return &CancelledError{PartsWritten: i, PartCount: n, Cause: err}
		}

		addr := part.AddressValue()
		s.setState(StateWriting)
		current := Progress{
			State:          StateWriting,
			PartIndex:      i,
			Filename:       part.Filename,
			Address:        addr,
			PartBytesTotal: part.Size(),
		}
		tracker.report(current)

		s.logDebug("writing part",
			"batch", batch.ID,
			"index", i,
			"file", part.Filename,
			"address", fmt.Sprintf("0x%X", addr),
			"size", part.Size(),
		)

		onWrite := func(written, total int) {
			p := current
			p.PartBytesWritten = written
			if total > 0 {
				p.PartBytesTotal = total
			}
			tracker.report(p)
		}

		if err := s.programmer.Write(context.WithoutCancel(ctx), addr, part.Content, onWrite); err != nil {
			if errors.Is(err, ErrConnectionLost) {
				return &ConnectionLostError{Filename: part.Filename, Address: addr, Cause: err}
			}
			return &PartError{Index: i, Filename: part.Filename, Address: addr, Cause: err}
		}

		s.config.Metrics.RecordPartWritten(batch.ChipFamily, string(part.Role), part.Size())
		tracker.partDone(current)
	}

	s.setState(StateCompleted)
	tracker.report(Progress{State: StateCompleted, PartIndex: n - 1})

	s.logInfo("batch complete",
		"batch", batch.ID,
		"parts", n,
		"bytes", tracker.bytesDone,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// progressTracker turns per-part write progress into monotonic overall
// progress. Part i spans [i*w, (i+1)*w) with w = 100/count; byte progress
// fills the first (1-slice) of that span and the rest is added when the
// part completes.
type progressTracker struct {
	seq       *Sequencer
	start     time.Time
	count     int
	slice     float64
	partsDone int
	bytesDone int
	last      float64
}

func (t *progressTracker) report(p Progress) {
	w := 100 / float64(t.count)
	pct := float64(t.partsDone) * w
	inFlight := p.State == StateWriting && p.PartIndex == t.partsDone

	if inFlight && p.PartBytesTotal > 0 {
		frac := float64(p.PartBytesWritten) / float64(p.PartBytesTotal)
		if frac > 1 {
			frac = 1
		}
		pct += frac * w * (1 - t.slice)
	}
	if p.State == StateCompleted {
		pct = 100
	}
	if pct < t.last {
		pct = t.last
	}
	t.last = pct

	p.PartCount = t.count
	p.Percentage = pct
	p.BytesWritten = t.bytesDone
	if inFlight {
		p.BytesWritten += p.PartBytesWritten
	}
	p.ElapsedTime = time.Since(t.start)
	t.seq.reportProgress(p)
}

func (t *progressTracker) partDone(p Progress) {
	t.partsDone++
	t.bytesDone += p.PartBytesTotal
	p.PartBytesWritten = p.PartBytesTotal
	t.report(p)
}

// reportProgress calls the progress callback if configured.
func (s *Sequencer) reportProgress(progress Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (s *Sequencer) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Sequencer) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Sequencer) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
