package flasher

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/memmap"
)

// Batch is the unit of work for one flashing run. It is built by NewBatch
// and is not modified by the sequencer.
type Batch struct {
	// ID identifies the batch in logs and API responses
	ID string

	// Parts in submission order. All are resolved and have content.
	Parts []*firmware.Part

	// EraseBeforeFlash requests one erase before the first write
	EraseBeforeFlash bool

	// BaudRate is the transport speed requested for this batch
	BaudRate int

	// ChipFamily is the connected device's family, used for metrics
	ChipFamily string
}

// BatchOptions controls NewBatch.
type BatchOptions struct {
	EraseBeforeFlash bool
	BaudRate         int
	ChipFamily       string

	// AcknowledgeChipMismatch allows a batch whose validation reported a
	// chip mismatch. The operator accepts the risk.
	AcknowledgeChipMismatch bool
}

// NewBatch builds a batch from validated parts.
//
// It fails with *NotFlashableError when a part has no address or no content,
// when the parts overlap, or when validation does not allow flashing.
// Parts are copied; later changes to the inputs do not affect the batch.
//
// Example:
//
//	res := memmap.Validate(segments, flashSize)
//	batch, err := flasher.NewBatch(parts, res, flasher.BatchOptions{EraseBeforeFlash: true})
func NewBatch(parts []*firmware.Part, validation memmap.Result, opts BatchOptions) (*Batch, error) {
	if len(parts) == 0 {
		return nil, &NotFlashableError{Reason: "no parts"}
	}

	var unresolved []string
	copies := make([]*firmware.Part, 0, len(parts))
	segments := make([]firmware.Segment, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			return nil, &NotFlashableError{Reason: "nil part"}
		}
		if !p.Resolved() {
			unresolved = append(unresolved, p.Filename)
			continue
		}
		if !p.HasContent() {
			return nil, &NotFlashableError{Reason: fmt.Sprintf("%s has no content", p.Filename)}
		}
		cp := p.Clone()
		copies = append(copies, cp)
		seg, _ := firmware.SegmentOf(cp)
		segments = append(segments, seg)
	}
	if len(unresolved) > 0 {
		return nil, &NotFlashableError{Reason: "parts without address", Unresolved: unresolved}
	}

	// overlaps block regardless of the validation passed in
	if res := memmap.Validate(segments, 0); res.Status == memmap.StatusFilesConflict {
		return nil, &NotFlashableError{Status: res.Status, Conflicts: res.Conflicts, Reason: "overlapping parts"}
	}

	if !validation.Flashable(opts.AcknowledgeChipMismatch) {
		reason := fmt.Sprintf("validation status %s", validation.Status)
		if validation.Status == memmap.StatusChipMismatch && validation.Mismatch != nil {
			reason = fmt.Sprintf("chip mismatch (firmware %s, device %s) not acknowledged",
				validation.Mismatch.Expected, validation.Mismatch.Connected)
		}
		if validation.Message != "" {
			reason += ": " + validation.Message
		}
		return nil, &NotFlashableError{Status: validation.Status, Conflicts: validation.Conflicts, Reason: reason}
	}

	return &Batch{
		ID:               uuid.NewString(),
		Parts:            copies,
		EraseBeforeFlash: opts.EraseBeforeFlash,
		BaudRate:         opts.BaudRate,
		ChipFamily:       firmware.NormalizeChipFamily(opts.ChipFamily),
	}, nil
}

// TotalBytes returns the sum of all part sizes.
func (b *Batch) TotalBytes() int {
	total := 0
	for _, p := range b.Parts {
		total += p.Size()
	}
	return total
}
