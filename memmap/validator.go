package memmap

import (
	"fmt"
	"sort"

	"github.com/moffa90/go-fwflash/firmware"
)

// Status is the tag of a validation result.
type Status string

const (
	// StatusValid means no conflicts and no chip mismatch.
	StatusValid Status = "valid"

	// StatusFilesConflict means at least two segments overlap.
	StatusFilesConflict Status = "files-conflict"

	// StatusChipMismatch means the connected chip differs from the metadata.
	StatusChipMismatch Status = "chip-mismatch"

	// StatusUnknownError means validation could not be performed.
	StatusUnknownError Status = "unknown-error"
)

// BoundaryWarning reports a segment extending past the end of flash.
type BoundaryWarning struct {
	Filename string
	Address  uint32
	End      uint64

	// Excess is the number of bytes past the end of flash
	Excess uint64
}

func (w BoundaryWarning) String() string {
	return fmt.Sprintf("%s: 0x%X-0x%X exceeds flash size by 0x%X bytes", w.Filename, w.Address, w.End, w.Excess)
}

// ChipMismatch describes a connected device that does not match metadata.
type ChipMismatch struct {
	Expected  string
	Connected string
}

// Result is the outcome of validating one set of segments.
// It is a pure function of its inputs and is recomputed, never patched.
type Result struct {
	Status Status

	// Conflicts lists every filename involved in an overlap, sorted
	Conflicts []string

	// BoundaryWarnings lists segments past the end of flash, in address order.
	// Warnings do not block flashing.
	BoundaryWarnings []BoundaryWarning

	// Mismatch is set when Status is StatusChipMismatch
	Mismatch *ChipMismatch

	// Message explains StatusUnknownError
	Message string
}

// Flashable reports whether the batch may proceed. Conflicts and unknown
// errors block. A chip mismatch is flashable only once acknowledged.
func (r Result) Flashable(mismatchAcknowledged bool) bool {
	switch r.Status {
	case StatusValid:
		return true
	case StatusChipMismatch:
		return mismatchAcknowledged
	default:
		return false
	}
}

// HasBoundaryWarnings reports whether the operator must be warned first.
func (r Result) HasBoundaryWarnings() bool {
	return len(r.BoundaryWarnings) > 0
}

// ConflictSet returns Conflicts as a set.
func (r Result) ConflictSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Conflicts))
	for _, f := range r.Conflicts {
		set[f] = struct{}{}
	}
	return set
}

// Validate checks segments for pairwise overlaps and for writes past
// totalFlashSize. A totalFlashSize of 0 disables the boundary check.
// The input slice is not modified.
//
// Example:
//
//	res := memmap.Validate([]firmware.Segment{
//	    {Address: 0x0, Size: 0x1000, Filename: "firmware.bin"},
//	    {Address: 0x300000, Size: 0x1000, Filename: "littlefs.bin"},
//	}, 4<<20)
//	// res.Status == memmap.StatusValid
func Validate(segments []firmware.Segment, totalFlashSize uint64) Result {
	sorted := make([]firmware.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	conflicts := make(map[string]struct{})
	for i := range sorted {
		for j := 0; j < i; j++ {
			if sorted[i].Overlaps(sorted[j]) {
				conflicts[sorted[i].Filename] = struct{}{}
				conflicts[sorted[j].Filename] = struct{}{}
			}
		}
	}

	var warnings []BoundaryWarning
	if totalFlashSize > 0 {
		for _, s := range sorted {
			if end := s.End(); end > totalFlashSize {
				warnings = append(warnings, BoundaryWarning{
					Filename: s.Filename,
					Address:  s.Address,
					End:      end,
					Excess:   end - totalFlashSize,
				})
			}
		}
	}

	res := Result{Status: StatusValid, BoundaryWarnings: warnings}
	if len(conflicts) > 0 {
		res.Status = StatusFilesConflict
		res.Conflicts = make([]string, 0, len(conflicts))
		for f := range conflicts {
			res.Conflicts = append(res.Conflicts, f)
		}
		sort.Strings(res.Conflicts)
	}
	return res
}

// CheckChip applies the chip family check to a result. Conflicts take
// precedence over a mismatch. Either side being unknown is not a mismatch.
func CheckChip(res Result, metadataChip, connectedChip string) Result {
	if res.Status != StatusValid {
		return res
	}
	expected := firmware.NormalizeChipFamily(metadataChip)
	connected := firmware.NormalizeChipFamily(connectedChip)
	if expected == "" || connected == "" || expected == connected {
		return res
	}
	res.Status = StatusChipMismatch
	res.Mismatch = &ChipMismatch{Expected: expected, Connected: connected}
	return res
}

// Unknown builds an UnknownError result.
func Unknown(format string, args ...interface{}) Result {
	return Result{Status: StatusUnknownError, Message: fmt.Sprintf(format, args...)}
}
