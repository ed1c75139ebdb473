package partition

import (
	"fmt"
	"sort"
)

// Alignment is the required offset and size alignment (one flash sector).
const Alignment = 0x1000

// ValidationError describes a structural problem in a partition table.
type ValidationError struct {
	Index  int
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("partition %d (%s): %s", e.Index, e.Name, e.Reason)
}

// OverlapError reports two partitions sharing flash space.
type OverlapError struct {
	First  *Entry
	Second *Entry
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("partition overlap: %q (0x%X-0x%X) overlaps %q (offset 0x%X)",
		e.First.Name, e.First.Offset, e.First.End(), e.Second.Name, e.Second.Offset)
}

// Validate checks names, sector alignment and overlaps.
func (t *Table) Validate() error {
	if len(t.Entries) == 0 {
		return fmt.Errorf("partition table is empty")
	}

	for i, e := range t.Entries {
		switch {
		case e.Name == "":
			return &ValidationError{Index: i, Name: e.Name, Reason: "empty name"}
		case len(e.Name) > NameSize:
			return &ValidationError{Index: i, Name: e.Name,
				Reason: fmt.Sprintf("name too long (%d > %d)", len(e.Name), NameSize)}
		case e.Offset%Alignment != 0:
			return &ValidationError{Index: i, Name: e.Name,
				Reason: fmt.Sprintf("offset 0x%X is not aligned to 0x%X", e.Offset, Alignment)}
		case e.Size != SizeRestOfFlash && e.Size%Alignment != 0:
			return &ValidationError{Index: i, Name: e.Name,
				Reason: fmt.Sprintf("size 0x%X is not aligned to 0x%X", e.Size, Alignment)}
		}
	}

	sorted := make([]*Entry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		if cur.Size == SizeRestOfFlash {
			continue
		}
		if cur.End() > uint64(next.Offset) {
			return &OverlapError{First: cur, Second: next}
		}
	}
	return nil
}
