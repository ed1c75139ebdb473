package partition

import "fmt"

const mib = 1024 * 1024

// Analysis summarizes a table for address and flash size decisions.
type Analysis struct {
	// FlashSize is the smallest standard size (2/4/8/16 MB, else whole MB)
	// that holds every partition, e.g. "4MB"
	FlashSize string

	// FlashSizeBytes is FlashSize in bytes
	FlashSizeBytes uint64

	// UsedBytes is the highest partition end offset
	UsedBytes uint64

	// Offsets maps partition name to offset
	Offsets map[string]uint32
}

// Analyze derives the flash size from the partition ending highest.
// Partitions sized "rest of flash" do not count towards the end.
func (t *Table) Analyze() Analysis {
	a := Analysis{Offsets: make(map[string]uint32, len(t.Entries))}

	for _, e := range t.Entries {
		a.Offsets[e.Name] = e.Offset
		if e.Size == SizeRestOfFlash {
			continue
		}
		if end := e.End(); end > a.UsedBytes {
			a.UsedBytes = end
		}
	}

	mb := (a.UsedBytes + mib - 1) / mib
	for _, std := range []uint64{2, 4, 8, 16} {
		if mb <= std {
			mb = std
			break
		}
	}
	a.FlashSize = fmt.Sprintf("%dMB", mb)
	a.FlashSizeBytes = mb * mib
	return a
}
