// Package memmap validates the flash memory map of a batch.
//
// Segments are half-open intervals [Address, Address+Size). Any pair of
// overlapping segments puts every file involved into the conflict set and
// blocks flashing. Segments extending past the flash size only produce
// boundary warnings, which must be shown to the operator but do not block.
//
//	res := memmap.Validate(segments, 4<<20)
//	res = memmap.CheckChip(res, meta.ChipFamily, connectedChip)
//	if !res.Flashable(acknowledged) {
//	    return fmt.Errorf("batch blocked: %s", res.Status)
//	}
package memmap
