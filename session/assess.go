package session

import (
	"github.com/moffa90/go-fwflash/address"
	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/memmap"
	"github.com/moffa90/go-fwflash/partition"
)

// Inputs are everything address resolution and validation depend on.
type Inputs struct {
	Parts         []*firmware.Part
	Metadata      *firmware.Metadata
	ConnectedChip string

	// FlashSize in bytes. When 0, the metadata's declared flash size is used.
	FlashSize uint64

	// Partitions is consulted when no metadata is set (optional)
	Partitions *partition.Table

	// Overrides holds operator-entered addresses by filename
	Overrides map[string]uint32
}

// ResolvedPart is one part with the outcome of its address resolution.
type ResolvedPart struct {
	Part *firmware.Part

	// Source is where the address came from; empty when unresolved
	Source address.Source
}

// Assessment is the pure result of ResolveAndValidate.
type Assessment struct {
	// Parts are copies of the input parts with addresses filled in,
	// in input order
	Parts []ResolvedPart

	// Segments covers resolved parts with content, in input order
	Segments []firmware.Segment

	// Unresolved lists parts that need a manual address
	Unresolved []string

	// Pending lists resolved parts whose content is not available yet
	Pending []string

	// FlashSize is the size the boundary check used, 0 if unknown
	FlashSize uint64

	Validation memmap.Result
}

// Source values beyond address.Source.
const (
	// SourceOverride is an operator-entered address
	SourceOverride address.Source = "override"

	// SourceEmbedded is an address a user-supplied part carried (Intel
	// HEX records). Downloaded parts are placed by the current metadata.
	SourceEmbedded address.Source = "embedded"
)

// Flashable reports whether a batch may be built from the assessment.
func (a Assessment) Flashable(acknowledgeChipMismatch bool) bool {
	return len(a.Parts) > 0 && len(a.Unresolved) == 0 && len(a.Pending) == 0 &&
		a.Validation.Flashable(acknowledgeChipMismatch)
}

// ResolvedParts returns the resolved part copies.
func (a Assessment) ResolvedParts() []*firmware.Part {
	parts := make([]*firmware.Part, 0, len(a.Parts))
	for _, rp := range a.Parts {
		if rp.Part.Resolved() {
			parts = append(parts, rp.Part)
		}
	}
	return parts
}

// ResolveAndValidate resolves every part's address and validates the
// resulting memory map. It does not modify its inputs and returns equal
// results for equal inputs.
//
// Address priority per part: operator override, address already carried
// by the part, then address.Resolve.
func ResolveAndValidate(in Inputs) Assessment {
	a := Assessment{Parts: make([]ResolvedPart, 0, len(in.Parts))}

	chip := firmware.NormalizeChipFamily(in.ConnectedChip)
	flashSize := in.FlashSize
	if flashSize == 0 && in.Metadata != nil && in.Metadata.FlashSize != "" {
		n, err := memmap.ParseFlashSize(in.Metadata.FlashSize)
		if err != nil {
			a.Validation = memmap.Unknown("metadata flash size: %v", err)
		}
		flashSize = n
	}
	a.FlashSize = flashSize

	opts := []address.Option{address.WithPartitionTable(in.Partitions)}
	if flashSize > 0 && flashSize <= 1<<32-1 {
		opts = append(opts, address.WithFlashSize(uint32(flashSize)))
	}

	for _, p := range in.Parts {
		if p == nil {
			continue
		}
		rp := ResolvedPart{Part: p.Clone()}
		downloaded := p.SourcePath != ""
		if downloaded {
			rp.Part.Address = nil
		}

		if addr, ok := in.Overrides[p.Filename]; ok {
			rp.Part = p.WithAddress(addr)
			rp.Source = SourceOverride
		} else if p.Resolved() && !downloaded {
			rp.Source = SourceEmbedded
		} else if res, ok := resolvePart(p, in.Metadata, chip, opts); ok {
			rp.Part = p.WithAddress(res.Address)
			rp.Source = res.Source
		}

		switch {
		case !rp.Part.Resolved():
			a.Unresolved = append(a.Unresolved, p.Filename)
		case !rp.Part.HasContent():
			a.Pending = append(a.Pending, p.Filename)
		default:
			seg, _ := firmware.SegmentOf(rp.Part)
			a.Segments = append(a.Segments, seg)
		}
		a.Parts = append(a.Parts, rp)
	}

	if a.Validation.Status == memmap.StatusUnknownError {
		return a
	}

	a.Validation = memmap.Validate(a.Segments, flashSize)
	if in.Metadata != nil {
		a.Validation = memmap.CheckChip(a.Validation, in.Metadata.ChipFamily, chip)
	}
	return a
}

// resolvePart places a downloaded part by the metadata entry it was
// fetched from before falling back to its name.
func resolvePart(p *firmware.Part, meta *firmware.Metadata, chip string, opts []address.Option) (address.Resolution, bool) {
	if p.SourcePath != "" {
		if meta != nil {
			for _, mp := range meta.Parts {
				if mp.Path == p.SourcePath {
					return address.Resolution{Address: mp.Offset, Role: p.Role, Source: address.SourceMetadata}, true
				}
			}
		}
		if res, ok := address.Resolve(p.SourcePath, meta, chip, opts...); ok {
			return res, true
		}
	}
	return address.Resolve(p.Filename, meta, chip, opts...)
}
