package firmware

import (
	"fmt"
	"strings"
)

// Role classifies a firmware part. It drives default address conventions
// and is reported back to callers for display.
type Role string

const (
	// RoleFirmware is the main application image (also bootloader and
	// partition table images).
	RoleFirmware Role = "firmware"

	// RoleOTA is the OTA loader image (e.g. bleota.bin).
	RoleOTA Role = "ota"

	// RoleFilesystem is a filesystem image (littlefs or spiffs).
	RoleFilesystem Role = "filesystem"
)

// ClassifyRole infers a part's role from its filename.
//
//	*ota* / *bleota*       -> ota
//	*littlefs* / *spiffs*  -> filesystem
//	anything else          -> firmware
func ClassifyRole(filename string) Role {
	name := strings.ToLower(baseName(filename))
	switch {
	case strings.Contains(name, "ota"):
		return RoleOTA
	case strings.Contains(name, "littlefs"), strings.Contains(name, "spiffs"):
		return RoleFilesystem
	default:
		return RoleFirmware
	}
}

// Part is one binary blob to be written to flash.
type Part struct {
	// Filename is the part's file name (server-declared for downloads)
	Filename string

	// Role is inferred from Filename
	Role Role

	// Address is the flash byte offset. Nil until resolved.
	Address *uint32

	// Content is the binary payload. Nil until loaded or downloaded.
	Content []byte

	// SourcePath is the remote locator. Empty for user-supplied files.
	SourcePath string
}

// NewPart creates a part with its role classified from the filename.
func NewPart(filename string, content []byte) *Part {
	return &Part{
		Filename: filename,
		Role:     ClassifyRole(filename),
		Content:  content,
	}
}

// Size returns the content length in bytes.
func (p *Part) Size() int {
	return len(p.Content)
}

// HasContent reports whether the payload is available.
func (p *Part) HasContent() bool {
	return p.Content != nil
}

// Resolved reports whether the part has a flash address.
func (p *Part) Resolved() bool {
	return p.Address != nil
}

// AddressValue returns the resolved address, or 0 when unresolved.
func (p *Part) AddressValue() uint32 {
	if p.Address == nil {
		return 0
	}
	return *p.Address
}

// WithAddress returns a shallow copy of the part placed at addr.
// The receiver is not modified; Content is shared.
func (p *Part) WithAddress(addr uint32) *Part {
	cp := *p
	cp.Address = &addr
	return &cp
}

// Clone returns a shallow copy. Content is shared, Address is copied.
func (p *Part) Clone() *Part {
	cp := *p
	if p.Address != nil {
		addr := *p.Address
		cp.Address = &addr
	}
	return &cp
}

func (p *Part) String() string {
	if p.Address == nil {
		return fmt.Sprintf("%s (%s, unresolved, %d bytes)", p.Filename, p.Role, len(p.Content))
	}
	return fmt.Sprintf("%s (%s, 0x%X, %d bytes)", p.Filename, p.Role, *p.Address, len(p.Content))
}

// Metadata is the normalized description of a firmware build,
// independent of the document shape it was read from.
// It is never modified after Resolve returns it.
type Metadata struct {
	// Version is the firmware version string
	Version string

	// DeviceName is the board / target name
	DeviceName string

	// ChipFamily is the canonical chip family (see NormalizeChipFamily)
	ChipFamily string

	// FlashSize is the flash size declared by the document, if any (e.g. "4MB")
	FlashSize string

	// Parts lists the declared parts in document order
	Parts []MetadataPart
}

// MetadataPart is one declared part with its canonical flash offset.
type MetadataPart struct {
	// RelativeName is the last path segment of the part's locator
	RelativeName string

	// Offset is the flash byte offset
	Offset uint32

	// Path is the original locator (manifest path or legacy part name)
	Path string

	// Size is the declared size in bytes, 0 if not declared
	Size uint32
}

// Lookup finds the metadata part matching filename.
// An exact match wins; otherwise the longest suffix match (in either
// direction, on a name boundary) is used. Ties keep document order.
func (m *Metadata) Lookup(filename string) (MetadataPart, bool) {
	if m == nil || filename == "" {
		return MetadataPart{}, false
	}
	name := strings.ToLower(baseName(filename))

	best := -1
	bestLen := 0
	for i, p := range m.Parts {
		rel := strings.ToLower(p.RelativeName)
		if rel == "" {
			continue
		}
		if rel == name {
			return p, true
		}
		var l int
		switch {
		case suffixMatch(name, rel):
			l = len(rel)
		case suffixMatch(rel, name):
			l = len(name)
		default:
			continue
		}
		if l > bestLen {
			best, bestLen = i, l
		}
	}
	if best < 0 {
		return MetadataPart{}, false
	}
	return m.Parts[best], true
}

// suffixMatch reports whether s ends with suffix at a name boundary,
// so "meshtastic-firmware.bin" matches "firmware.bin" but
// "nofirmware.bin" does not.
func suffixMatch(s, suffix string) bool {
	if !strings.HasSuffix(s, suffix) {
		return false
	}
	if len(s) == len(suffix) {
		return true
	}
	switch s[len(s)-len(suffix)-1] {
	case '-', '_', '.', '/':
		return true
	}
	return false
}

// baseName returns the last path segment of name, ignoring any query string.
func baseName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimRight(name, "/")
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// BaseName returns the last path segment of a locator, dropping any
// query string.
func BaseName(locator string) string {
	return baseName(locator)
}

// Segment is the validation/display unit of one flash operation:
// the half-open interval [Address, Address+Size).
type Segment struct {
	Address  uint32
	Size     uint32
	Role     Role
	Filename string
}

// End returns the exclusive end address. Computed in 64 bits so
// segments near the top of the address space do not wrap.
func (s Segment) End() uint64 {
	return uint64(s.Address) + uint64(s.Size)
}

// Overlaps reports whether two segments share at least one byte.
// Empty segments occupy nothing and never overlap.
func (s Segment) Overlaps(o Segment) bool {
	if s.Size == 0 || o.Size == 0 {
		return false
	}
	return uint64(s.Address) < o.End() && s.End() > uint64(o.Address)
}

// SegmentOf builds a segment for a resolved part.
func SegmentOf(p *Part) (Segment, bool) {
	if p == nil || p.Address == nil {
		return Segment{}, false
	}
	return Segment{
		Address:  *p.Address,
		Size:     uint32(len(p.Content)),
		Role:     p.Role,
		Filename: p.Filename,
	}, true
}
