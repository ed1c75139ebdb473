package address

import (
	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/partition"
)

// Source tells where a resolved address came from.
type Source string

const (
	// SourceMetadata means the address was declared by build metadata.
	SourceMetadata Source = "metadata"

	// SourcePartitionTable means the address came from a partitions.bin.
	SourcePartitionTable Source = "partition-table"

	// SourceDefault means the address came from the chip's default layout.
	SourceDefault Source = "default"
)

// Resolution is the outcome of resolving one part.
type Resolution struct {
	// Address is the flash byte offset
	Address uint32

	// Role is the role classified from the filename
	Role firmware.Role

	// Source tells which rule produced Address
	Source Source
}

// Config holds optional resolution hints.
type Config struct {
	// FlashSize is the device flash size in bytes (0 if unknown)
	FlashSize uint32

	// Partitions is a partition table to consult when no metadata is given
	Partitions *partition.Table
}

// Option is a functional option for Resolve.
type Option func(*Config)

// WithFlashSize sets the device flash size used by the default layout.
//
// Example:
//
//	res, ok := address.Resolve("littlefs.bin", nil, "ESP32", address.WithFlashSize(8<<20))
func WithFlashSize(size uint32) Option {
	return func(c *Config) {
		c.FlashSize = size
	}
}

// WithPartitionTable sets a partition table used when no metadata is given.
//
// Example:
//
//	table, _ := partition.Parse("partitions.bin")
//	res, ok := address.Resolve("firmware.bin", nil, "ESP32-S3", address.WithPartitionTable(table))
func WithPartitionTable(t *partition.Table) Option {
	return func(c *Config) {
		c.Partitions = t
	}
}

// Resolve computes the flash address and role for filename.
//
// Rules, in order:
//  1. role is classified from the filename
//  2. a metadata part matching the filename (exact or suffix) wins
//  3. with metadata present but no match, the part is unresolved
//  4. without metadata, a partition table is consulted, then the default
//     layout of the chip family
//
// connectedChip is the family reported by the device (may be empty). A
// mismatch with metadata.ChipFamily is not checked here; see memmap.
// The second return value is false when the caller must ask for a manual
// address. Resolve never modifies meta.
func Resolve(filename string, meta *firmware.Metadata, connectedChip string, opts ...Option) (Resolution, bool) {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	role := firmware.ClassifyRole(filename)

	if meta != nil {
		p, ok := meta.Lookup(filename)
		if !ok {
			return Resolution{Role: role}, false
		}
		return Resolution{Address: p.Offset, Role: role, Source: SourceMetadata}, true
	}

	if addr, ok := fromPartitionTable(cfg.Partitions, filename, role); ok {
		return Resolution{Address: addr, Role: role, Source: SourcePartitionTable}, true
	}

	if addr, ok := Default(filename, role, connectedChip, cfg.FlashSize); ok {
		return Resolution{Address: addr, Role: role, Source: SourceDefault}, true
	}

	return Resolution{Role: role}, false
}

// Subtype search order per role. The 0x09/0x08 values are the littlefs and
// spiffs codes some build tools emit instead of 0x83/0x82.
var (
	firmwareSubtypes   = []byte{partition.SubtypeOTA0, partition.SubtypeFactory}
	otaSubtypes        = []byte{partition.SubtypeOTA1, partition.SubtypeOTA0, partition.SubtypeFactory}
	filesystemSubtypes = []byte{
		partition.SubtypeLittleFS, partition.SubtypeLittleFSAlt,
		partition.SubtypeSPIFFS, partition.SubtypeSPIFFSAlt,
	}
)

func fromPartitionTable(t *partition.Table, filename string, role firmware.Role) (uint32, bool) {
	if t == nil {
		return 0, false
	}

	// bootloader and partition images live outside the table
	switch kind(filename) {
	case kindBootloader, kindPartitions, kindMerged:
		return 0, false
	}

	switch role {
	case firmware.RoleOTA:
		return t.FindOffset(partition.TypeApp, otaSubtypes...)
	case firmware.RoleFilesystem:
		return t.FindOffset(partition.TypeData, filesystemSubtypes...)
	default:
		return t.FindOffset(partition.TypeApp, firmwareSubtypes...)
	}
}
