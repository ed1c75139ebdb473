package address

import (
	"strings"

	"github.com/moffa90/go-fwflash/firmware"
)

// Default flash layout offsets for ESP32 family chips.
const (
	// BootloaderOffsetLegacy is the bootloader offset on ESP32 and ESP32-S2
	BootloaderOffsetLegacy = 0x1000

	// BootloaderOffset is the bootloader offset on newer ESP32 variants
	BootloaderOffset = 0x0

	// PartitionTableOffset is where the partition table is written
	PartitionTableOffset = 0x8000

	// MergedImageOffset is where factory/merged images start
	MergedImageOffset = 0x0

	// AppOffset is the application (update) image offset
	AppOffset = 0x10000

	// DefaultFlashSize is assumed when the flash size is unknown
	DefaultFlashSize = 4 << 20
)

// sizedOffsets holds role offsets that depend on the flash size.
type sizedOffsets struct {
	ota        uint32
	filesystem uint32
}

var offsetsByFlashSize = map[uint32]sizedOffsets{
	4 << 20:  {ota: 0x260000, filesystem: 0x300000},
	8 << 20:  {ota: 0x5D0000, filesystem: 0x670000},
	16 << 20: {ota: 0x650000, filesystem: 0xC90000},
}

type fileKind int

const (
	kindImage fileKind = iota
	kindBootloader
	kindPartitions
	kindMerged
)

func kind(filename string) fileKind {
	name := strings.ToLower(firmware.BaseName(filename))
	switch {
	case strings.Contains(name, "bootloader"):
		return kindBootloader
	case strings.Contains(name, "partition"):
		return kindPartitions
	case strings.Contains(name, "factory"), strings.Contains(name, "merged"):
		return kindMerged
	default:
		return kindImage
	}
}

// Default returns the conventional address for a part on an ESP32 family
// chip. Non-ESP and unknown chips have no default layout. A flashSize of
// 0 means DefaultFlashSize.
//
// Example:
//
//	addr, ok := address.Default("bleota.bin", firmware.RoleOTA, "ESP32-S3", 8<<20)
//	// addr == 0x5D0000, ok == true
func Default(filename string, role firmware.Role, chip string, flashSize uint32) (uint32, bool) {
	family := firmware.NormalizeChipFamily(chip)
	if !firmware.IsESPFamily(family) {
		return 0, false
	}
	if flashSize == 0 {
		flashSize = DefaultFlashSize
	}

	switch role {
	case firmware.RoleOTA:
		o, ok := offsetsByFlashSize[flashSize]
		return o.ota, ok
	case firmware.RoleFilesystem:
		o, ok := offsetsByFlashSize[flashSize]
		return o.filesystem, ok
	}

	switch kind(filename) {
	case kindBootloader:
		if family == firmware.ChipESP32 || family == firmware.ChipESP32S2 {
			return BootloaderOffsetLegacy, true
		}
		return BootloaderOffset, true
	case kindPartitions:
		return PartitionTableOffset, true
	case kindMerged:
		return MergedImageOffset, true
	default:
		return AppOffset, true
	}
}
