// Package address maps firmware parts to flash addresses.
//
// Build metadata always wins. Without metadata, a partition table (if one
// was supplied) is searched by role, and as a last resort the conventional
// ESP32 layout for the chip family and flash size is used:
//
//	bootloader*.bin     0x1000 (ESP32, ESP32-S2) or 0x0 (newer chips)
//	partitions*.bin     0x8000
//	*factory*/*merged*  0x0
//	other firmware      0x10000
//	ota                 0x260000 / 0x5D0000 / 0x650000  (4 / 8 / 16 MB)
//	filesystem          0x300000 / 0x670000 / 0xC90000  (4 / 8 / 16 MB)
//
// A part that cannot be resolved is not an error: the caller must ask the
// operator for an address.
package address
