// Package firmware holds the data model shared by the flashing pipeline.
//
// # Parts
//
// A Part is one binary blob bound for a flash address:
//
//	p := firmware.NewPart("littlefs-2.5.6.bin", data)
//	fmt.Println(p.Role) // filesystem
//
// Its Address stays nil until an address resolver (or an Intel HEX file)
// supplies one. Parts are treated as values: resolution returns copies
// with WithAddress and never mutates the caller's part.
//
// # Metadata
//
// Metadata is the normalized description of a build, produced by the
// manifest package from either supported document shape. Lookup matches
// a filename against the declared parts:
//
//	mp, ok := meta.Lookup("meshtastic-firmware.bin")
//
// # Segments
//
// A Segment is the half-open interval [Address, Address+Size) one part
// occupies in flash. The memmap package validates sets of segments.
//
// # Chip families
//
// NormalizeChipFamily folds spellings ("esp32s3", "ESP32-S3") into one
// canonical family so comparisons between a manifest and a connected
// device do not depend on formatting.
package firmware
