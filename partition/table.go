package partition

import "fmt"

// Partition types.
const (
	TypeApp  byte = 0x00
	TypeData byte = 0x01
)

// App subtypes.
const (
	SubtypeFactory byte = 0x00
	SubtypeOTA0    byte = 0x10
	SubtypeOTA1    byte = 0x11
	SubtypeTest    byte = 0x20
)

// Data subtypes.
const (
	SubtypeDataOTA     byte = 0x00
	SubtypePHY         byte = 0x01
	SubtypeNVS         byte = 0x02
	SubtypeCoredump    byte = 0x03
	SubtypeNVSKeys     byte = 0x04
	SubtypeEfuse       byte = 0x05
	SubtypeUndefined   byte = 0x06
	SubtypeESPHTTPD    byte = 0x80
	SubtypeFAT         byte = 0x81
	SubtypeSPIFFS      byte = 0x82
	SubtypeLittleFS    byte = 0x83
	SubtypeLittleFSAlt byte = 0x09
	SubtypeSPIFFSAlt   byte = 0x08
)

// FlagEncrypted marks an encrypted partition.
const FlagEncrypted uint32 = 0x01

// SizeRestOfFlash is the sentinel size meaning "to the end of flash".
const SizeRestOfFlash uint32 = 0xFFFFFFFF

// Entry is one row of an ESP-IDF partition table.
type Entry struct {
	// Name is the partition label (at most 16 bytes)
	Name string

	// Type is TypeApp or TypeData (other values are custom types)
	Type byte

	// Subtype depends on Type
	Subtype byte

	// Offset is the partition's flash offset in bytes
	Offset uint32

	// Size is the partition size in bytes
	Size uint32

	// Flags holds partition flags (bit 0 = encrypted)
	Flags uint32
}

// End returns the exclusive end offset.
func (e *Entry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}

// Encrypted reports whether the encrypted flag is set.
func (e *Entry) Encrypted() bool {
	return e.Flags&FlagEncrypted != 0
}

// TypeName returns "app", "data", or the hex value of a custom type.
func (e *Entry) TypeName() string {
	switch e.Type {
	case TypeApp:
		return "app"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("0x%02x", e.Type)
	}
}

// SubtypeName returns a human-readable subtype name.
func (e *Entry) SubtypeName() string {
	switch e.Type {
	case TypeApp:
		switch {
		case e.Subtype == SubtypeFactory:
			return "factory"
		case e.Subtype == SubtypeTest:
			return "test"
		case e.Subtype >= SubtypeOTA0 && e.Subtype <= SubtypeOTA0+15:
			return fmt.Sprintf("ota_%d", e.Subtype-SubtypeOTA0)
		}
	case TypeData:
		if name, ok := dataSubtypeNames[e.Subtype]; ok {
			return name
		}
	}
	return fmt.Sprintf("0x%02x", e.Subtype)
}

var dataSubtypeNames = map[byte]string{
	SubtypeDataOTA:     "ota",
	SubtypePHY:         "phy",
	SubtypeNVS:         "nvs",
	SubtypeCoredump:    "coredump",
	SubtypeNVSKeys:     "nvs_keys",
	SubtypeEfuse:       "efuse",
	SubtypeUndefined:   "undefined",
	SubtypeESPHTTPD:    "esphttpd",
	SubtypeFAT:         "fat",
	SubtypeSPIFFS:      "spiffs",
	SubtypeLittleFS:    "littlefs",
	SubtypeSPIFFSAlt:   "spiffs",
	SubtypeLittleFSAlt: "littlefs",
}

// Table is a parsed partition table.
type Table struct {
	// Entries in table order
	Entries []*Entry

	// MD5 is the digest row, if the table carried one
	MD5 []byte
}

// Get returns the entry with the given name.
func (t *Table) Get(name string) (*Entry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// FindOffset returns the offset of the best entry of type typ whose
// subtype is listed in subtypes. Earlier subtypes win; among entries
// with the same subtype the lowest offset wins.
//
// Example:
//
//	// Application slot: ota_0 first, then factory
//	off, ok := table.FindOffset(partition.TypeApp, partition.SubtypeOTA0, partition.SubtypeFactory)
func (t *Table) FindOffset(typ byte, subtypes ...byte) (uint32, bool) {
	if t == nil {
		return 0, false
	}

	var best *Entry
	bestRank := len(subtypes)
	for _, e := range t.Entries {
		if e.Type != typ {
			continue
		}
		rank := indexOf(subtypes, e.Subtype)
		if rank < 0 {
			continue
		}
		if best == nil || rank < bestRank || (rank == bestRank && e.Offset < best.Offset) {
			best, bestRank = e, rank
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Offset, true
}

func indexOf(list []byte, v byte) int {
	for i, b := range list {
		if b == v {
			return i
		}
	}
	return -1
}
