package partition

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// Constants for the ESP-IDF partition table binary format.
const (
	// EntrySize is the size of one table row in bytes
	EntrySize = 32

	// Magic starts every partition row (bytes 0xAA 0x50, little-endian)
	Magic = 0x50AA

	// MD5Magic starts the optional digest row (bytes 0xEB 0xEB)
	MD5Magic = 0xEBEB

	// EndMarker is an erased row (bytes 0xFF 0xFF)
	EndMarker = 0xFFFF

	// NameSize is the size of the NUL-padded label field
	NameSize = 16

	// MaxTableSize is the size of the flash sector holding the table
	MaxTableSize = 0xC00

	// DefaultOffset is where bootloaders look for the table
	DefaultOffset = 0x8000
)

// Parse parses a partitions.bin file from the given path.
//
// Example:
//
//	table, err := partition.Parse("partitions.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range table.Entries {
//	    fmt.Printf("%-16s %s/%s 0x%06X %d\n", e.Name, e.TypeName(), e.SubtypeName(), e.Offset, e.Size)
//	}
func Parse(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses a partition table from any io.Reader.
func ParseReader(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxTableSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a partition table image.
//
// Rows are read until an MD5 row or an erased row. An MD5 row is
// verified against the digest of all preceding rows.
func ParseBytes(data []byte) (*Table, error) {
	if len(data) < EntrySize {
		return nil, fmt.Errorf("table too short: got %d bytes, minimum is %d", len(data), EntrySize)
	}

	table := &Table{Entries: make([]*Entry, 0, 8)}

	for off := 0; ; off += EntrySize {
		if off+EntrySize > len(data) {
			return nil, fmt.Errorf("unexpected end of table at offset %d", off)
		}
		row := data[off : off+EntrySize]
		magic := binary.LittleEndian.Uint16(row[0:2])

		switch magic {
		case EndMarker:
			return finish(table)
		case MD5Magic:
			if err := verifyMD5(data[:off], row); err != nil {
				return nil, fmt.Errorf("row %d: %w", off/EntrySize, err)
			}
			table.MD5 = append([]byte(nil), row[16:32]...)
			return finish(table)
		case Magic:
		default:
			return nil, fmt.Errorf("row %d: invalid magic 0x%04X, expected 0x%04X", off/EntrySize, magic, Magic)
		}

		table.Entries = append(table.Entries, parseEntry(row))
	}
}

func finish(table *Table) (*Table, error) {
	if len(table.Entries) == 0 {
		return nil, fmt.Errorf("no partitions found in table")
	}
	return table, nil
}

// parseEntry decodes one row.
//
// Row format (little-endian):
//
//	[Magic(2)][Type(1)][Subtype(1)][Offset(4)][Size(4)][Name(16)][Flags(4)]
func parseEntry(row []byte) *Entry {
	name := row[12 : 12+NameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return &Entry{
		Type:    row[2],
		Subtype: row[3],
		Offset:  binary.LittleEndian.Uint32(row[4:8]),
		Size:    binary.LittleEndian.Uint32(row[8:12]),
		Name:    strings.ToValidUTF8(string(name), "�"),
		Flags:   binary.LittleEndian.Uint32(row[28:32]),
	}
}

// verifyMD5 checks the digest row: [0xEB 0xEB][0xFF x14][MD5(16)].
func verifyMD5(rows, md5Row []byte) error {
	sum := md5.Sum(rows)
	if !bytes.Equal(sum[:], md5Row[16:32]) {
		return fmt.Errorf("md5 mismatch: got %X, expected %X", md5Row[16:32], sum[:])
	}
	return nil
}

// Marshal encodes a table in the binary format, followed by an MD5 row
// and padding of erased bytes up to MaxTableSize.
func Marshal(t *Table) ([]byte, error) {
	if (len(t.Entries)+1)*EntrySize > MaxTableSize {
		return nil, fmt.Errorf("too many partitions: %d", len(t.Entries))
	}

	buf := make([]byte, 0, MaxTableSize)
	for _, e := range t.Entries {
		if len(e.Name) > NameSize {
			return nil, fmt.Errorf("partition %q: name longer than %d bytes", e.Name, NameSize)
		}
		row := make([]byte, EntrySize)
		binary.LittleEndian.PutUint16(row[0:2], Magic)
		row[2] = e.Type
		row[3] = e.Subtype
		binary.LittleEndian.PutUint32(row[4:8], e.Offset)
		binary.LittleEndian.PutUint32(row[8:12], e.Size)
		copy(row[12:12+NameSize], e.Name)
		binary.LittleEndian.PutUint32(row[28:32], e.Flags)
		buf = append(buf, row...)
	}

	sum := md5.Sum(buf)
	md5Row := bytes.Repeat([]byte{0xFF}, EntrySize)
	binary.LittleEndian.PutUint16(md5Row[0:2], MD5Magic)
	copy(md5Row[16:], sum[:])
	buf = append(buf, md5Row...)

	for len(buf) < MaxTableSize {
		buf = append(buf, 0xFF)
	}
	return buf, nil
}
