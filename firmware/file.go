package firmware

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// LoadFile reads a user-supplied part from disk.
//
// Raw images (.bin and anything else) become one unresolved part.
// Intel HEX files (.hex, .ihex) carry their own addresses: every data
// segment becomes one resolved part.
//
// Example:
//
//	parts, err := firmware.LoadFile("firmware.factory.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadFile(path string) ([]*Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadReader(filepath.Base(path), f)
}

// LoadReader reads a part from any io.Reader. The name selects the
// format the same way LoadFile does.
func LoadReader(name string, r io.Reader) ([]*Part, error) {
	if IsIntelHex(name) {
		return ParseIntelHex(name, r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	return []*Part{NewPart(name, data)}, nil
}

// IsIntelHex reports whether name has an Intel HEX extension.
func IsIntelHex(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihex":
		return true
	}
	return false
}

// ParseIntelHex parses an Intel HEX stream into resolved parts.
// A single-segment file keeps its name; multi-segment files get the
// segment address appended ("app@0x10000.hex") so every part has a
// distinct filename.
func ParseIntelHex(name string, r io.Reader) ([]*Part, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: no data segments", name)
	}

	parts := make([]*Part, 0, len(segments))
	for _, seg := range segments {
		partName := name
		if len(segments) > 1 {
			ext := filepath.Ext(name)
			partName = fmt.Sprintf("%s@0x%X%s", strings.TrimSuffix(name, ext), seg.Address, ext)
		}
		data := make([]byte, len(seg.Data))
		copy(data, seg.Data)
		parts = append(parts, NewPart(partName, data).WithAddress(seg.Address))
	}
	return parts, nil
}
