package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Shape identifies which metadata document format was supplied.
type Shape string

const (
	// ShapeChipManifest is the server manifest: {name, version, builds: [...]}
	ShapeChipManifest Shape = "chip-manifest"

	// ShapeLegacy is the flat build metadata: {version, board, mcu, files, part}
	ShapeLegacy Shape = "legacy"
)

// Document is one parsed metadata document. It is either a *ChipManifest
// or a *LegacyMetadata; Resolve turns either into firmware.Metadata.
type Document interface {
	Shape() Shape
}

// ChipManifest is the server-declared manifest for one firmware version.
type ChipManifest struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Builds  []Build `json:"builds"`

	// Optional fields emitted by the firmware server
	PromptErase bool   `json:"new_install_prompt_erase,omitempty"`
	PathFW      string `json:"pathfw,omitempty"`
	PathOTA     string `json:"pathota,omitempty"`
}

// Build is one chip-specific build entry of a ChipManifest.
type Build struct {
	ChipFamily string         `json:"chipFamily"`
	FlashSize  string         `json:"flashsize,omitempty"`
	Parts      []ManifestPart `json:"parts"`
}

// ManifestPart is one part reference of a Build.
type ManifestPart struct {
	Path   string  `json:"path"`
	Offset *Number `json:"offset"`
}

// Shape implements Document.
func (*ChipManifest) Shape() Shape { return ShapeChipManifest }

// LegacyMetadata is the flat build metadata attached as a local file.
type LegacyMetadata struct {
	Version string       `json:"version"`
	Board   string       `json:"board"`
	MCU     string       `json:"mcu"`
	Files   []LegacyFile `json:"files"`
	Part    []LegacyPart `json:"part"`
}

// LegacyPart carries an offset and size as hex ("0x10000") or decimal strings.
type LegacyPart struct {
	Name   string  `json:"name"`
	Offset *Number `json:"offset"`
	Size   *Number `json:"size"`
}

// LegacyFile is an entry of the files list. Entries may be plain names or
// objects with a name field.
type LegacyFile struct {
	Name string
}

// UnmarshalJSON accepts "name" or {"name": "..."}.
func (f *LegacyFile) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Name = obj.Name
	return nil
}

// Shape implements Document.
func (*LegacyMetadata) Shape() Shape { return ShapeLegacy }

// Number is an address or size that may arrive as a JSON number or as a
// hex/decimal string. Raw keeps the original text for error messages.
type Number struct {
	Raw string
}

// UnmarshalJSON keeps the literal (unquoted) text; parsing is deferred to
// Resolve so a bad value is reported as Malformed, not as a decode error.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.Raw = s
		return nil
	}
	n.Raw = string(data)
	return nil
}

// Uint32 parses the value as a 32-bit unsigned address.
// Accepts "0x" / "0X" hex prefixes and plain decimal.
func (n *Number) Uint32() (uint32, error) {
	if n == nil {
		return 0, fmt.Errorf("missing value")
	}
	return ParseAddress(n.Raw)
}

// ParseAddress parses a hex ("0x300000") or decimal ("3145728") address.
func ParseAddress(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("empty address")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

// Decode parses raw JSON and detects the document shape: a builds array
// selects ChipManifest, a part or files array selects LegacyMetadata.
//
// Example:
//
//	doc, err := manifest.Decode(data)
//	if err != nil {
//	    return err
//	}
//	meta, err := manifest.Resolve(doc)
func Decode(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &MetadataError{Kind: KindMalformed, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	switch {
	case isArray(top["builds"]):
		var m ChipManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MetadataError{Kind: KindMalformed, Reason: err.Error()}
		}
		return &m, nil
	case isArray(top["part"]) || isArray(top["files"]):
		var m LegacyMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &MetadataError{Kind: KindMalformed, Reason: err.Error()}
		}
		return &m, nil
	}

	return nil, &MetadataError{
		Kind:   KindUnsupportedShape,
		Reason: "document has neither a builds array nor a part/files array",
	}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
