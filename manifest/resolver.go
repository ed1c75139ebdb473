package manifest

import (
	"fmt"
	"strings"

	"github.com/moffa90/go-fwflash/firmware"
)

// Resolve normalizes a parsed document into firmware.Metadata.
//
// Rules:
//   - ChipManifest: the first build's chipFamily and its ordered parts;
//     a part's RelativeName is the last segment of its path.
//   - LegacyMetadata: board, mcu and the part array, with offsets and
//     sizes parsed from hex or decimal strings.
//
// Resolve fails with KindMalformed if the version is missing, there is no
// part, any offset is missing or unparseable, or one name is declared at
// two different offsets. It has no side effects.
func Resolve(doc Document) (*firmware.Metadata, error) {
	switch d := doc.(type) {
	case *ChipManifest:
		if d == nil {
			return nil, malformed("", "nil document")
		}
		return resolveChipManifest(d)
	case *LegacyMetadata:
		if d == nil {
			return nil, malformed("", "nil document")
		}
		return resolveLegacy(d)
	case nil:
		return nil, malformed("", "nil document")
	default:
		return nil, &MetadataError{
			Kind:   KindUnsupportedShape,
			Reason: fmt.Sprintf("unsupported document type %T", doc),
		}
	}
}

// ResolveBytes decodes and resolves raw JSON in one step.
func ResolveBytes(data []byte) (*firmware.Metadata, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Resolve(doc)
}

func resolveChipManifest(m *ChipManifest) (*firmware.Metadata, error) {
	if strings.TrimSpace(m.Version) == "" {
		return nil, malformed("version", "missing")
	}
	if len(m.Builds) == 0 {
		return nil, malformed("builds", "no build entries")
	}

	build := m.Builds[0]
	if len(build.Parts) == 0 {
		return nil, malformed("builds[0].parts", "no parts")
	}

	meta := &firmware.Metadata{
		Version:    m.Version,
		DeviceName: m.Name,
		ChipFamily: firmware.NormalizeChipFamily(build.ChipFamily),
		FlashSize:  build.FlashSize,
		Parts:      make([]firmware.MetadataPart, 0, len(build.Parts)),
	}

	for i, p := range build.Parts {
		field := fmt.Sprintf("builds[0].parts[%d]", i)
		if strings.TrimSpace(p.Path) == "" {
			return nil, malformed(field+".path", "missing")
		}
		offset, err := p.Offset.Uint32()
		if err != nil {
			return nil, malformed(field+".offset", "%v", err)
		}
		meta.Parts = append(meta.Parts, firmware.MetadataPart{
			RelativeName: relativeName(p.Path),
			Offset:       offset,
			Path:         p.Path,
		})
	}

	if err := checkUniqueOffsets(meta.Parts, "builds[0].parts"); err != nil {
		return nil, err
	}
	return meta, nil
}

func resolveLegacy(m *LegacyMetadata) (*firmware.Metadata, error) {
	if strings.TrimSpace(m.Version) == "" {
		return nil, malformed("version", "missing")
	}
	if len(m.Part) == 0 {
		return nil, malformed("part", "no parts")
	}

	meta := &firmware.Metadata{
		Version:    m.Version,
		DeviceName: m.Board,
		ChipFamily: firmware.NormalizeChipFamily(m.MCU),
		Parts:      make([]firmware.MetadataPart, 0, len(m.Part)),
	}

	for i, p := range m.Part {
		field := fmt.Sprintf("part[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return nil, malformed(field+".name", "missing")
		}
		offset, err := p.Offset.Uint32()
		if err != nil {
			return nil, malformed(field+".offset", "%v", err)
		}
		var size uint32
		if p.Size != nil {
			if size, err = p.Size.Uint32(); err != nil {
				return nil, malformed(field+".size", "%v", err)
			}
		}
		meta.Parts = append(meta.Parts, firmware.MetadataPart{
			RelativeName: relativeName(p.Name),
			Offset:       offset,
			Path:         p.Name,
			Size:         size,
		})
	}

	if err := checkUniqueOffsets(meta.Parts, "part"); err != nil {
		return nil, err
	}
	return meta, nil
}

// relativeName is the last path segment of a locator. Server paths such as
// "firmware?v=2.5.6&p=littlefs" name the part in the p query parameter.
func relativeName(path string) string {
	if i := strings.Index(path, "?"); i >= 0 {
		for _, kv := range strings.Split(path[i+1:], "&") {
			if strings.HasPrefix(kv, "p=") && len(kv) > 2 {
				return kv[2:]
			}
		}
	}
	return firmware.BaseName(path)
}

// checkUniqueOffsets rejects a name declared at two different offsets.
// Repeating a name at the same offset is tolerated.
func checkUniqueOffsets(parts []firmware.MetadataPart, field string) error {
	seen := make(map[string]uint32, len(parts))
	for i, p := range parts {
		key := strings.ToLower(p.RelativeName)
		if prev, ok := seen[key]; ok && prev != p.Offset {
			return malformed(fmt.Sprintf("%s[%d]", field, i),
				"%q declared at 0x%X and 0x%X", p.RelativeName, prev, p.Offset)
		}
		seen[key] = p.Offset
	}
	return nil
}
