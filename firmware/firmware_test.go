package firmware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		filename string
		want     Role
	}{
		{"firmware.bin", RoleFirmware},
		{"firmware-tbeam-2.5.6.factory.bin", RoleFirmware},
		{"bleota.bin", RoleOTA},
		{"bleota-s3.bin", RoleOTA},
		{"mt-esp32s3-ota.bin", RoleOTA},
		{"littlefs-tbeam-2.5.6.bin", RoleFilesystem},
		{"SPIFFS.bin", RoleFilesystem},
		{"api/firmware?v=2.5.6&p=littlefs", RoleFirmware},
		{"bootloader.bin", RoleFirmware},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRole(tt.filename))
		})
	}
}

func TestMetadataLookup(t *testing.T) {
	meta := &Metadata{
		Parts: []MetadataPart{
			{RelativeName: "firmware.bin", Offset: 0x10000},
			{RelativeName: "littlefs.bin", Offset: 0x300000},
			{RelativeName: "bleota.bin", Offset: 0x260000},
		},
	}

	tests := []struct {
		name     string
		filename string
		want     uint32
		found    bool
	}{
		{"exact", "littlefs.bin", 0x300000, true},
		{"case insensitive", "LittleFS.bin", 0x300000, true},
		{"prefixed filename", "meshtastic-firmware.bin", 0x10000, true},
		{"with directory", "/tmp/out/bleota.bin", 0x260000, true},
		{"no boundary", "nofirmware.bin", 0, false},
		{"unknown", "partitions.bin", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := meta.Lookup(tt.filename)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, p.Offset)
			}
		})
	}
}

func TestMetadataLookupPrefersLongestSuffix(t *testing.T) {
	meta := &Metadata{
		Parts: []MetadataPart{
			{RelativeName: "bin", Offset: 0x1},
			{RelativeName: "factory.bin", Offset: 0x0},
		},
	}
	p, ok := meta.Lookup("firmware.factory.bin")
	require.True(t, ok)
	assert.Equal(t, "factory.bin", p.RelativeName)
}

func TestMetadataLookupNil(t *testing.T) {
	var meta *Metadata
	_, ok := meta.Lookup("firmware.bin")
	assert.False(t, ok)
}

func TestPartWithAddressDoesNotMutate(t *testing.T) {
	p := NewPart("firmware.bin", []byte{1, 2, 3})
	q := p.WithAddress(0x10000)

	assert.False(t, p.Resolved())
	require.True(t, q.Resolved())
	assert.Equal(t, uint32(0x10000), q.AddressValue())
	assert.Equal(t, 3, q.Size())

	c := q.Clone()
	*c.Address = 0x20000
	assert.Equal(t, uint32(0x10000), q.AddressValue())
}

func TestSegmentOverlaps(t *testing.T) {
	a := Segment{Address: 0x1000, Size: 0x1000}
	tests := []struct {
		name string
		b    Segment
		want bool
	}{
		{"adjacent after", Segment{Address: 0x2000, Size: 0x10}, false},
		{"adjacent before", Segment{Address: 0x0, Size: 0x1000}, false},
		{"inside", Segment{Address: 0x1800, Size: 0x10}, true},
		{"straddles start", Segment{Address: 0x0800, Size: 0x1000}, true},
		{"empty inside", Segment{Address: 0x1800, Size: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(a))
		})
	}
}

func TestSegmentEndDoesNotWrap(t *testing.T) {
	s := Segment{Address: 0xFFFFFFF0, Size: 0x20}
	assert.Equal(t, uint64(0x100000010), s.End())
}

func TestNormalizeChipFamily(t *testing.T) {
	tests := map[string]string{
		"esp32":     ChipESP32,
		"ESP32-S3":  ChipESP32S3,
		"esp32s3":   ChipESP32S3,
		"esp32_c3":  ChipESP32C3,
		" ESP32-C6": ChipESP32C6,
		"nrf52840":  ChipNRF52,
		"rp2040":    ChipRP2040,
		"stm32":     "STM32",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeChipFamily(in), "input %q", in)
	}

	assert.True(t, SameChipFamily("esp32s3", "ESP32-S3"))
	assert.False(t, SameChipFamily("ESP32", "ESP32-S3"))
	assert.False(t, SameChipFamily("", ""))
	assert.True(t, IsESPFamily("esp32c3"))
	assert.False(t, IsESPFamily("NRF52"))
}

func TestChipFamilyFromDeviceName(t *testing.T) {
	tests := map[string]string{
		"heltec-v3":           ChipESP32S3,
		"t-deck":              ChipESP32S3,
		"tbeam-s3-core":       ChipESP32S3,
		"heltec-ht62-esp32c3": ChipESP32C3,
		"esp32c6-devkit":      ChipESP32C6,
		"tbeam":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ChipFamilyFromDeviceName(in), "device %q", in)
	}
}

func TestLoadReaderBinary(t *testing.T) {
	parts, err := LoadReader("littlefs.bin", strings.NewReader("\x01\x02\x03"))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, RoleFilesystem, parts[0].Role)
	assert.False(t, parts[0].Resolved())
	assert.Equal(t, []byte{1, 2, 3}, parts[0].Content)

	_, err = LoadReader("empty.bin", strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseIntelHex(t *testing.T) {
	hex := strings.Join([]string{
		":020000040001F9",
		":0400000001020304F2",
		":00000001FF",
	}, "\n")

	parts, err := LoadReader("app.hex", strings.NewReader(hex))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "app.hex", parts[0].Filename)
	require.True(t, parts[0].Resolved())
	assert.Equal(t, uint32(0x10000), parts[0].AddressValue())
	assert.Equal(t, []byte{1, 2, 3, 4}, parts[0].Content)
}

func TestParseIntelHexInvalid(t *testing.T) {
	_, err := ParseIntelHex("bad.hex", strings.NewReader(":zz\n"))
	assert.Error(t, err)
}
