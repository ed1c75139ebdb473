package firmware

import "strings"

// Canonical chip families.
const (
	ChipESP32   = "ESP32"
	ChipESP32S2 = "ESP32-S2"
	ChipESP32S3 = "ESP32-S3"
	ChipESP32C3 = "ESP32-C3"
	ChipESP32C6 = "ESP32-C6"
	ChipESP32H2 = "ESP32-H2"
	ChipNRF52   = "NRF52"
	ChipRP2040  = "RP2040"
)

var chipAliases = map[string]string{
	"ESP32":    ChipESP32,
	"ESP32S2":  ChipESP32S2,
	"ESP32S3":  ChipESP32S3,
	"ESP32C3":  ChipESP32C3,
	"ESP32C6":  ChipESP32C6,
	"ESP32H2":  ChipESP32H2,
	"NRF52":    ChipNRF52,
	"NRF52840": ChipNRF52,
	"RP2040":   ChipRP2040,
}

// NormalizeChipFamily maps spellings such as "esp32s3", "ESP32-S3" or
// "esp32_s3" to the canonical family. Unknown families are returned
// upper-cased and trimmed; an empty input yields "".
func NormalizeChipFamily(chip string) string {
	c := strings.ToUpper(strings.TrimSpace(chip))
	if c == "" {
		return ""
	}
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(c)
	if canon, ok := chipAliases[key]; ok {
		return canon
	}
	return c
}

// IsESPFamily reports whether the (normalized) family is an Espressif chip.
func IsESPFamily(chip string) bool {
	return strings.HasPrefix(NormalizeChipFamily(chip), "ESP32")
}

// SameChipFamily compares two families after normalization.
// An empty side never matches.
func SameChipFamily(a, b string) bool {
	na, nb := NormalizeChipFamily(a), NormalizeChipFamily(b)
	return na != "" && na == nb
}

// s3Markers are device-name fragments of boards built on the ESP32-S3.
var s3Markers = []string{"s3", "-v3", "t-deck", "wireless-paper", "wireless-tracker"}

// ChipFamilyFromDeviceName guesses the chip family from a board name.
// Returns "" when the name carries no hint.
func ChipFamilyFromDeviceName(device string) string {
	d := strings.ToLower(device)
	if d == "" {
		return ""
	}
	for _, m := range s3Markers {
		if strings.Contains(d, m) {
			return ChipESP32S3
		}
	}
	switch {
	case strings.Contains(d, "c3"):
		return ChipESP32C3
	case strings.Contains(d, "c6"):
		return ChipESP32C6
	}
	return ""
}
