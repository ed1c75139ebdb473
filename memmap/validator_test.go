package memmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwflash/firmware"
)

const flash4MB = 4194304

func seg(name string, addr, size uint32) firmware.Segment {
	return firmware.Segment{Filename: name, Address: addr, Size: size, Role: firmware.ClassifyRole(name)}
}

func TestValidateNoConflicts(t *testing.T) {
	res := Validate([]firmware.Segment{
		seg("firmware.bin", 0x0, 0x200000),
		seg("littlefs.bin", 0x300000, 0x100000),
	}, flash4MB)

	assert.Equal(t, StatusValid, res.Status)
	assert.Empty(t, res.Conflicts)
	assert.False(t, res.HasBoundaryWarnings())
	assert.True(t, res.Flashable(false))
}

func TestValidateAdjacentSegmentsDoNotOverlap(t *testing.T) {
	res := Validate([]firmware.Segment{
		seg("a.bin", 0x0, 0x8000),
		seg("b.bin", 0x8000, 0x1000),
		seg("c.bin", 0x9000, 0x1000),
	}, 0)
	assert.Equal(t, StatusValid, res.Status)
}

func TestValidateConflictsExactFilenames(t *testing.T) {
	tests := []struct {
		name     string
		segments []firmware.Segment
		want     []string
	}{
		{
			name: "one pair",
			segments: []firmware.Segment{
				seg("firmware.bin", 0x10000, 0x200000),
				seg("bleota.bin", 0x200000, 0x80000),
				seg("littlefs.bin", 0x300000, 0x10000),
			},
			want: []string{"bleota.bin", "firmware.bin"},
		},
		{
			name: "contained segment",
			segments: []firmware.Segment{
				seg("merged.bin", 0x0, 0x400000),
				seg("littlefs.bin", 0x300000, 0x10000),
			},
			want: []string{"littlefs.bin", "merged.bin"},
		},
		{
			name: "chain of overlaps",
			segments: []firmware.Segment{
				seg("c.bin", 0x2000, 0x2000),
				seg("a.bin", 0x0, 0x1800),
				seg("b.bin", 0x1000, 0x1800),
				seg("d.bin", 0x10000, 0x1000),
			},
			want: []string{"a.bin", "b.bin", "c.bin"},
		},
		{
			name: "same address",
			segments: []firmware.Segment{
				seg("x.bin", 0x10000, 0x10),
				seg("y.bin", 0x10000, 0x10),
			},
			want: []string{"x.bin", "y.bin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.segments, flash4MB)
			assert.Equal(t, StatusFilesConflict, res.Status)
			assert.Equal(t, tt.want, res.Conflicts)
			assert.False(t, res.Flashable(true))
		})
	}
}

func TestValidateBoundaryWarning(t *testing.T) {
	res := Validate([]firmware.Segment{seg("littlefs.bin", 0x3F0000, 0x20000)}, 0x400000)

	assert.Equal(t, StatusValid, res.Status)
	require.Len(t, res.BoundaryWarnings, 1)
	w := res.BoundaryWarnings[0]
	assert.Equal(t, "littlefs.bin", w.Filename)
	assert.Equal(t, uint64(0x10000), w.Excess)
	assert.Equal(t, uint64(0x410000), w.End)
	assert.True(t, res.Flashable(false))
	assert.Contains(t, w.String(), "0x10000")
}

func TestValidateEmptyAndUnmodified(t *testing.T) {
	assert.Equal(t, StatusValid, Validate(nil, flash4MB).Status)

	in := []firmware.Segment{seg("b.bin", 0x8000, 0x10), seg("a.bin", 0x0, 0x10)}
	_ = Validate(in, flash4MB)
	assert.Equal(t, "b.bin", in[0].Filename)
}

func TestValidateIsIdempotent(t *testing.T) {
	in := []firmware.Segment{
		seg("firmware.bin", 0x10000, 0x200000),
		seg("bleota.bin", 0x200000, 0x80000),
		seg("littlefs.bin", 0x3F0000, 0x20000),
	}
	assert.Equal(t, Validate(in, flash4MB), Validate(in, flash4MB))
}

func TestCheckChip(t *testing.T) {
	valid := Result{Status: StatusValid}

	res := CheckChip(valid, "ESP32", "esp32s3")
	assert.Equal(t, StatusChipMismatch, res.Status)
	require.NotNil(t, res.Mismatch)
	assert.Equal(t, "ESP32", res.Mismatch.Expected)
	assert.Equal(t, "ESP32-S3", res.Mismatch.Connected)
	assert.False(t, res.Flashable(false))
	assert.True(t, res.Flashable(true))

	assert.Equal(t, StatusValid, CheckChip(valid, "ESP32-S3", "esp32_s3").Status)
	assert.Equal(t, StatusValid, CheckChip(valid, "", "ESP32").Status)
	assert.Equal(t, StatusValid, CheckChip(valid, "ESP32", "").Status)

	conflict := Result{Status: StatusFilesConflict, Conflicts: []string{"a", "b"}}
	assert.Equal(t, StatusFilesConflict, CheckChip(conflict, "ESP32", "NRF52").Status)
}

func TestUnknown(t *testing.T) {
	res := Unknown("part %q has no content", "firmware.bin")
	assert.Equal(t, StatusUnknownError, res.Status)
	assert.Equal(t, `part "firmware.bin" has no content`, res.Message)
	assert.False(t, res.Flashable(true))
}

func TestParseFlashSize(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"4MB", 4 << 20, false},
		{"16mb", 16 << 20, false},
		{"8M", 8 << 20, false},
		{"512KB", 512 << 10, false},
		{"0x400000", 0x400000, false},
		{"4194304", 4194304, false},
		{"", 0, false},
		{"four", 0, true},
		{"-1MB", 0, true},
		{"8192MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlashSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFlashSize(t *testing.T) {
	assert.Equal(t, "4MB", FormatFlashSize(4<<20))
	assert.Equal(t, "0x1800", FormatFlashSize(0x1800))
}
