package flasher_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/memmap"
)

func TestNewBatch(t *testing.T) {
	mismatch := memmap.Result{
		Status:   memmap.StatusChipMismatch,
		Mismatch: &memmap.ChipMismatch{Expected: "ESP32", Connected: "ESP32-S3"},
	}

	tests := []struct {
		name       string
		parts      []*firmware.Part
		validation memmap.Result
		opts       flasher.BatchOptions
		wantErr    string
	}{
		{
			name:       "valid",
			parts:      []*firmware.Part{part("firmware.bin", 0x0, 16)},
			validation: valid(),
		},
		{
			name:       "no parts",
			validation: valid(),
			wantErr:    "no parts",
		},
		{
			name:       "unresolved part",
			parts:      []*firmware.Part{firmware.NewPart("custom.bin", []byte{1})},
			validation: valid(),
			wantErr:    "custom.bin",
		},
		{
			name:       "missing content",
			parts:      []*firmware.Part{firmware.NewPart("firmware.bin", nil).WithAddress(0)},
			validation: valid(),
			wantErr:    "no content",
		},
		{
			name: "overlap despite valid result",
			parts: []*firmware.Part{
				part("firmware.bin", 0x0, 0x2000),
				part("partitions.bin", 0x1000, 0x10),
			},
			validation: valid(),
			wantErr:    "firmware.bin, partitions.bin",
		},
		{
			name:       "files conflict result",
			parts:      []*firmware.Part{part("firmware.bin", 0x0, 16)},
			validation: memmap.Result{Status: memmap.StatusFilesConflict, Conflicts: []string{"a", "b"}},
			wantErr:    "files-conflict",
		},
		{
			name:       "chip mismatch not acknowledged",
			parts:      []*firmware.Part{part("firmware.bin", 0x0, 16)},
			validation: mismatch,
			wantErr:    "chip mismatch",
		},
		{
			name:       "chip mismatch acknowledged",
			parts:      []*firmware.Part{part("firmware.bin", 0x0, 16)},
			validation: mismatch,
			opts:       flasher.BatchOptions{AcknowledgeChipMismatch: true},
		},
		{
			name:       "unknown error",
			parts:      []*firmware.Part{part("firmware.bin", 0x0, 16)},
			validation: memmap.Unknown("flash size unknown"),
			wantErr:    "flash size unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := flasher.NewBatch(tt.parts, tt.validation, tt.opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if batch.ID == "" {
					t.Error("batch ID should be set")
				}
				return
			}

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, flasher.ErrNotFlashable) {
				t.Errorf("error should match ErrNotFlashable: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewBatchCopiesParts(t *testing.T) {
	p := part("firmware.bin", 0x10000, 16)
	batch, err := flasher.NewBatch([]*firmware.Part{p}, valid(), flasher.BatchOptions{ChipFamily: "esp32s3"})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	*p.Address = 0x20000
	if got := batch.Parts[0].AddressValue(); got != 0x10000 {
		t.Errorf("batch part address changed to 0x%X", got)
	}
	if batch.ChipFamily != "ESP32-S3" {
		t.Errorf("chip family = %q, want normalized", batch.ChipFamily)
	}
	if batch.TotalBytes() != 16 {
		t.Errorf("total bytes = %d", batch.TotalBytes())
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"part error", &flasher.PartError{Filename: "firmware.bin", Address: 0x10000, Cause: cause},
			[]string{"firmware.bin", "0x10000", "boom"}},
		{"connection lost while writing", &flasher.ConnectionLostError{Filename: "littlefs.bin", Address: 0x300000, Cause: cause},
			[]string{"connection lost", "littlefs.bin", "0x300000"}},
		{"connection lost during erase", &flasher.ConnectionLostError{Cause: cause},
			[]string{"during erase"}},
		{"erase error", &flasher.EraseError{Cause: cause}, []string{"erase failed", "boom"}},
		{"cancelled", &flasher.CancelledError{PartsWritten: 1, PartCount: 3, Cause: cause},
			[]string{"1 of 3"}},
		{"not flashable", &flasher.NotFlashableError{Reason: "overlapping parts", Conflicts: []string{"a.bin", "b.bin"}},
			[]string{"overlapping parts", "a.bin, b.bin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("error message %q should contain %q", msg, w)
				}
			}
		})
	}
}
