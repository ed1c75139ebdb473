package flasher_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/flashertest"
	"github.com/moffa90/go-fwflash/memmap"
)

const flash4MB = 4 << 20

// Mock logger for testing
type MockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorMsgs = append(l.errorMsgs, msg)
}

func part(name string, addr uint32, size int) *firmware.Part {
	return firmware.NewPart(name, bytes.Repeat([]byte{byte(addr >> 12)}, size)).WithAddress(addr)
}

func valid() memmap.Result {
	return memmap.Result{Status: memmap.StatusValid}
}

func newBatch(t *testing.T, erase bool, parts ...*firmware.Part) *flasher.Batch {
	t.Helper()
	batch, err := flasher.NewBatch(parts, valid(), flasher.BatchOptions{EraseBeforeFlash: erase, ChipFamily: "ESP32"})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return batch
}

func connected(t *testing.T) *flashertest.Programmer {
	t.Helper()
	dev := flashertest.New(firmware.ChipESP32, flash4MB)
	if _, err := dev.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	dev.Reset()
	return dev
}

func TestNewPanicsOnNilProgrammer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil programmer")
		}
	}()
	flasher.New(nil)
}

func TestFlashWritesInAscendingAddressOrder(t *testing.T) {
	dev := connected(t)
	batch := newBatch(t, false,
		part("firmware.bin", 0x10000, 64),
		part("bootloader.bin", 0x0, 32),
		part("partitions.bin", 0x8000, 16),
	)

	f := flasher.New(dev)
	if err := f.Flash(context.Background(), batch); err != nil {
		t.Fatalf("Flash: %v", err)
	}

	got := dev.WriteAddresses()
	want := []uint32{0x0, 0x8000, 0x10000}
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d at 0x%X, want 0x%X", i, got[i], want[i])
		}
	}

	if f.State() != flasher.StateCompleted {
		t.Errorf("state = %s, want %s", f.State(), flasher.StateCompleted)
	}

	// batch itself keeps submission order
	if batch.Parts[0].Filename != "firmware.bin" {
		t.Errorf("batch parts reordered: first = %s", batch.Parts[0].Filename)
	}
}

func TestOrderIsStable(t *testing.T) {
	a := part("a.bin", 0x1000, 1)
	b := part("b.bin", 0x1000, 1)
	c := part("c.bin", 0x0, 1)

	got := flasher.Order([]*firmware.Part{a, b, c})
	if got[0] != c || got[1] != a || got[2] != b {
		t.Errorf("order = %s, %s, %s; want c, a, b", got[0].Filename, got[1].Filename, got[2].Filename)
	}
}

func TestFlashErasesExactlyOnce(t *testing.T) {
	tests := []struct {
		name  string
		erase bool
		parts int
		want  int
	}{
		{"erase with one part", true, 1, 1},
		{"erase with five parts", true, 5, 1},
		{"no erase", false, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := connected(t)
			parts := make([]*firmware.Part, tt.parts)
			for i := range parts {
				parts[i] = part("p.bin", uint32(i)*0x10000, 128)
			}

			if err := flasher.New(dev).Flash(context.Background(), newBatch(t, tt.erase, parts...)); err != nil {
				t.Fatalf("Flash: %v", err)
			}

			if got := dev.Count(flashertest.OpErase); got != tt.want {
				t.Errorf("erase count = %d, want %d", got, tt.want)
			}
			ops := dev.Ops()
			if tt.erase && ops[0].Kind != flashertest.OpErase {
				t.Errorf("first op = %s, want erase", ops[0].Kind)
			}
		})
	}
}

func TestFlashContentLandsInFlash(t *testing.T) {
	dev := connected(t)
	fw := firmware.NewPart("firmware.bin", []byte("APPIMAGE")).WithAddress(0x0)
	fs := firmware.NewPart("littlefs.bin", []byte("FSIMAGE")).WithAddress(0x300000)

	if err := flasher.New(dev).Flash(context.Background(), newBatch(t, true, fs, fw)); err != nil {
		t.Fatalf("Flash: %v", err)
	}

	if got := dev.Read(0x0, 8); string(got) != "APPIMAGE" {
		t.Errorf("flash at 0x0 = %q", got)
	}
	if got := dev.Read(0x300000, 7); string(got) != "FSIMAGE" {
		t.Errorf("flash at 0x300000 = %q", got)
	}
}

func TestFlashWithProgress(t *testing.T) {
	dev := connected(t)
	dev.ChunkSize = 100

	var progress []flasher.Progress
	f := flasher.New(dev, flasher.WithProgressCallback(func(p flasher.Progress) {
		progress = append(progress, p)
	}))

	batch := newBatch(t, true,
		part("firmware.bin", 0x10000, 1000),
		part("littlefs.bin", 0x300000, 250),
	)
	if err := f.Flash(context.Background(), batch); err != nil {
		t.Fatalf("Flash: %v", err)
	}

	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	if progress[0].State != flasher.StatePreparing {
		t.Errorf("first state = %s, want preparing", progress[0].State)
	}

	last := -1.0
	for i, p := range progress {
		if p.Percentage < last {
			t.Errorf("progress %d decreased: %.2f < %.2f", i, p.Percentage, last)
		}
		if p.Percentage > 100 {
			t.Errorf("progress %d above 100: %.2f", i, p.Percentage)
		}
		last = p.Percentage
		if p.PartCount != 2 {
			t.Errorf("progress %d part count = %d", i, p.PartCount)
		}
	}

	final := progress[len(progress)-1]
	if final.State != flasher.StateCompleted || final.Percentage != 100 {
		t.Errorf("final = %s %.1f%%, want completed 100%%", final.State, final.Percentage)
	}
	if final.BytesWritten != 1250 {
		t.Errorf("bytes written = %d, want 1250", final.BytesWritten)
	}

	// the first part's byte progress stays below its completion jump
	var beforeJump, afterJump float64
	for _, p := range progress {
		if p.State != flasher.StateWriting || p.PartIndex != 0 {
			continue
		}
		if p.PartBytesWritten == p.PartBytesTotal && p.BytesWritten == 1000 {
			afterJump = p.Percentage
		} else if p.Percentage > beforeJump {
			beforeJump = p.Percentage
		}
	}
	if beforeJump > 47.5+1e-9 {
		t.Errorf("in-flight progress for part 0 = %.2f, want <= 47.5", beforeJump)
	}
	if afterJump != 50 {
		t.Errorf("completion jump for part 0 = %.2f, want 50", afterJump)
	}
}

func TestFlashPartFailureStopsBatch(t *testing.T) {
	dev := connected(t)
	cause := errors.New("flash write timeout")
	dev.WriteErrs[0x8000] = cause

	f := flasher.New(dev)
	err := f.Flash(context.Background(), newBatch(t, true,
		part("bootloader.bin", 0x0, 16),
		part("partitions.bin", 0x8000, 16),
		part("firmware.bin", 0x10000, 16),
	))

	var pe *flasher.PartError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PartError", err)
	}
	if pe.Filename != "partitions.bin" || pe.Address != 0x8000 {
		t.Errorf("failing part = %s at 0x%X", pe.Filename, pe.Address)
	}
	if !errors.Is(err, cause) {
		t.Error("PartError should unwrap to the cause")
	}

	// no continuation past the failing part, no rollback of the first
	if got := dev.WriteAddresses(); len(got) != 2 {
		t.Errorf("writes = %v, want 2 writes", got)
	}
	if got := dev.Read(0x0, 1); got[0] != 0x00 {
		t.Errorf("first part was rolled back: 0x%02X", got[0])
	}
	if f.State() != flasher.StateFailed {
		t.Errorf("state = %s, want failed", f.State())
	}
}

func TestFlashConnectionLost(t *testing.T) {
	dev := connected(t)
	dev.BeforeWrite = func(addr uint32) {
		if addr == 0x10000 {
			dev.Drop()
		}
	}

	err := flasher.New(dev).Flash(context.Background(), newBatch(t, false,
		part("bootloader.bin", 0x0, 16),
		part("firmware.bin", 0x10000, 16),
	))

	var cl *flasher.ConnectionLostError
	if !errors.As(err, &cl) {
		t.Fatalf("error = %v, want *ConnectionLostError", err)
	}
	if cl.Filename != "firmware.bin" {
		t.Errorf("filename = %s", cl.Filename)
	}
	if !errors.Is(err, flasher.ErrConnectionLost) {
		t.Error("error should match ErrConnectionLost")
	}
}

func TestFlashEraseFailure(t *testing.T) {
	dev := connected(t)
	dev.EraseErr = errors.New("erase rejected")

	err := flasher.New(dev).Flash(context.Background(), newBatch(t, true, part("firmware.bin", 0x10000, 16)))

	var ee *flasher.EraseError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *EraseError", err)
	}
	if n := dev.Count(flashertest.OpWrite); n != 0 {
		t.Errorf("writes after failed erase = %d", n)
	}
}

func TestFlashCancellationBetweenParts(t *testing.T) {
	dev := connected(t)
	ctx, cancel := context.WithCancel(context.Background())
	dev.BeforeWrite = func(addr uint32) {
		if addr == 0x8000 {
			// cancel while the second part is being written
			cancel()
		}
	}

	f := flasher.New(dev)
	err := f.Flash(ctx, newBatch(t, false,
		part("bootloader.bin", 0x0, 16),
		part("partitions.bin", 0x8000, 16),
		part("firmware.bin", 0x10000, 16),
	))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	var ce *flasher.CancelledError
	if !errors.As(err, &ce) || ce.PartsWritten != 2 {
		t.Errorf("cancelled error = %+v, want 2 parts written", ce)
	}

	// the in-flight write completed, the next part never started
	if got := dev.WriteAddresses(); len(got) != 2 {
		t.Errorf("writes = %v, want [0x0 0x8000]", got)
	}
	if got := dev.Read(0x8000, 1); got[0] != 0x08 {
		t.Errorf("in-flight write was interrupted: 0x%02X", got[0])
	}
	if f.State() != flasher.StateFailed {
		t.Errorf("state = %s, want failed", f.State())
	}
}

func TestFlashCancelledBeforeStart(t *testing.T) {
	dev := connected(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := flasher.New(dev).Flash(ctx, newBatch(t, true, part("firmware.bin", 0x10000, 16)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(dev.Ops()) != 0 {
		t.Errorf("ops = %v, want none", dev.Ops())
	}
}

func TestFlashBusy(t *testing.T) {
	dev := connected(t)
	dev.ChunkDelay = 20 * time.Millisecond
	dev.ChunkSize = 1

	f := flasher.New(dev)
	batch := newBatch(t, false, part("firmware.bin", 0x10000, 10))

	done := make(chan error, 1)
	go func() { done <- f.Flash(context.Background(), batch) }()

	time.Sleep(50 * time.Millisecond)
	if err := f.Flash(context.Background(), batch); !errors.Is(err, flasher.ErrBusy) {
		t.Errorf("second Flash error = %v, want ErrBusy", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first Flash: %v", err)
	}

	// "flash another" after completion
	if err := f.Flash(context.Background(), batch); err != nil {
		t.Errorf("flash another: %v", err)
	}
}

func TestFlashWithLogging(t *testing.T) {
	dev := connected(t)
	logger := &MockLogger{}

	err := flasher.New(dev, flasher.WithLogger(logger)).
		Flash(context.Background(), newBatch(t, true, part("firmware.bin", 0x10000, 16)))
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}

	if len(logger.infoMsgs) != 2 {
		t.Errorf("info messages = %v, want start and complete", logger.infoMsgs)
	}
	if len(logger.debugMsgs) == 0 {
		t.Error("expected debug messages")
	}
	if len(logger.errorMsgs) != 0 {
		t.Errorf("unexpected error messages: %v", logger.errorMsgs)
	}
}

func TestFlashEmptyBatch(t *testing.T) {
	f := flasher.New(connected(t))
	if err := f.Flash(context.Background(), nil); err == nil {
		t.Error("expected error for nil batch")
	}
	if err := f.Flash(context.Background(), &flasher.Batch{}); err == nil {
		t.Error("expected error for empty batch")
	}
}
