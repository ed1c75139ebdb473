package flasher

import (
	"context"
	"errors"
)

// ErrConnectionLost should be wrapped by DeviceProgrammer implementations
// when the transport to the device goes away. The sequencer reports such
// failures as *ConnectionLostError instead of *PartError.
var ErrConnectionLost = errors.New("device connection lost")

// DeviceInfo identifies the connected device.
type DeviceInfo struct {
	// ChipFamily is the chip family reported by the device (e.g. "ESP32-S3")
	ChipFamily string

	// ChipName is the full chip description, if known
	ChipName string

	// MAC is the device MAC address, if known
	MAC string

	// FlashSize is the detected flash size in bytes, 0 if unknown
	FlashSize uint32
}

// WriteProgressFunc reports bytes written for the current write call.
type WriteProgressFunc func(written, total int)

// DeviceProgrammer is the byte-level flash capability of a transport.
// This package never looks at the transport framing.
//
// Implementations are driven by one caller at a time; the sequencer is the
// only writer for the duration of a batch. Write timeouts are the
// implementation's concern.
type DeviceProgrammer interface {
	// Connect opens the transport and identifies the device.
	Connect(ctx context.Context) (*DeviceInfo, error)

	// Erase clears the whole flash.
	Erase(ctx context.Context) error

	// Write writes data at address, reporting progress through onProgress
	// (which may be nil).
	Write(ctx context.Context, address uint32, data []byte, onProgress WriteProgressFunc) error

	// Disconnect closes the transport.
	Disconnect() error
}
