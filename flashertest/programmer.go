// Package flashertest provides an in-memory flasher.DeviceProgrammer for
// tests and demos. It records every operation and can inject faults.
package flashertest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-fwflash/flasher"
)

// OpKind names a recorded operation.
type OpKind string

const (
	OpConnect    OpKind = "connect"
	OpErase      OpKind = "erase"
	OpWrite      OpKind = "write"
	OpDisconnect OpKind = "disconnect"
)

// Op is one recorded operation.
type Op struct {
	Kind    OpKind
	Address uint32
	Size    int
}

// Programmer simulates a device with a flash of FlashSize bytes.
// Fields may be set before use; they must not change while a batch runs.
type Programmer struct {
	// Info is returned by Connect
	Info flasher.DeviceInfo

	// ChunkSize is the progress granularity of Write (default 4096)
	ChunkSize int

	// ChunkDelay is slept after every chunk
	ChunkDelay time.Duration

	// ConnectErr and EraseErr are returned by Connect and Erase when set
	ConnectErr error
	EraseErr   error

	// WriteErrs maps a write address to the error returned for it
	WriteErrs map[uint32]error

	// BeforeWrite is called before every write, outside the lock
	BeforeWrite func(address uint32)

	mu        sync.Mutex
	mem       []byte
	ops       []Op
	connected bool
}

// New creates a programmer reporting chip and holding flashSize bytes of
// erased flash.
func New(chip string, flashSize uint32) *Programmer {
	return &Programmer{
		Info:      flasher.DeviceInfo{ChipFamily: chip, ChipName: chip, FlashSize: flashSize},
		ChunkSize: 4096,
		WriteErrs: make(map[uint32]error),
		mem:       bytes.Repeat([]byte{0xFF}, int(flashSize)),
	}
}

func (p *Programmer) record(op Op) {
	p.mu.Lock()
	p.ops = append(p.ops, op)
	p.mu.Unlock()
}

// Connect implements flasher.DeviceProgrammer.
func (p *Programmer) Connect(ctx context.Context) (*flasher.DeviceInfo, error) {
	p.record(Op{Kind: OpConnect})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	info := p.Info
	return &info, nil
}

// Erase implements flasher.DeviceProgrammer.
func (p *Programmer) Erase(ctx context.Context) error {
	p.record(Op{Kind: OpErase})
	if p.EraseErr != nil {
		return p.EraseErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return fmt.Errorf("erase: %w", flasher.ErrConnectionLost)
	}
	for i := range p.mem {
		p.mem[i] = 0xFF
	}
	return nil
}

// Write implements flasher.DeviceProgrammer.
func (p *Programmer) Write(ctx context.Context, address uint32, data []byte, onProgress flasher.WriteProgressFunc) error {
	if p.BeforeWrite != nil {
		p.BeforeWrite(address)
	}
	p.record(Op{Kind: OpWrite, Address: address, Size: len(data)})

	if err, ok := p.WriteErrs[address]; ok {
		return err
	}

	p.mu.Lock()
	connected := p.connected
	size := uint64(len(p.mem))
	p.mu.Unlock()

	if !connected {
		return fmt.Errorf("write: %w", flasher.ErrConnectionLost)
	}
	if uint64(address)+uint64(len(data)) > size {
		return fmt.Errorf("write 0x%X+0x%X exceeds flash size 0x%X", address, len(data), size)
	}

	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = len(data)
	}
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		p.mu.Lock()
		copy(p.mem[int(address)+off:], data[off:end])
		p.mu.Unlock()

		if onProgress != nil {
			onProgress(end, len(data))
		}
		if p.ChunkDelay > 0 {
			time.Sleep(p.ChunkDelay)
		}
	}
	return nil
}

// Disconnect implements flasher.DeviceProgrammer.
func (p *Programmer) Disconnect() error {
	p.record(Op{Kind: OpDisconnect})
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

// Drop simulates a lost connection: later writes fail with
// flasher.ErrConnectionLost.
func (p *Programmer) Drop() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

// Connected reports whether Connect succeeded and no disconnect followed.
func (p *Programmer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Ops returns a copy of the recorded operations.
func (p *Programmer) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Op(nil), p.ops...)
}

// WriteAddresses returns the addresses of all writes in call order.
func (p *Programmer) WriteAddresses() []uint32 {
	var addrs []uint32
	for _, op := range p.Ops() {
		if op.Kind == OpWrite {
			addrs = append(addrs, op.Address)
		}
	}
	return addrs
}

// Count returns how many operations of kind were recorded.
func (p *Programmer) Count(kind OpKind) int {
	n := 0
	for _, op := range p.Ops() {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Read returns a copy of n bytes of flash at address.
func (p *Programmer) Read(address uint32, n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	end := int(address) + n
	if end > len(p.mem) {
		end = len(p.mem)
	}
	return append([]byte(nil), p.mem[address:end]...)
}

// Reset clears the recorded operations.
func (p *Programmer) Reset() {
	p.mu.Lock()
	p.ops = nil
	p.mu.Unlock()
}
