package flashertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-fwflash/flasher"
)

func TestProgrammerRecordsOperations(t *testing.T) {
	p := New("ESP32", 0x10000)
	ctx := context.Background()

	info, err := p.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ESP32", info.ChipFamily)
	assert.Equal(t, uint32(0x10000), info.FlashSize)

	require.NoError(t, p.Erase(ctx))

	var calls [][2]int
	p.ChunkSize = 3
	require.NoError(t, p.Write(ctx, 0x100, []byte("abcdefg"), func(w, total int) {
		calls = append(calls, [2]int{w, total})
	}))
	assert.Equal(t, [][2]int{{3, 7}, {6, 7}, {7, 7}}, calls)
	assert.Equal(t, []byte("abcdefg"), p.Read(0x100, 7))

	require.NoError(t, p.Disconnect())
	assert.False(t, p.Connected())

	kinds := []OpKind{}
	for _, op := range p.Ops() {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []OpKind{OpConnect, OpErase, OpWrite, OpDisconnect}, kinds)
	assert.Equal(t, []uint32{0x100}, p.WriteAddresses())
}

func TestProgrammerFaults(t *testing.T) {
	ctx := context.Background()
	p := New("ESP32", 0x1000)

	err := p.Write(ctx, 0, []byte{1}, nil)
	assert.ErrorIs(t, err, flasher.ErrConnectionLost)

	_, err = p.Connect(ctx)
	require.NoError(t, err)

	assert.Error(t, p.Write(ctx, 0xFF0, make([]byte, 0x20), nil))

	boom := errors.New("boom")
	p.WriteErrs[0x200] = boom
	assert.ErrorIs(t, p.Write(ctx, 0x200, []byte{1}, nil), boom)

	p.Drop()
	assert.ErrorIs(t, p.Erase(ctx), flasher.ErrConnectionLost)

	p.ConnectErr = boom
	_, err = p.Connect(ctx)
	assert.ErrorIs(t, err, boom)
}
