package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  level: debug
download:
  base_url: https://flasher.example.org/
  per_mib_timeout: 5s
flash:
  baud_rate: 921600
  erase_before_flash: true
  flash_size: 8MB
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "https://flasher.example.org/", cfg.Download.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Download.BaseTimeout)
	assert.Equal(t, 5*time.Second, cfg.Download.PerMiBTimeout)
	assert.Equal(t, 921600, cfg.Flash.BaudRate)
	assert.True(t, cfg.Flash.EraseBeforeFlash)
	assert.Equal(t, uint64(8<<20), cfg.FlashSizeBytes())
	assert.Equal(t, "127.0.0.1:8470", cfg.Server.Addr)
	assert.Len(t, cfg.DownloadOptions(), 3)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "flash: [unclosed"},
		{"zero baud", "flash:\n  baud_rate: 0"},
		{"bad flash size", "flash:\n  flash_size: huge"},
		{"bad slice", "flash:\n  completion_slice: 1.5"},
		{"bad timeout", "download:\n  base_timeout: 0s"},
		{"negative per mib", "download:\n  per_mib_timeout: -1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwflash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: :9000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
