// Package config loads the YAML configuration of the flasher tools.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/memmap"
)

// Config is the root configuration document.
//
// Example file:
//
//	logging:
//	  level: debug
//	  format: console
//	download:
//	  base_url: https://flasher.example.org/
//	  base_timeout: 30s
//	  per_mib_timeout: 10s
//	flash:
//	  baud_rate: 921600
//	  erase_before_flash: true
//	  flash_size: 8MB
//	server:
//	  addr: 127.0.0.1:8470
type Config struct {
	Logging  logging.Config `yaml:"logging"`
	Download DownloadConfig `yaml:"download"`
	Flash    FlashConfig    `yaml:"flash"`
	Server   ServerConfig   `yaml:"server"`
}

// DownloadConfig configures the part downloader.
type DownloadConfig struct {
	BaseURL       string        `yaml:"base_url"`
	BaseTimeout   time.Duration `yaml:"base_timeout"`
	PerMiBTimeout time.Duration `yaml:"per_mib_timeout"`
	UserAgent     string        `yaml:"user_agent"`
}

// FlashConfig holds batch defaults.
type FlashConfig struct {
	BaudRate         int    `yaml:"baud_rate"`
	EraseBeforeFlash bool   `yaml:"erase_before_flash"`
	FlashSize        string `yaml:"flash_size"`

	// CompletionSlice is the share of each part's progress reported on completion
	CompletionSlice float64 `yaml:"completion_slice"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: logging.Config{Level: "info", Format: "console"},
		Download: DownloadConfig{
			BaseTimeout:   30 * time.Second,
			PerMiBTimeout: 10 * time.Second,
			UserAgent:     "go-fwflash",
		},
		Flash: FlashConfig{
			BaudRate:        115200,
			CompletionSlice: 0.05,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8470"},
	}
}

// Load reads path and overlays it on Default. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse overlays a YAML document on Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Flash.BaudRate <= 0 {
		return fmt.Errorf("flash.baud_rate must be positive, got %d", c.Flash.BaudRate)
	}
	if c.Flash.CompletionSlice < 0 || c.Flash.CompletionSlice >= 1 {
		return fmt.Errorf("flash.completion_slice must be in [0, 1), got %v", c.Flash.CompletionSlice)
	}
	if _, err := memmap.ParseFlashSize(c.Flash.FlashSize); err != nil {
		return fmt.Errorf("flash.flash_size: %w", err)
	}
	if c.Download.BaseTimeout <= 0 {
		return fmt.Errorf("download.base_timeout must be positive, got %v", c.Download.BaseTimeout)
	}
	if c.Download.PerMiBTimeout < 0 {
		return fmt.Errorf("download.per_mib_timeout must not be negative, got %v", c.Download.PerMiBTimeout)
	}
	return nil
}

// FlashSizeBytes returns the configured flash size, 0 if unset.
func (c Config) FlashSizeBytes() uint64 {
	n, _ := memmap.ParseFlashSize(c.Flash.FlashSize)
	return n
}

// DownloadOptions converts the download section into downloader options.
func (c Config) DownloadOptions() []download.Option {
	opts := []download.Option{
		download.WithTimeout(c.Download.BaseTimeout, c.Download.PerMiBTimeout),
		download.WithUserAgent(c.Download.UserAgent),
	}
	if c.Download.BaseURL != "" {
		opts = append(opts, download.WithBaseURL(c.Download.BaseURL))
	}
	return opts
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(&c)
}
