package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/manifest"
	"github.com/moffa90/go-fwflash/partition"
)

var (
	// ErrNotConnected is returned when an operation needs a connected device.
	ErrNotConnected = errors.New("no device connected")

	// ErrNoMetadata is returned when an operation needs metadata.
	ErrNoMetadata = errors.New("no metadata loaded")
)

// FlashOptions controls one FlashBatch call.
type FlashOptions struct {
	EraseBeforeFlash        bool
	BaudRate                int
	AcknowledgeChipMismatch bool
}

// Session is one flashing workflow: the selected parts, metadata and
// connected device. It replaces ambient UI state; every operation reads
// the session explicitly.
//
// A Session holds at most one device connection and runs at most one
// flash batch at a time. All methods are safe for concurrent use.
type Session struct {
	ID string

	cfg        Config
	programmer flasher.DeviceProgrammer
	downloader *download.Downloader
	log        logging.Logger

	mu         sync.Mutex
	parts      []*firmware.Part
	meta       *firmware.Metadata
	partitions *partition.Table
	overrides  map[string]uint32
	device     *flasher.DeviceInfo

	flashing sync.Mutex // held by whoever drives the programmer
}

// New creates a session driving programmer.
//
// Example:
//
//	s := session.New(programmer,
//	    session.WithLogger(logging.Zap(zl)),
//	    session.WithDownloader(download.New(download.WithBaseURL(base))),
//	)
func New(programmer flasher.DeviceProgrammer, opts ...Option) *Session {
	if programmer == nil {
		panic("programmer cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Downloader == nil {
		cfg.Downloader = download.New(download.WithLogger(cfg.Logger), download.WithMetrics(cfg.Metrics))
	}

	return &Session{
		ID:         uuid.NewString(),
		cfg:        cfg,
		programmer: programmer,
		downloader: cfg.Downloader,
		log:        logging.OrNop(cfg.Logger),
		overrides:  make(map[string]uint32),
	}
}

// SetMetadata replaces the metadata. nil clears it.
func (s *Session) SetMetadata(meta *firmware.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
}

// LoadMetadata decodes and resolves a metadata document of either shape.
// On error the previous metadata is kept.
func (s *Session) LoadMetadata(data []byte) (*firmware.Metadata, error) {
	meta, err := manifest.ResolveBytes(data)
	if err != nil {
		return nil, err
	}
	s.SetMetadata(meta)
	s.log.Info("Metadata loaded", "session", s.ID, "version", meta.Version,
		"device", meta.DeviceName, "chip", meta.ChipFamily, "parts", len(meta.Parts))
	return meta, nil
}

// Metadata returns the current metadata, or nil.
func (s *Session) Metadata() *firmware.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// SetPartitionTable sets the table used when no metadata is loaded.
func (s *Session) SetPartitionTable(t *partition.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = t
}

// AddParts appends parts. A part with the same filename as an existing
// one replaces it.
func (s *Session) AddParts(parts ...*firmware.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range parts {
		if p == nil {
			continue
		}
		s.parts = replaceOrAppend(s.parts, p)
	}
}

func replaceOrAppend(parts []*firmware.Part, p *firmware.Part) []*firmware.Part {
	for i, existing := range parts {
		if existing.Filename == p.Filename {
			parts[i] = p
			return parts
		}
	}
	return append(parts, p)
}

// AddFile loads a local file (raw binary or Intel HEX) into the session.
func (s *Session) AddFile(path string) ([]*firmware.Part, error) {
	parts, err := firmware.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.AddParts(parts...)
	return parts, nil
}

// RemovePart drops the part with the given filename and its override.
func (s *Session) RemovePart(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, filename)
	for i, p := range s.parts {
		if p.Filename == filename {
			s.parts = append(s.parts[:i], s.parts[i+1:]...)
			return true
		}
	}
	return false
}

// ClearParts drops all parts and overrides.
func (s *Session) ClearParts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts = nil
	s.overrides = make(map[string]uint32)
}

// Parts returns the session parts as added (unresolved addresses stay nil).
func (s *Session) Parts() []*firmware.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*firmware.Part(nil), s.parts...)
}

// SetAddress records an operator-entered address for filename.
func (s *Session) SetAddress(filename string, addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[filename] = addr
}

// ClearAddress removes an operator-entered address.
func (s *Session) ClearAddress(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, filename)
}

// Connect connects the programmer. The device chip family then takes part
// in validation. It returns flasher.ErrBusy while a batch runs.
func (s *Session) Connect(ctx context.Context) (*flasher.DeviceInfo, error) {
	if !s.flashing.TryLock() {
		return nil, flasher.ErrBusy
	}
	defer s.flashing.Unlock()

	info, err := s.programmer.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	info.ChipFamily = firmware.NormalizeChipFamily(info.ChipFamily)

	s.mu.Lock()
	s.device = info
	s.mu.Unlock()

	s.log.Info("Device connected", "session", s.ID, "chip", info.ChipFamily, "flash_size", info.FlashSize)
	return info, nil
}

// Disconnect closes the device connection. It returns flasher.ErrBusy
// while a batch runs.
func (s *Session) Disconnect() error {
	if !s.flashing.TryLock() {
		return flasher.ErrBusy
	}
	defer s.flashing.Unlock()

	s.mu.Lock()
	connected := s.device != nil
	s.device = nil
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.programmer.Disconnect()
}

// Device returns the connected device, or nil.
func (s *Session) Device() *flasher.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// inputs snapshots the session state.
func (s *Session) inputs() Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := Inputs{
		Parts:      append([]*firmware.Part(nil), s.parts...),
		Metadata:   s.meta,
		Partitions: s.partitions,
		FlashSize:  s.cfg.FlashSize,
		Overrides:  make(map[string]uint32, len(s.overrides)),
	}
	for k, v := range s.overrides {
		in.Overrides[k] = v
	}
	if s.device != nil {
		in.ConnectedChip = s.device.ChipFamily
		if in.FlashSize == 0 {
			in.FlashSize = uint64(s.device.FlashSize)
		}
	}
	return in
}

// Assess resolves and validates the current selection.
func (s *Session) Assess() Assessment {
	a := ResolveAndValidate(s.inputs())
	s.cfg.Metrics.RecordValidation(string(a.Validation.Status))
	return a
}

// DownloadManifestParts fetches every part of the loaded metadata. Only
// when all parts succeed do they replace the session parts, each placed at
// its metadata offset under its server-declared filename. On partial
// failure the session is unchanged and the caller retries the whole set.
func (s *Session) DownloadManifestParts(ctx context.Context, onProgress download.ProgressFunc) ([]download.Result, error) {
	meta := s.Metadata()
	if meta == nil {
		return nil, ErrNoMetadata
	}

	results, err := s.downloader.DownloadAll(ctx, download.RequestsFor(meta), onProgress)
	if err != nil {
		return results, err
	}

	parts := make([]*firmware.Part, len(results))
	for i, r := range results {
		p := firmware.NewPart(r.Filename, r.Content).WithAddress(meta.Parts[r.Index].Offset)
		p.SourcePath = r.SourcePath
		parts[i] = p
	}

	s.mu.Lock()
	s.parts = parts
	s.mu.Unlock()

	s.log.Info("Manifest parts downloaded", "session", s.ID, "parts", len(parts))
	return results, nil
}

// FlashBatch validates the current selection, builds a batch and writes
// it. It returns flasher.ErrBusy while another batch of this session runs.
// The batch is returned even when flashing fails.
func (s *Session) FlashBatch(ctx context.Context, opts FlashOptions, onProgress flasher.ProgressCallback) (*flasher.Batch, error) {
	if !s.flashing.TryLock() {
		return nil, flasher.ErrBusy
	}
	defer s.flashing.Unlock()

	device := s.Device()
	if device == nil {
		return nil, ErrNotConnected
	}

	batch, err := s.PrepareBatch(opts)
	if err != nil {
		return nil, err
	}

	f := flasher.New(s.programmer,
		flasher.WithProgressCallback(onProgress),
		flasher.WithLogger(s.cfg.Logger),
		flasher.WithMetrics(s.cfg.Metrics),
		flasher.WithCompletionSlice(s.cfg.CompletionSlice),
	)
	return batch, f.Flash(ctx, batch)
}

// PrepareBatch builds a batch from the current selection without flashing.
func (s *Session) PrepareBatch(opts FlashOptions) (*flasher.Batch, error) {
	a := s.Assess()
	if len(a.Pending) > 0 {
		return nil, &flasher.NotFlashableError{Reason: "parts without content", Unresolved: a.Pending}
	}

	chip := ""
	if d := s.Device(); d != nil {
		chip = d.ChipFamily
	}
	baud := opts.BaudRate
	if baud == 0 {
		baud = s.cfg.BaudRate
	}

	parts := make([]*firmware.Part, 0, len(a.Parts))
	for _, rp := range a.Parts {
		parts = append(parts, rp.Part)
	}

	return flasher.NewBatch(parts, a.Validation, flasher.BatchOptions{
		EraseBeforeFlash:        opts.EraseBeforeFlash,
		BaudRate:                baud,
		ChipFamily:              chip,
		AcknowledgeChipMismatch: opts.AcknowledgeChipMismatch,
	})
}
