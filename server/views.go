package server

import (
	"fmt"
	"time"

	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/memmap"
	"github.com/moffa90/go-fwflash/session"
)

type partView struct {
	Filename string `json:"filename"`
	Role     string `json:"role"`
	Address  string `json:"address,omitempty"`
	Source   string `json:"source,omitempty"`
	Size     int    `json:"size"`
	Loaded   bool   `json:"loaded"`
}

func hexAddr(addr uint32) string {
	return fmt.Sprintf("0x%X", addr)
}

func newPartView(p *firmware.Part) partView {
	v := partView{
		Filename: p.Filename,
		Role:     string(p.Role),
		Size:     p.Size(),
		Loaded:   p.HasContent(),
	}
	if p.Resolved() {
		v.Address = hexAddr(p.AddressValue())
	}
	return v
}

type metadataPartView struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Offset string `json:"offset"`
}

type metadataView struct {
	Version    string             `json:"version"`
	DeviceName string             `json:"device_name,omitempty"`
	ChipFamily string             `json:"chip_family,omitempty"`
	FlashSize  string             `json:"flash_size,omitempty"`
	Parts      []metadataPartView `json:"parts"`
}

func newMetadataView(m *firmware.Metadata) *metadataView {
	if m == nil {
		return nil
	}
	v := &metadataView{
		Version:    m.Version,
		DeviceName: m.DeviceName,
		ChipFamily: m.ChipFamily,
		FlashSize:  m.FlashSize,
		Parts:      make([]metadataPartView, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		v.Parts = append(v.Parts, metadataPartView{Name: p.RelativeName, Path: p.Path, Offset: hexAddr(p.Offset)})
	}
	return v
}

type deviceView struct {
	ChipFamily string `json:"chip_family"`
	ChipName   string `json:"chip_name,omitempty"`
	MAC        string `json:"mac,omitempty"`
	FlashSize  string `json:"flash_size,omitempty"`
}

func newDeviceView(d *flasher.DeviceInfo) *deviceView {
	if d == nil {
		return nil
	}
	v := &deviceView{ChipFamily: d.ChipFamily, ChipName: d.ChipName, MAC: d.MAC}
	if d.FlashSize > 0 {
		v.FlashSize = memmap.FormatFlashSize(uint64(d.FlashSize))
	}
	return v
}

type sessionView struct {
	ID       string        `json:"id"`
	Parts    []partView    `json:"parts"`
	Metadata *metadataView `json:"metadata,omitempty"`
	Device   *deviceView   `json:"device,omitempty"`
	Flash    *jobView      `json:"flash,omitempty"`
}

type warningView struct {
	Filename string `json:"filename"`
	End      string `json:"end"`
	Excess   uint64 `json:"excess"`
}

type validationView struct {
	Status           memmap.Status `json:"status"`
	Message          string        `json:"message,omitempty"`
	Flashable        bool          `json:"flashable"`
	FlashSize        string        `json:"flash_size,omitempty"`
	Conflicts        []string      `json:"conflicts"`
	BoundaryWarnings []warningView `json:"boundary_warnings"`
	Expected         string        `json:"expected_chip,omitempty"`
	Connected        string        `json:"connected_chip,omitempty"`
	Unresolved       []string      `json:"unresolved"`
	Pending          []string      `json:"pending"`
	Parts            []partView    `json:"parts"`
}

func newValidationView(a session.Assessment) validationView {
	v := validationView{
		Status:           a.Validation.Status,
		Message:          a.Validation.Message,
		Flashable:        a.Flashable(false),
		Conflicts:        nonNil(a.Validation.Conflicts),
		BoundaryWarnings: []warningView{},
		Unresolved:       nonNil(a.Unresolved),
		Pending:          nonNil(a.Pending),
		Parts:            make([]partView, 0, len(a.Parts)),
	}
	if a.FlashSize > 0 {
		v.FlashSize = memmap.FormatFlashSize(a.FlashSize)
	}
	if m := a.Validation.Mismatch; m != nil {
		v.Expected, v.Connected = m.Expected, m.Connected
	}
	for _, w := range a.Validation.BoundaryWarnings {
		v.BoundaryWarnings = append(v.BoundaryWarnings, warningView{
			Filename: w.Filename,
			End:      fmt.Sprintf("0x%X", w.End),
			Excess:   w.Excess,
		})
	}
	for _, rp := range a.Parts {
		pv := newPartView(rp.Part)
		pv.Source = string(rp.Source)
		v.Parts = append(v.Parts, pv)
	}
	return v
}

type downloadResultView struct {
	Index    int            `json:"index"`
	Filename string         `json:"filename"`
	Source   string         `json:"source"`
	State    download.State `json:"state"`
	Size     int            `json:"size"`
	Error    string         `json:"error,omitempty"`
}

func newDownloadResultViews(results []download.Result) []downloadResultView {
	views := make([]downloadResultView, 0, len(results))
	for _, r := range results {
		v := downloadResultView{
			Index:    r.Index,
			Filename: r.Filename,
			Source:   r.SourcePath,
			State:    r.State,
			Size:     len(r.Content),
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		views = append(views, v)
	}
	return views
}

type progressView struct {
	State        flasher.State `json:"state"`
	PartIndex    int           `json:"part_index"`
	PartCount    int           `json:"part_count"`
	Filename     string        `json:"filename,omitempty"`
	Address      string        `json:"address,omitempty"`
	Percentage   float64       `json:"percentage"`
	BytesWritten int           `json:"bytes_written"`
	Elapsed      string        `json:"elapsed"`
}

func newProgressView(p flasher.Progress) progressView {
	v := progressView{
		State:        p.State,
		PartIndex:    p.PartIndex,
		PartCount:    p.PartCount,
		Filename:     p.Filename,
		Percentage:   p.Percentage,
		BytesWritten: p.BytesWritten,
		Elapsed:      p.ElapsedTime.Round(time.Millisecond).String(),
	}
	if p.Filename != "" {
		v.Address = hexAddr(p.Address)
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
