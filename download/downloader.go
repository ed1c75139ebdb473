package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moffa90/go-fwflash/firmware"
	"github.com/moffa90/go-fwflash/logging"
)

const (
	mib        = 1 << 20
	readBuffer = 32 * 1024

	// maxPrealloc caps the buffer reserved from a declared Content-Length
	maxPrealloc = 4 * mib
)

// State is the final state of one part download.
type State string

const (
	// StateSucceeded means Content holds the full payload.
	StateSucceeded State = "succeeded"

	// StateFailed means the fetch failed; Err holds the cause.
	StateFailed State = "failed"

	// StateCancelled means the fetch was aborted by the caller.
	StateCancelled State = "cancelled"
)

// Request describes one part to fetch.
type Request struct {
	// Path is the part locator: an absolute URL or a path relative to
	// the base URL
	Path string

	// Name is the fallback filename when the server declares none
	Name string
}

// Result is the settled outcome of one request, at the request's index.
type Result struct {
	Index int

	// Filename is the server-declared name, else Request.Name, else the
	// last segment of the URL
	Filename string

	SourcePath string
	Content    []byte
	State      State
	Err        error
}

// ProgressFunc reports byte progress for one part. total is -1 while the
// size is unknown. Calls are serialized.
type ProgressFunc func(index int, loaded, total int64)

// Downloader fetches firmware parts concurrently.
type Downloader struct {
	cfg Config
	log logging.Logger

	mu sync.Mutex // serializes progress callbacks
}

// New creates a downloader.
//
// Example:
//
//	d := download.New(
//	    download.WithBaseURL("https://flasher.example.org/"),
//	    download.WithTimeout(30*time.Second, 10*time.Second),
//	)
//	results, err := d.DownloadAll(ctx, requests, nil)
func New(opts ...Option) *Downloader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Downloader{cfg: cfg, log: logging.OrNop(cfg.Logger)}
}

// RequestsFor builds one request per metadata part, in metadata order.
func RequestsFor(meta *firmware.Metadata) []Request {
	if meta == nil {
		return nil
	}
	reqs := make([]Request, len(meta.Parts))
	for i, p := range meta.Parts {
		reqs[i] = Request{Path: p.Path, Name: p.RelativeName}
	}
	return reqs
}

// DownloadAll fetches every request concurrently and waits for all of
// them to settle. One failure never aborts its siblings. Cancelling ctx
// aborts every pending fetch; those are reported as StateCancelled.
//
// The returned slice always has one Result per request, in request order.
// The error is a *PartialFailureError when any part failed, ctx.Err() when
// parts were only cancelled, and nil otherwise. Retrying means calling
// DownloadAll again with the same requests; no state is kept between calls.
func (d *Downloader) DownloadAll(ctx context.Context, reqs []Request, onProgress ProgressFunc) ([]Result, error) {
	results := make([]Result, len(reqs))

	d.log.Info("Starting downloads", "parts", len(reqs))

	// A plain Group never cancels siblings; its error is only the first
	// failure, the full picture comes from results.
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.fetch(ctx, i, req, onProgress)
			if results[i].State == StateFailed {
				return results[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.log.Debug("First download failure", "error", err)
	}

	pf := &PartialFailureError{Total: len(reqs)}
	for _, r := range results {
		switch r.State {
		case StateSucceeded:
			pf.Succeeded++
		case StateCancelled:
			pf.Cancelled++
		case StateFailed:
			pf.Failures = append(pf.Failures, PartFailure{Index: r.Index, Filename: r.Filename, Err: r.Err})
		}
	}

	d.log.Info("Downloads settled",
		"succeeded", pf.Succeeded, "failed", len(pf.Failures), "cancelled", pf.Cancelled)

	switch {
	case len(pf.Failures) > 0:
		return results, pf
	case pf.Cancelled > 0:
		return results, ctx.Err()
	}
	return results, nil
}

func (d *Downloader) fetch(parent context.Context, idx int, req Request, onProgress ProgressFunc) (res Result) {
	start := time.Now()
	res = Result{Index: idx, SourcePath: req.Path, Filename: req.Name}
	if res.Filename == "" {
		res.Filename = firmware.BaseName(req.Path)
	}

	defer func() {
		d.cfg.Metrics.RecordDownload(string(firmware.ClassifyRole(res.Filename)), string(res.State),
			len(res.Content), time.Since(start))
	}()

	target, err := d.resolveURL(req.Path)
	if err != nil {
		res.State, res.Err = StateFailed, err
		return res
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var timedOut atomic.Bool
	timeout := d.cfg.BaseTimeout
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	fail := func(err error) Result {
		switch {
		case parent.Err() != nil:
			res.State, res.Err = StateCancelled, parent.Err()
			d.log.Debug("Download cancelled", "index", idx, "file", res.Filename)
		case timedOut.Load():
			res.State, res.Err = StateFailed, &TimeoutError{URL: target, Timeout: timeout}
			d.log.Error("Download timed out", "index", idx, "url", target, "timeout", timeout)
		default:
			res.State, res.Err = StateFailed, err
			d.log.Error("Download failed", "index", idx, "url", target, "error", err)
		}
		res.Content = nil
		return res
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to build request: %w", err))
	}
	if d.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.cfg.Client.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fail(&StatusError{URL: target, StatusCode: resp.StatusCode})
	}

	total := resp.ContentLength
	if total > d.cfg.MaxPartSize {
		return fail(&TooLargeError{URL: target, Size: total, Limit: d.cfg.MaxPartSize})
	}
	if total > 0 && d.cfg.PerMiBTimeout > 0 && timer.Stop() {
		timeout = d.cfg.BaseTimeout + time.Duration((total+mib-1)/mib)*d.cfg.PerMiBTimeout
		timer.Reset(timeout - time.Since(start))
	}

	if name := filenameFromResponse(resp); name != "" {
		res.Filename = name
	}

	d.log.Debug("Downloading part", "index", idx, "file", res.Filename, "size", total)

	content, err := d.readBody(io.LimitReader(resp.Body, d.cfg.MaxPartSize+1), idx, total, onProgress)
	if err != nil {
		return fail(fmt.Errorf("failed to read body: %w", err))
	}
	if int64(len(content)) > d.cfg.MaxPartSize {
		return fail(&TooLargeError{URL: target, Size: -1, Limit: d.cfg.MaxPartSize})
	}
	if total > 0 && int64(len(content)) != total {
		return fail(fmt.Errorf("short body: got %d bytes, expected %d", len(content), total))
	}

	res.Content = content
	res.State = StateSucceeded
	d.log.Info("Downloaded part", "index", idx, "file", res.Filename, "bytes", len(content),
		"elapsed", time.Since(start))
	return res
}

func (d *Downloader) readBody(body io.Reader, idx int, total int64, onProgress ProgressFunc) ([]byte, error) {
	capacity := int64(readBuffer)
	if total > 0 {
		capacity = min(total, maxPrealloc)
	}
	content := make([]byte, 0, capacity)
	buf := make([]byte, readBuffer)

	d.progress(onProgress, idx, 0, total)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			content = append(content, buf[:n]...)
			d.progress(onProgress, idx, int64(len(content)), total)
		}
		if errors.Is(err, io.EOF) {
			return content, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *Downloader) progress(fn ProgressFunc, idx int, loaded, total int64) {
	if fn == nil {
		return
	}
	if total <= 0 {
		total = -1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(idx, loaded, total)
}

func (d *Downloader) resolveURL(p string) (string, error) {
	u, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid part path %q: %w", p, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if d.cfg.BaseURL == "" {
		return "", fmt.Errorf("relative part path %q without base URL", p)
	}
	base, err := url.Parse(d.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", d.cfg.BaseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// filenameFromResponse returns the Content-Disposition filename, if any.
// RFC 2231 "filename*" values are decoded by mime.ParseMediaType.
func filenameFromResponse(resp *http.Response) string {
	cd := resp.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	name := strings.ReplaceAll(params["filename"], `\`, "/")
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
