package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"xxmm/internal/logging"
)

// Defaults mirror the frontend's expectations when no timeout is passed
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) XX-Mod-Manager-Tauri/0.1.9"

	progressChunk = 32 * 1024
)

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to download file, status code: %s", e.Status)
}

// Progress is reported while a body is read
type Progress struct {
	Received int64 `json:"received"`
	Total    int64 `json:"total"` // -1 while the server sent no length, then the final size
}

// Options customise a single download
type Options struct {
	// Timeout bounds the whole request; zero uses the downloader default
	Timeout    time.Duration
	OnProgress func(Progress)
}

// Downloader performs HTTP GET downloads
type Downloader struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// New creates a downloader. Zero values fall back to the defaults.
func New(userAgent string, timeout time.Duration) *Downloader {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Downloader{
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// WithClient replaces the underlying HTTP client
func (d *Downloader) WithClient(c *http.Client) *Downloader {
	d.client = c
	return d
}

func (d *Downloader) get(ctx context.Context, url string, opts Options) (*http.Response, context.CancelFunc, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, cancel, nil
}

// ToBytes downloads url into memory
func (d *Downloader) ToBytes(ctx context.Context, url string, opts Options) ([]byte, error) {
	resp, cancel, err := d.get(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := copyWithProgress(&buf, resp.Body, resp.ContentLength, opts.OnProgress); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return buf.Bytes(), nil
}

// ToFile downloads url to dest. The body is streamed into a temp file next
// to dest and renamed into place, so dest is only replaced by a complete body.
func (d *Downloader) ToFile(ctx context.Context, url, dest string, opts Options) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	resp, cancel, err := d.get(ctx, url, opts)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := copyWithProgress(tmp, resp.Body, resp.ContentLength, opts.OnProgress)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	logging.Info("Download complete", "url", url, "path", logging.MaskPath(dest), "bytes", n)
	return n, nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, report func(Progress)) (int64, error) {
	if total <= 0 {
		total = -1
	}
	if report == nil {
		return io.Copy(dst, src)
	}

	buf := make([]byte, progressChunk)
	var received int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += int64(n)
			report(Progress{Received: received, Total: total})
		}
		if rerr == io.EOF {
			if total < 0 && received > 0 {
				// length is known now, so the throttle lets this one through
				report(Progress{Received: received, Total: received})
			}
			return received, nil
		}
		if rerr != nil {
			return received, rerr
		}
	}
}

// Throttle wraps report so it runs at most once per interval. The first
// update and the one completing a known total always pass.
func Throttle(interval time.Duration, report func(Progress)) func(Progress) {
	var last time.Time
	return func(p Progress) {
		now := time.Now()
		complete := p.Total > 0 && p.Received >= p.Total
		if !last.IsZero() && !complete && now.Sub(last) < interval {
			return
		}
		last = now
		report(p)
	}
}
