package peppol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	perr "peppolsync/internal/platform/errors"
	"peppolsync/internal/platform/logger"
)

const (
	// DefaultExportURL is the public business-card export of the PEPPOL directory
	DefaultExportURL = "https://directory.peppol.eu/export/businesscards"
	// ExportFileName is the local name of the cached export
	ExportFileName = "directory-export-business-cards.xml"

	progressEvery = 100 << 20 // log download progress every 100 MiB
)

// Fetcher makes the export available as a local file
type Fetcher interface {
	Fetch(ctx context.Context, force bool) (Download, error)
}

// CachedFetcher downloads the export into a directory and reuses it on later runs.
// A .meta sidecar keeps ETag and Last-Modified so forced refreshes can revalidate
type CachedFetcher struct {
	dir    string
	url    string
	name   string
	client *http.Client
	log    *logger.Logger
}

// cacheMeta is a tiny sidecar json with fields we actually use
type cacheMeta struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Size         int64     `json:"size,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	LastChecked  time.Time `json:"last_checked"`
}

// CachedOption configures the fetcher
type CachedOption func(*CachedFetcher)

// WithURL overrides the export URL
func WithURL(u string) CachedOption {
	return func(c *CachedFetcher) {
		if u != "" {
			c.url = u
		}
	}
}

// WithTimeout sets the HTTP client timeout; zero means no client timeout.
// It keeps any client set by WithHTTPClient and does not mutate it
func WithTimeout(d time.Duration) CachedOption {
	return func(c *CachedFetcher) {
		hc := *c.client
		hc.Timeout = d
		c.client = &hc
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) CachedOption {
	return func(c *CachedFetcher) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the logger used for progress and cache decisions
func WithLogger(l *logger.Logger) CachedOption {
	return func(c *CachedFetcher) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCachedFetcher builds a fetcher that keeps the export under dir
func NewCachedFetcher(dir string, opts ...CachedOption) *CachedFetcher {
	c := &CachedFetcher{
		dir:    dir,
		url:    DefaultExportURL,
		name:   ExportFileName,
		client: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Named("fetch")
	}
	return c
}

// Path returns where the export is (or will be) stored
func (c *CachedFetcher) Path() string { return filepath.Join(c.dir, c.name) }

// URL returns the export URL
func (c *CachedFetcher) URL() string { return c.url }

// Fetch returns the local export, downloading it when missing or when force is set
func (c *CachedFetcher) Fetch(ctx context.Context, force bool) (Download, error) {
	path := c.Path()
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		if !force {
			c.log.Info().
				Str("path", path).
				Float64("size_mb", mb(fi.Size())).
				Msg("fetch: using existing file")
			return Download{Path: path, Bytes: fi.Size(), CacheHit: true}, nil
		}
		return c.download(ctx, path, true)
	}
	return c.download(ctx, path, false)
}

func (c *CachedFetcher) download(ctx context.Context, path string, haveCopy bool) (Download, error) {
	start := time.Now()
	metaPath := path + ".meta"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Download{}, perr.Wrapf(err, perr.ErrorCodeDownload, "fetch: build request for %s", c.url)
	}
	var meta *cacheMeta
	if haveCopy {
		meta, _ = loadMeta(metaPath)
		if meta != nil {
			if meta.ETag != "" {
				req.Header.Set("If-None-Match", meta.ETag)
			}
			if meta.LastModified != "" {
				req.Header.Set("If-Modified-Since", meta.LastModified)
			}
		}
	}

	c.log.Info().Str("url", c.url).Bool("revalidate", meta != nil).Msg("fetch: downloading export")
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Download{}, perr.Interrupted(ctx.Err())
		}
		return Download{}, perr.Wrapf(err, perr.ErrorCodeDownload, "fetch: GET %s", c.url)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("fetch: close body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotModified && meta != nil:
		meta.LastChecked = time.Now().UTC()
		_ = saveMeta(metaPath, meta)
		fi, err := os.Stat(path)
		if err != nil {
			return Download{}, perr.Filesystemf(err, "fetch: stat %s", path)
		}
		c.log.Info().Str("path", path).Msg("fetch: export not modified, keeping cached copy")
		return Download{Path: path, Bytes: fi.Size(), CacheHit: true, Elapsed: time.Since(start)}, nil

	case resp.StatusCode == http.StatusOK:
		n, err := c.store(ctx, resp, path, metaPath, start)
		if err != nil {
			return Download{}, err
		}
		elapsed := time.Since(start)
		c.log.Info().
			Str("path", path).
			Float64("size_mb", mb(n)).
			Dur("elapsed", elapsed).
			Float64("mb_per_s", throughput(n, elapsed)).
			Msg("fetch: download complete")
		return Download{Path: path, Bytes: n, Elapsed: elapsed}, nil

	default:
		return Download{}, perr.Downloadf("fetch: unexpected status %d for %s", resp.StatusCode, c.url)
	}
}

// store streams the body into path via a .part file and records the sidecar
func (c *CachedFetcher) store(ctx context.Context, resp *http.Response, path, metaPath string, start time.Time) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, perr.Filesystemf(err, "fetch: mkdir %s", filepath.Dir(path))
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, perr.Filesystemf(err, "fetch: create %s", tmp)
	}

	prog := &progress{log: c.log, start: start, next: progressEvery}
	n, werr := io.Copy(io.MultiWriter(out, prog), resp.Body)
	cerr := out.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return 0, perr.Interrupted(ctx.Err())
		}
		if werr == nil {
			werr = cerr
		}
		return 0, perr.Wrapf(werr, perr.ErrorCodeDownload, "fetch: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, perr.Filesystemf(err, "fetch: rename %s", tmp)
	}

	now := time.Now().UTC()
	_ = saveMeta(metaPath, &cacheMeta{
		ETag:         strings.TrimSpace(resp.Header.Get("ETag")),
		LastModified: strings.TrimSpace(resp.Header.Get("Last-Modified")),
		Size:         n,
		FetchedAt:    now,
		LastChecked:  now,
	})
	return n, nil
}

// progress counts bytes passing through and logs every progressEvery bytes
type progress struct {
	log   *logger.Logger
	start time.Time
	n     int64
	next  int64
}

func (p *progress) Write(b []byte) (int, error) {
	p.n += int64(len(b))
	if p.n >= p.next {
		el := time.Since(p.start)
		p.log.Info().
			Float64("downloaded_mb", mb(p.n)).
			Dur("elapsed", el).
			Float64("mb_per_s", throughput(p.n, el)).
			Msg("fetch: progress")
		p.next += progressEvery
	}
	return len(b), nil
}

func mb(n int64) float64 { return float64(n) / (1024 * 1024) }

func throughput(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return mb(n) / d.Seconds()
}

// loadMeta reads a sidecar json file
func loadMeta(path string) (*cacheMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "error closing file: %v\n", cerr)
		}
	}()
	var m cacheMeta
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// saveMeta writes the sidecar json atomically
func saveMeta(path string, m *cacheMeta) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
