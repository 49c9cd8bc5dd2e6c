// Package remote fetches dataset bodies over HTTP or from the local disk.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const maxBodyBytes = 512 << 20 // 512 MiB

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Fetcher retrieves raw dataset bytes. Compressed bodies (gzip or zstd) are
// detected by their magic bytes and decoded transparently.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "se-atlas/1.0",
	}
}

// Fetch reads the body behind rawURL. http(s) URLs are downloaded; file://
// URLs and bare paths are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %q: %w", rawURL, err)
	}

	var body []byte
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		body, err = f.get(ctx, rawURL)
	case "file":
		body, err = os.ReadFile(u.Path)
	case "":
		body, err = os.ReadFile(rawURL)
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return decompress(body)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, maxBodyBytes)
	}
	return body, nil
}

func decompress(body []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(body, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(body, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	default:
		return body, nil
	}
}
