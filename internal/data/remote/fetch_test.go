package remote

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("LAT,LON\n1,2\n"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/points.csv")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "LAT,LON\n1,2\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewFetcher(time.Second)
	if _, err := f.Fetch(context.Background(), addr+"/se.geojson"); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestFetchLocalCompressed(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`{"type":"FeatureCollection","features":[]}`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write(payload)
	zw.Close()
	gzPath := filepath.Join(dir, "se.geojson.gz")
	if err := os.WriteFile(gzPath, gz.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zstPath := filepath.Join(dir, "se.geojson.zst")
	if err := os.WriteFile(zstPath, enc.EncodeAll(payload, nil), 0644); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	plainPath := filepath.Join(dir, "se.geojson")
	if err := os.WriteFile(plainPath, payload, 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(time.Second)
	for _, src := range []string{gzPath, "file://" + zstPath, plainPath} {
		got, err := f.Fetch(context.Background(), src)
		if err != nil {
			t.Fatalf("fetch %s: %v", src, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("fetch %s: got %q", src, got)
		}
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	f := NewFetcher(time.Second)
	if _, err := f.Fetch(context.Background(), "ftp://example.com/se.geojson"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}
