// Package testutil holds helpers shared by package tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/tsukumogami/wasmedgeup/internal/config"
)

// NewTestConfig returns a layout rooted in a fresh temporary directory with
// its directories created.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New(filepath.Join(t.TempDir(), "wasmedge"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create directories: %v", err)
	}
	return cfg
}

// TarEntry is a regular file in an archive built by TarGz.
type TarEntry struct {
	Name string
	Body string
}

// TarGz builds a gzip-compressed tarball in memory.
func TarGz(t *testing.T, entries ...TarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Mode:     0755,
			Size:     int64(len(e.Body)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		if _, err := tw.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write tar entry: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if !FileExists(path) {
		t.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if FileExists(path) {
		t.Errorf("expected file to not exist: %s", path)
	}
}
