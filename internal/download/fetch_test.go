package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingSink struct {
	started bool
	total   int64
	added   int64
	done    bool
}

func (s *countingSink) Start(_ string, total int64) { s.started, s.total = true, total }
func (s *countingSink) Add(n int64)                 { s.added += n }
func (s *countingSink) Finish()                     { s.done = true }

func newTestFetcher(server *httptest.Server, opts ...Option) *Fetcher {
	base := []Option{WithHTTPClient(server.Client()), WithAllowHTTP(true)}
	return NewFetcher(append(base, opts...)...)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("wasmedge"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != "identity" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	sink := &countingSink{}
	f := newTestFetcher(server, WithProgress(sink))
	path := filepath.Join(t.TempDir(), "WasmEdge.tar.gz")

	digest, err := f.Download(context.Background(), server.URL+"/0.14.1/WasmEdge.tar.gz", path)
	require.NoError(t, err)
	require.Equal(t, sha256Hex(payload), digest)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	require.True(t, sink.started)
	require.Equal(t, int64(len(payload)), sink.total)
	require.Equal(t, int64(len(payload)), sink.added)
	require.True(t, sink.done)
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		notFound  bool
	}{
		{http.StatusNotFound, false, true},
		{http.StatusGone, false, true},
		{http.StatusForbidden, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusBadGateway, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestFetcher(server).Fetch(context.Background(), server.URL+"/asset", &bytes.Buffer{})
			require.Error(t, err)

			var netErr *NetworkError
			require.True(t, errors.As(err, &netErr))
			require.Equal(t, tt.status, netErr.StatusCode)
			require.Equal(t, tt.retryable, netErr.Retryable)
			require.Equal(t, tt.retryable, IsRetryable(err))
			require.Equal(t, tt.notFound, errors.Is(err, ErrAssetNotFound))
		})
	}
}

func TestDownloadFailureRemovesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "asset.tar.gz")
	_, err := newTestFetcher(server).Download(context.Background(), server.URL+"/asset.tar.gz", path)
	require.ErrorIs(t, err, ErrAssetNotFound)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestFetchRequiresHTTPS(t *testing.T) {
	f := NewFetcher()
	_, err := f.Fetch(context.Background(), "http://example.com/asset.tar.gz", &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTPS")
	require.False(t, IsRetryable(err))
}

func TestFetchCancelledIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(server).Fetch(ctx, server.URL+"/asset", &bytes.Buffer{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, IsRetryable(err))
}

func TestFetchChecksum(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/single.sha256":
			fmt.Fprintf(w, "%s  WasmEdge-0.14.1-manylinux_2_28_x86_64.tar.gz\n", strings.ToUpper(digest))
		case "/sums":
			fmt.Fprintf(w, "%s  other.tar.gz\n%s *WasmEdge-0.14.1-manylinux_2_28_x86_64.tar.gz\n", strings.Repeat("0", 64), digest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := newTestFetcher(server)
	name := "WasmEdge-0.14.1-manylinux_2_28_x86_64.tar.gz"

	got, err := f.FetchChecksum(context.Background(), server.URL+"/single.sha256", name)
	require.NoError(t, err)
	require.Equal(t, digest, got)

	got, err = f.FetchChecksum(context.Background(), server.URL+"/sums", name)
	require.NoError(t, err)
	require.Equal(t, digest, got)

	_, err = f.FetchChecksum(context.Background(), server.URL+"/missing.sha256", name)
	require.ErrorIs(t, err, ErrAssetNotFound)
}
