// Package download fetches release artifacts and verifies their digests.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/httputil"
	"github.com/tsukumogami/wasmedgeup/internal/log"
	"github.com/tsukumogami/wasmedgeup/internal/progress"
)

// maxChecksumSize bounds checksum file downloads.
const maxChecksumSize = 64 * 1024

// Fetcher streams artifacts over HTTP. A single Fetch never retries; see Retry.
type Fetcher struct {
	client    *http.Client
	sink      progress.Sink
	logger    log.Logger
	allowHTTP bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for transfers.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithProgress sets the progress sink for artifact transfers.
func WithProgress(s progress.Sink) Option {
	return func(f *Fetcher) { f.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithTimeout replaces the default client with one using the given
// whole-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client = newClient(d)
	}
}

// WithAllowHTTP permits plain http:// URLs, for mirrors configured that way.
func WithAllowHTTP(allow bool) Option {
	return func(f *Fetcher) { f.allowHTTP = allow }
}

// NewFetcher returns a Fetcher using the hardened client with the download
// timeout from the environment.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = newClient(config.GetDownloadTimeout())
	}
	if f.sink == nil {
		f.sink = progress.Noop{}
	}
	f.logger = log.OrDefault(f.logger)
	return f
}

func newClient(timeout time.Duration) *http.Client {
	opts := httputil.DefaultOptions()
	opts.Timeout = timeout
	opts.UserAgent = httputil.UserAgent()
	return httputil.NewSecureClient(opts)
}

// Fetch streams the body at url into w and returns the number of bytes
// written. Progress is reported to the configured sink.
func (f *Fetcher) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	return f.fetch(ctx, url, w, f.sink)
}

func (f *Fetcher) fetch(ctx context.Context, url string, w io.Writer, sink progress.Sink) (int64, error) {
	if !strings.HasPrefix(url, "https://") && !(f.allowHTTP && strings.HasPrefix(url, "http://")) {
		return 0, &NetworkError{URL: url, Err: fmt.Errorf("download URL must use HTTPS")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept-Encoding", "identity")

	f.logger.Debug("fetching", "url", url)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, transportError(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(url, resp.StatusCode)
	}
	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" && encoding != "identity" {
		return 0, &NetworkError{URL: url, Err: fmt.Errorf("compressed responses not supported (got %s)", encoding)}
	}

	sink.Start(lastSegment(url), resp.ContentLength)
	defer sink.Finish()

	n, err := io.Copy(w, progress.NewReader(resp.Body, sink))
	if err != nil {
		return n, transportError(ctx, url, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, &NetworkError{
			URL:       url,
			Retryable: true,
			Err:       fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength),
		}
	}
	return n, nil
}

// Download writes the body at url to path and returns its SHA-256 as hex.
// The file is removed if the transfer fails.
func (f *Fetcher) Download(ctx context.Context, url, path string) (string, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	h := sha256.New()
	_, err = f.Fetch(ctx, url, io.MultiWriter(out, h))
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FetchChecksum downloads a checksum file and returns the digest for
// filename.
func (f *Fetcher) FetchChecksum(ctx context.Context, checksumURL, filename string) (string, error) {
	var buf limitedBuffer
	buf.limit = maxChecksumSize
	if _, err := f.fetch(ctx, checksumURL, &buf, progress.Noop{}); err != nil {
		return "", err
	}
	return ParseChecksum(buf.String(), filename)
}

func transportError(ctx context.Context, url string, err error) *NetworkError {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return &NetworkError{URL: url, Err: ctxErr}
	}
	return &NetworkError{URL: url, Retryable: true, Err: classify(err)}
}

func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timed out: %w", err)
	}
	return err
}

func lastSegment(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 && i < len(url)-1 {
		return url[i+1:]
	}
	return url
}

type limitedBuffer struct {
	strings.Builder
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.limit {
		return 0, fmt.Errorf("checksum file exceeds %d bytes", b.limit)
	}
	return b.Builder.Write(p)
}
