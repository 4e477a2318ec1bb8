package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/log"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/testutil"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

var testPlatform = platform.Descriptor{OS: platform.OSLinux, Arch: platform.ArchX86_64, Libc: platform.LibcGlibc}

// fakeCatalog serves a fixed tag list and counts lookups.
type fakeCatalog struct {
	mu     sync.Mutex
	tags   []string
	assets map[string][]string
	calls  int
	err    error
}

func (c *fakeCatalog) ListTags(ctx context.Context) ([]version.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	tags, _ := version.ParseTags(c.tags)
	return tags, nil
}

func (c *fakeCatalog) ReleaseAssets(ctx context.Context, tag string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assets[tag], nil
}

func (c *fakeCatalog) setTags(tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = tags
}

func (c *fakeCatalog) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// releaseServer serves artifacts and their .sha256 files.
type releaseServer struct {
	*httptest.Server
	mu        sync.Mutex
	files     map[string][]byte
	checksums map[string]string
	requests  atomic.Int64
}

func newReleaseServer(t *testing.T) *releaseServer {
	t.Helper()
	rs := &releaseServer{files: map[string][]byte{}, checksums: map[string]string{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.requests.Add(1)
		rs.mu.Lock()
		defer rs.mu.Unlock()

		if name, ok := strings.CutSuffix(r.URL.Path, ".sha256"); ok {
			sum, found := rs.checksums[name]
			if !found {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, "%s  %s\n", sum, filepath.Base(name))
			return
		}
		data, found := rs.files[r.URL.Path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(rs.Close)
	return rs
}

// publish serves data at path with its correct checksum.
func (rs *releaseServer) publish(path string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	sum := sha256.Sum256(data)
	rs.files[path] = data
	rs.checksums[path] = hex.EncodeToString(sum[:])
}

func (rs *releaseServer) setChecksum(path, sum string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.checksums[path] = sum
}

func runtimePath(v string) string {
	return fmt.Sprintf("/%s/pkg-%s-x86_64-linux-gnu.tar.gz", v, v)
}

func pluginPath(name, v string) string {
	return fmt.Sprintf("/%s/pkg-plugin-%s-%s-x86_64-linux-gnu.tar.gz", v, name, v)
}

func runtimeArchive(t *testing.T, v string) []byte {
	root := "pkg-" + v + "-Linux/"
	return testutil.TarGz(t,
		testutil.TarEntry{Name: root + "bin/wasmedge", Body: "wasmedge " + v},
		testutil.TarEntry{Name: root + "lib64/libwasmedge.so", Body: "lib " + v},
		testutil.TarEntry{Name: root + "include/wasmedge/wasmedge.h", Body: "header"},
	)
}

type fixture struct {
	cfg     *config.Config
	catalog *fakeCatalog
	server  *releaseServer
}

func newFixture(t *testing.T, tags ...string) *fixture {
	t.Helper()
	f := &fixture{
		cfg:     config.New(filepath.Join(t.TempDir(), "wasmedge")),
		catalog: &fakeCatalog{tags: tags, assets: map[string][]string{}},
		server:  newReleaseServer(t),
	}
	for _, tag := range tags {
		f.server.publish(runtimePath(tag), runtimeArchive(t, tag))
	}
	return f
}

func (f *fixture) manager(opts ...Option) *Manager {
	dist := version.Distribution{
		BaseURL:        f.server.URL,
		Package:        "pkg",
		PluginPackage:  "pkg-plugin",
		ChecksumSuffix: ".sha256",
		Scheme:         platform.TripleScheme{},
	}
	fetcher := download.NewFetcher(
		download.WithHTTPClient(f.server.Client()),
		download.WithAllowHTTP(true),
	)
	base := []Option{
		WithCatalog(f.catalog),
		WithDistribution(dist),
		WithFetcher(fetcher),
		WithPlatform(testPlatform),
		WithGOOS("linux"),
		WithLogger(log.NewNoop()),
		WithRetryBackoff(time.Millisecond),
		WithLockBackoff(time.Millisecond),
	}
	return New(f.cfg, append(base, opts...)...)
}
