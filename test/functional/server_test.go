package functional

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"github.com/klauspost/compress/gzip"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// testPlatform is pinned on the command line by every install step so the
// published artifact names do not depend on the host.
var testPlatform = platform.Descriptor{OS: platform.OSLinux, Arch: platform.ArchX86_64, Libc: platform.LibcGlibc}

// apiPrefix is where the server answers GitHub API tag listings.
const apiPrefix = "/api"

// releaseServer serves runtime and plugin archives laid out the way
// version.Distribution names them, with a .sha256 file beside each, and
// the GitHub tag listing of WasmEdge/WasmEdge under apiPrefix.
type releaseServer struct {
	*httptest.Server

	mu        sync.Mutex
	tags      []string
	files     map[string][]byte
	checksums map[string]string
}

func newReleaseServer() *releaseServer {
	rs := &releaseServer{
		files:     make(map[string][]byte),
		checksums: make(map[string]string),
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	return rs
}

func (rs *releaseServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if r.URL.Path == apiPrefix+"/repos/WasmEdge/WasmEdge/tags" {
		tags := make([]*github.RepositoryTag, len(rs.tags))
		for i, name := range rs.tags {
			tags[i] = &github.RepositoryTag{Name: github.String(name)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tags)
		return
	}
	if path, ok := strings.CutSuffix(r.URL.Path, version.DefaultChecksumSuffix); ok {
		sum, found := rs.checksums[path]
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sum + "\n"))
		return
	}
	data, ok := rs.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func (rs *releaseServer) setTags(names []string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.tags = append([]string(nil), names...)
}

func (rs *releaseServer) distribution() version.Distribution {
	return version.NewDistribution(rs.URL)
}

func (rs *releaseServer) publish(url string, data []byte) {
	path := strings.TrimPrefix(url, rs.URL)
	sum := sha256.Sum256(data)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[path] = data
	rs.checksums[path] = hex.EncodeToString(sum[:])
}

func (rs *releaseServer) corrupt(url string) {
	path := strings.TrimPrefix(url, rs.URL)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.checksums[path] = strings.Repeat("0", 64)
}

type entry struct {
	name string
	body string
}

func tarGz(entries ...entry) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0755, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runtimeArchive(v string) ([]byte, error) {
	root := "WasmEdge-" + v + "-Linux/"
	return tarGz(
		entry{root + "bin/wasmedge", "#!/bin/sh\necho wasmedge " + v + "\n"},
		entry{root + "lib64/libwasmedge.so", "lib " + v},
		entry{root + "include/wasmedge/wasmedge.h", "header"},
	)
}

func pluginArchive(name, v string) ([]byte, error) {
	return tarGz(
		entry{"plugin/libwasmedgePlugin" + name + ".so", name + " " + v},
	)
}
