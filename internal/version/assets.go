package version

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/tsukumogami/wasmedgeup/internal/archive"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
)

const (
	// DefaultPackage prefixes runtime artifact names.
	DefaultPackage = "WasmEdge"

	// DefaultPluginPackage prefixes plugin artifact names.
	DefaultPluginPackage = "WasmEdge-plugin"

	// DefaultChecksumSuffix is appended to an artifact URL to locate its checksum.
	DefaultChecksumSuffix = ".sha256"
)

// Asset is a downloadable artifact and the location of its checksum.
type Asset struct {
	URL         string
	ChecksumURL string
	Filename    string
	Format      archive.Format
}

// Distribution holds the naming template of published artifacts:
//
//	<BaseURL>/<tag>/<Package>-<version>-<token>.<ext>
//	<BaseURL>/<tag>/<PluginPackage>-<plugin>-<version>-<token>.<ext>
//
// with the checksum at the artifact URL plus ChecksumSuffix.
type Distribution struct {
	BaseURL        string
	Package        string
	PluginPackage  string
	ChecksumSuffix string
	Scheme         platform.TokenScheme
}

// GitHubReleasesURL returns the download base for a GitHub repository.
func GitHubReleasesURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download", owner, repo)
}

// NewDistribution returns the upstream WasmEdge naming rooted at baseURL.
func NewDistribution(baseURL string) Distribution {
	return Distribution{
		BaseURL:        strings.TrimSuffix(baseURL, "/"),
		Package:        DefaultPackage,
		PluginPackage:  DefaultPluginPackage,
		ChecksumSuffix: DefaultChecksumSuffix,
		Scheme:         platform.WasmEdgeScheme{},
	}
}

// AssetFor returns the runtime artifact for tag on desc. It does not check
// that the artifact exists.
func (d Distribution) AssetFor(tag Tag, desc platform.Descriptor) (Asset, error) {
	token, err := d.Scheme.Token(desc)
	if err != nil {
		return Asset{}, err
	}
	return d.asset(tag, d.Package+"-"+tag.String()+"-"+token, desc), nil
}

// PluginAssetFor returns the artifact of plugin name for tag on desc.
func (d Distribution) PluginAssetFor(name string, tag Tag, desc platform.Descriptor) (Asset, error) {
	token, err := d.Scheme.Token(desc)
	if err != nil {
		return Asset{}, err
	}
	return d.PluginAssetForToken(name, tag, token, desc)
}

// PluginAssetForToken is PluginAssetFor with an explicit platform token,
// used to try the fallback builds of PlatformFallbacks.
func (d Distribution) PluginAssetForToken(name string, tag Tag, token string, desc platform.Descriptor) (Asset, error) {
	if err := ValidatePluginName(name); err != nil {
		return Asset{}, err
	}
	return d.asset(tag, d.PluginPackage+"-"+name+"-"+tag.String()+"-"+token, desc), nil
}

const (
	ubuntu2004Prefix    = "ubuntu20_04_"
	ubuntu2204Prefix    = "ubuntu22_04_"
	manylinux2014Prefix = "manylinux2014_"
	manylinux228Prefix  = "manylinux_2_28_"
)

// PlatformFallbacks returns the tokens to try, in order, for a plugin
// release of runtime published for token. Distribution builds fall back to
// the manylinux build of the same era: manylinux2014 before 0.15.0 and
// manylinux_2_28 from 0.15.0 on, when manylinux2014 was retired.
func PlatformFallbacks(token string, runtime Tag) []string {
	modern := runtime.Version != nil && (runtime.Version.Major() > 0 || runtime.Version.Minor() >= 15)

	out := []string{token}
	switch {
	case strings.HasPrefix(token, ubuntu2004Prefix):
		if modern {
			out = append(out, manylinux228Prefix+strings.TrimPrefix(token, ubuntu2004Prefix))
		} else {
			out = append(out, manylinux2014Prefix+strings.TrimPrefix(token, ubuntu2004Prefix))
		}
	case strings.HasPrefix(token, ubuntu2204Prefix):
		out = append(out, manylinux228Prefix+strings.TrimPrefix(token, ubuntu2204Prefix))
	case strings.HasPrefix(token, manylinux2014Prefix) && modern:
		out = append(out, manylinux228Prefix+strings.TrimPrefix(token, manylinux2014Prefix))
	}
	return out
}

func (d Distribution) asset(tag Tag, stem string, desc platform.Descriptor) Asset {
	ext := platform.ArchiveExt(desc)
	filename := stem + "." + ext
	u := d.BaseURL + "/" + url.PathEscape(tag.Name) + "/" + url.PathEscape(filename)
	format, _ := archive.ParseFormat(ext)
	return Asset{
		URL:         u,
		ChecksumURL: u + d.ChecksumSuffix,
		Filename:    filename,
		Format:      format,
	}
}

var pluginNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ValidatePluginName rejects names that could escape a directory or
// break artifact naming.
func ValidatePluginName(name string) error {
	if !pluginNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return &ResolverError{
			Type:    ErrTypeValidation,
			Source:  "catalog",
			Message: fmt.Sprintf("invalid plugin name %q", name),
		}
	}
	return nil
}

// PluginAsset is a plugin artifact name split into its parts.
type PluginAsset struct {
	Name    string
	Version string
	Token   string
}

// pluginVersionPattern matches "<name>-<version>-<token>" after the plugin
// package prefix and extension are removed. Pre-releases are limited to
// alpha/beta/rc so a dashed token is not read as one.
var pluginVersionPattern = regexp.MustCompile(
	`^(.+?)-([0-9]+\.[0-9]+\.[0-9]+(?:-(?:alpha|beta|rc)(?:\.?[0-9]+)*)?)-(.+)$`)

// ParsePluginAsset splits a plugin artifact filename such as
// WasmEdge-plugin-wasi_nn-ggml-0.14.1-ubuntu20_04_x86_64.tar.gz.
func (d Distribution) ParsePluginAsset(filename string) (PluginAsset, bool) {
	rest, ok := strings.CutPrefix(filename, d.PluginPackage+"-")
	if !ok {
		return PluginAsset{}, false
	}
	format, ok := archive.DetectFormat(rest)
	if !ok {
		return PluginAsset{}, false
	}
	rest = strings.TrimSuffix(rest, format.Extension())

	m := pluginVersionPattern.FindStringSubmatch(rest)
	if m == nil {
		return PluginAsset{}, false
	}
	return PluginAsset{Name: m[1], Version: m[2], Token: m[3]}, true
}

// AvailablePlugins returns the sorted, de-duplicated plugin names among
// assets that are published for any of tokens.
func (d Distribution) AvailablePlugins(assets []string, tokens ...string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range assets {
		p, ok := d.ParsePluginAsset(a)
		if !ok || !slices.Contains(tokens, p.Token) || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// PluginPreference describes which build variants suit the host.
type PluginPreference struct {
	// CUDA favors "-cuda" builds; set when a CUDA driver is available.
	CUDA bool

	// NoAVX favors "-noavx" builds; set on x86_64 CPUs without AVX.
	NoAVX bool
}

func (p PluginPreference) rank(name string) int {
	switch {
	case p.CUDA && strings.HasSuffix(name, "-cuda"):
		return 0
	case p.NoAVX && strings.HasSuffix(name, "-noavx"):
		return 1
	case strings.Contains(name, "ggml"):
		return 2
	default:
		return 3
	}
}

// OrderPlugins returns names with the variants suited to the host first:
// CUDA builds, then builds without AVX, then the other ggml builds, then
// everything else. Ties keep alphabetical order.
func OrderPlugins(names []string, p PluginPreference) []string {
	out := slices.Clone(names)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := p.rank(out[i]), p.rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

// RecommendedPlugins returns the variants among names that the host should
// prefer over the generic build. CUDA builds win over builds without AVX.
func RecommendedPlugins(names []string, p PluginPreference) []string {
	var out []string
	for _, n := range names {
		switch {
		case p.CUDA && strings.HasSuffix(n, "-cuda"):
			out = append(out, n)
		case p.NoAVX && !p.CUDA && strings.HasSuffix(n, "-noavx"):
			out = append(out, n)
		}
	}
	return out
}
