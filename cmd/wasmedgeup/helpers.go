package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/download"
	"github.com/tsukumogami/wasmedgeup/internal/errmsg"
	"github.com/tsukumogami/wasmedgeup/internal/install"
	"github.com/tsukumogami/wasmedgeup/internal/log"
	"github.com/tsukumogami/wasmedgeup/internal/platform"
	"github.com/tsukumogami/wasmedgeup/internal/progress"
	"github.com/tsukumogami/wasmedgeup/internal/secrets"
	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
	"github.com/tsukumogami/wasmedgeup/internal/version"
)

// printInfo prints an informational message unless quiet mode is enabled
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is enabled
func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printJSON marshals the given value to JSON and prints it to stdout
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exitWithCode(ExitGeneral)
	}
}

// printError prints an error to stderr with suggestions if available.
func printError(err error, ctx *errmsg.ErrorContext) {
	errmsg.Fprint(os.Stderr, err, ctx)
}

// exitOnError prints err and exits with the code for its kind.
func exitOnError(err error, ctx *errmsg.ErrorContext) {
	if err == nil {
		return
	}
	printError(err, ctx)
	exitWithCode(exitCodeFor(err))
}

// loadConfig returns the directory layout, honoring --path, and the user
// settings stored under it.
func loadConfig() (*config.Config, *userconfig.Config, error) {
	var cfg *config.Config
	if pathFlag != "" {
		home, err := filepath.Abs(pathFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --path: %w", err)
		}
		cfg = config.New(home)
	} else {
		var err error
		cfg, err = config.DefaultConfig()
		if err != nil {
			return nil, nil, err
		}
	}

	ucfg, err := userconfig.LoadFile(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ucfg, nil
}

// platformFlags are the --os/--arch/--libc overrides.
type platformFlags struct {
	os, arch, libc string
}

func (p *platformFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.os, "os", "", "Target operating system (linux, darwin, windows, ubuntu)")
	cmd.Flags().StringVar(&p.arch, "arch", "", "Target architecture (x86_64, aarch64)")
	cmd.Flags().StringVar(&p.libc, "libc", "", "Target C library on linux (glibc, musl)")
}

func (p *platformFlags) overrides() platform.Overrides {
	return platform.Overrides{OS: p.os, Arch: p.arch, Libc: p.libc}
}

// managerOptions carries per-command settings into newManager.
type managerOptions struct {
	platform platform.Overrides
	timeout  time.Duration
}

// newManager wires the install manager: a cached GitHub tag catalog, the
// release distribution (or the configured mirror) and a fetcher reporting
// progress to the terminal.
func newManager(opts managerOptions) (*install.Manager, error) {
	cfg, ucfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	owner, repo, err := ucfg.CatalogOwnerRepo()
	if err != nil {
		return nil, err
	}
	logger := log.Default()

	catalogOpts := []version.CatalogOption{version.WithLogger(logger)}
	if token, err := secrets.Get(ucfg, secrets.GitHubToken); err == nil {
		catalogOpts = append(catalogOpts, version.WithToken(token))
	}
	if ucfg.CatalogAPIURL != "" {
		catalogOpts = append(catalogOpts, version.WithAPIURL(ucfg.CatalogAPIURL))
	}
	gh := version.NewGitHubCatalog(owner, repo, catalogOpts...)
	catalog := version.NewCachedCatalog(gh, gh.Source(), cfg.CacheDir, version.DefaultCacheTTL)

	baseURL := ucfg.ReleaseBaseURL
	if baseURL == "" {
		baseURL = version.GitHubReleasesURL(owner, repo)
	}

	fetchOpts := []download.Option{
		download.WithLogger(logger),
		download.WithProgress(progress.New(quietFlag)),
		download.WithAllowHTTP(strings.HasPrefix(baseURL, "http://")),
	}
	if opts.timeout > 0 {
		fetchOpts = append(fetchOpts, download.WithTimeout(opts.timeout))
	}

	return install.New(cfg,
		install.WithCatalog(catalog),
		install.WithDistribution(version.NewDistribution(baseURL)),
		install.WithFetcher(download.NewFetcher(fetchOpts...)),
		install.WithPlatformOverrides(opts.platform),
		install.WithFetchRetries(ucfg.FetchRetries),
		install.WithLockRetries(ucfg.LockRetries),
		install.WithLogger(logger),
	), nil
}

// splitVersionArg splits "name@version" into its parts.
func splitVersionArg(arg string) (string, string) {
	name, ver, _ := strings.Cut(arg, "@")
	return name, ver
}

// canonical maps "v0.14.0" to "0.14.0"; unparsable input is returned as is.
func canonical(v string) string {
	if tag, err := version.ParseTag(v); err == nil {
		return tag.String()
	}
	return v
}
