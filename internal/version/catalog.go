package version

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/tsukumogami/wasmedgeup/internal/config"
	"github.com/tsukumogami/wasmedgeup/internal/httputil"
	"github.com/tsukumogami/wasmedgeup/internal/log"
)

// Catalog lists the published release tags of the runtime.
type Catalog interface {
	ListTags(ctx context.Context) ([]Tag, error)
}

// AssetLister is implemented by catalogs that can list the files attached
// to a release.
type AssetLister interface {
	ReleaseAssets(ctx context.Context, tag string) ([]string, error)
}

// GitHubCatalog reads release tags from a GitHub repository.
type GitHubCatalog struct {
	client        *github.Client
	owner         string
	repo          string
	token         string
	authenticated bool
	maxPages      int
	apiURL        string
	logger        log.Logger
}

// CatalogOption configures a GitHubCatalog.
type CatalogOption func(*GitHubCatalog)

// WithGitHubClient replaces the GitHub API client (used by tests to point
// at a local server).
func WithGitHubClient(c *github.Client) CatalogOption {
	return func(g *GitHubCatalog) {
		g.client = c
	}
}

// WithLogger sets the logger for skipped tags and paging.
func WithLogger(l log.Logger) CatalogOption {
	return func(g *GitHubCatalog) {
		g.logger = l
	}
}

// WithMaxPages bounds how many 100-tag pages are read.
func WithMaxPages(n int) CatalogOption {
	return func(g *GitHubCatalog) {
		g.maxPages = n
	}
}

// WithAPIURL points the catalog at another GitHub API endpoint, such as a
// GitHub Enterprise server. An empty URL keeps api.github.com.
func WithAPIURL(u string) CatalogOption {
	return func(g *GitHubCatalog) {
		g.apiURL = u
	}
}

// NewHTTPClient creates the client used for catalog API requests. The
// timeout is configurable via WASMEDGEUP_API_TIMEOUT (default: 30s).
func NewHTTPClient() *http.Client {
	return httputil.NewSecureClient(httputil.ClientOptions{
		Timeout:   config.GetAPITimeout(),
		UserAgent: httputil.UserAgent(),
	})
}

// WithToken authenticates API requests with token, which raises the rate
// limit. An empty token leaves requests unauthenticated.
func WithToken(token string) CatalogOption {
	return func(g *GitHubCatalog) {
		g.token = token
	}
}

// NewGitHubCatalog creates a catalog for owner/repo. Without WithToken,
// GITHUB_TOKEN is used when set.
func NewGitHubCatalog(owner, repo string, opts ...CatalogOption) *GitHubCatalog {
	g := &GitHubCatalog{
		owner:    owner,
		repo:     repo,
		token:    os.Getenv(config.EnvGitHubToken),
		maxPages: 20,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		httpClient := NewHTTPClient()
		if g.token != "" {
			ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.token})
			httpClient = oauth2.NewClient(ctx, ts)
		}
		g.client = github.NewClient(httpClient)
		if g.apiURL != "" {
			if base, err := url.Parse(strings.TrimSuffix(g.apiURL, "/") + "/"); err == nil {
				g.client.BaseURL = base
			}
		}
	}
	g.authenticated = g.token != ""
	g.logger = log.OrDefault(g.logger)
	return g
}

// Source identifies the catalog, e.g. "github:WasmEdge/WasmEdge".
func (g *GitHubCatalog) Source() string {
	return fmt.Sprintf("github:%s/%s", g.owner, g.repo)
}

// ListTags returns every tag that parses as a version. Malformed tags are
// skipped and logged at debug level.
func (g *GitHubCatalog) ListTags(ctx context.Context) ([]Tag, error) {
	var names []string
	opts := &github.ListOptions{PerPage: 100}

	for page := 0; page < g.maxPages; page++ {
		tags, resp, err := g.client.Repositories.ListTags(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, g.wrapError(err, "failed to list tags")
		}
		for _, t := range tags {
			names = append(names, t.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	tags, skipped := ParseTags(names)
	for _, name := range skipped {
		g.logger.Debug("skipping tag that is not a version", "tag", name, "source", g.Source())
	}
	g.logger.Debug("listed catalog tags", "source", g.Source(), "valid", len(tags), "skipped", len(skipped))
	return tags, nil
}

// ReleaseAssets returns the file names attached to the release for tag.
func (g *GitHubCatalog) ReleaseAssets(ctx context.Context, tag string) ([]string, error) {
	release, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		return nil, g.wrapError(err, fmt.Sprintf("failed to get release %s", tag))
	}

	names := make([]string, 0, len(release.Assets))
	for _, a := range release.Assets {
		names = append(names, a.GetName())
	}
	return names, nil
}

// wrapError converts GitHub client errors into ResolverErrors.
func (g *GitHubCatalog) wrapError(err error, message string) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		msg := fmt.Sprintf("GitHub API rate limit exceeded (%d/%d remaining, resets at %s)",
			rateLimitErr.Rate.Remaining, rateLimitErr.Rate.Limit,
			rateLimitErr.Rate.Reset.Format("15:04:05"))
		if !g.authenticated {
			msg += "; requests are unauthenticated"
		}
		return &ResolverError{Type: ErrTypeRateLimit, Source: "github", Message: msg, Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &ResolverError{Type: ErrTypeRateLimit, Source: "github", Message: "GitHub secondary rate limit hit", Err: err}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		return &ResolverError{
			Type:    ErrTypeNotFound,
			Source:  "github",
			Message: fmt.Sprintf("%s: %s/%s not found", message, g.owner, g.repo),
			Err:     err,
		}
	}

	return WrapNetworkError(err, "github", message)
}
