// Package github implements the SourceProbe port for GitHub-hosted mirror
// sources using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceProbe = (*Probe)(nil)

// Probe checks GitHub source repositories before the first mirror clone.
type Probe struct {
	gh *gh.Client
}

// NewProbe creates a Probe with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// token may be empty; unauthenticated probing works for public sources at a
// lower rate limit.
func NewProbe(token string) *Probe {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Probe{gh: client}
}

// NewProbeWithHTTPClient creates a Probe with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewProbeWithHTTPClient(httpClient *http.Client, baseURL string) (*Probe, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	// go-github requires a trailing slash to resolve relative endpoints.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	return &Probe{gh: client}, nil
}

// Probe looks up the source repository and reports its default branch and
// visibility. A 404 maps to ErrSourceNotFound.
func (p *Probe) Probe(ctx context.Context, sourceURL string) (*driven.SourceInfo, error) {
	owner, repo, err := splitSourceURL(sourceURL)
	if err != nil {
		return nil, err
	}

	repository, resp, err := p.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, driven.ErrSourceNotFound)
		}
		return nil, fmt.Errorf("probing %s/%s: %w", owner, repo, err)
	}

	return &driven.SourceInfo{
		DefaultBranch: repository.GetDefaultBranch(),
		IsPrivate:     repository.GetPrivate(),
	}, nil
}

// splitSourceURL extracts owner and repo from a GitHub clone URL, accepting
// both https and ssh forms.
func splitSourceURL(sourceURL string) (string, string, error) {
	path := sourceURL
	switch {
	case strings.HasPrefix(sourceURL, "git@"):
		// git@github.com:owner/repo.git
		_, after, ok := strings.Cut(sourceURL, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid source URL %q", sourceURL)
		}
		path = after
	default:
		u, err := url.Parse(sourceURL)
		if err != nil {
			return "", "", fmt.Errorf("invalid source URL %q: %w", sourceURL, err)
		}
		path = strings.TrimPrefix(u.Path, "/")
	}

	path = strings.TrimSuffix(path, ".git")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid source URL %q: expected owner/repo", sourceURL)
	}
	return parts[0], parts[1], nil
}
