package github

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dshills/revbot/internal/lifecycle"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com/"

const (
	defaultPerPage = 100
	defaultTimeout = 30 * time.Second
)

var _ lifecycle.CommentAPI = (*Client)(nil)

// Options configures a Client.
type Options struct {
	Token string
	// APIURL overrides the REST endpoint, e.g. for GitHub Enterprise
	// (https://ghe.example.com/api/v3).
	APIURL  string
	Timeout time.Duration
	// PerPage is the page size used when listing comments.
	PerPage int
	// Transport replaces the network transport under the cache and
	// rate-limit layers. Tests use it to reach an httptest server.
	Transport http.RoundTripper
}

// Client talks to the GitHub REST API through go-github.
type Client struct {
	gh      *gh.Client
	perPage int
	logger  *zap.Logger
}

// NewClient builds a client with the transport stack:
//  1. oauth2 (bearer token)
//  2. httpcache (ETag-based conditional request caching)
//  3. go-github-ratelimit (secondary rate limit handling)
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("GitHub token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cache := httpcache.NewMemoryCache()
	cacheTransport := &httpcache.Transport{Transport: base, Cache: cache, MarkCachedResponses: true}
	authTransport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		Base:   cacheTransport,
	}
	httpClient := github_ratelimit.NewClient(authTransport)
	httpClient.Timeout = opts.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	client := gh.NewClient(httpClient)
	if opts.APIURL != "" && opts.APIURL != DefaultAPIURL {
		u, err := url.Parse(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	return &Client{gh: client, perPage: perPage, logger: logger}, nil
}

// SplitRepo splits "owner/repo".
func SplitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

func (c *Client) logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}
	c.logger.Debug("github api call",
		zap.String("endpoint", endpoint),
		zap.Int("page", page),
		zap.Int("count", count),
		zap.Int("rate_remaining", resp.Rate.Remaining),
		zap.Int("rate_limit", resp.Rate.Limit),
		zap.Bool("cached", resp.Header.Get(httpcache.XFromCache) != ""),
	)
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		c.logger.Warn("github rate limit low",
			zap.Int("remaining", resp.Rate.Remaining),
			zap.Duration("reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second)),
		)
	}
}
