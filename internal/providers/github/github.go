package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tabd/annotate/internal/capture"
	"github.com/tabd/annotate/internal/provenance"
)

const (
	DefaultAPIURL    = "https://api.github.com"
	DefaultUserAgent = "Tabd-Extension"
	acceptV3         = "application/vnd.github.v3+json"

	// maxBodyBytes bounds a single API response; blob payloads of change
	// logs are far smaller.
	maxBodyBytes = 32 << 20
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIURL       string
	Token        string
	UserAgent    string
	FetchTimeout time.Duration
	RateLimit    float64 // requests per second, 0 disables limiting
	RateBurst    int
}

// Client performs authenticated GET requests against the GitHub REST API.
type Client struct {
	apiURL      string
	apiRoot     *url.URL
	token       string
	userAgent   string
	httpClient  *http.Client
	RateLimiter *rate.Limiter
}

// NewClient creates a GitHub API client.
func NewClient(opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	c := &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.FetchTimeout},
	}
	if u, err := url.Parse(c.apiURL); err == nil && u.Host != "" {
		c.apiRoot = u
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.RateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// APIURL returns the API root the client was configured with.
func (c *Client) APIURL() string {
	return c.apiURL
}

// HasToken reports whether requests carry a bearer credential.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// FetchJSON GETs url and returns the raw JSON body. Non-2xx responses fail
// with *provenance.RequestFailedError; bodies that are not JSON fail with
// provenance.ErrMalformedData.
func (c *Client) FetchJSON(ctx context.Context, url string) (json.RawMessage, error) {
	body, err := c.get(ctx, url, acceptV3)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response from %s is not JSON", provenance.ErrMalformedData, url)
	}

	if capture.Enabled() {
		capture.WriteJSON("github-api", map[string]interface{}{
			"url":      url,
			"response": json.RawMessage(body),
		})
	}

	return body, nil
}

// FetchPage GETs an HTML page such as a pull request's files view.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	return c.get(ctx, pageURL, "text/html")
}

// underAPIRoot reports whether u has the API root's scheme and host and lies
// under its path.
func (c *Client) underAPIRoot(u *url.URL) bool {
	root := c.apiRoot
	if root == nil || u == nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, root.Scheme) || !strings.EqualFold(u.Host, root.Host) {
		return false
	}
	prefix := strings.TrimRight(root.Path, "/")
	return prefix == "" || u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if c.RateLimiter != nil {
		if err := c.RateLimiter.Wait(ctx); err != nil {
			return nil, &provenance.RequestFailedError{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provenance.RequestFailedError{URL: url, Err: err}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" && c.underAPIRoot(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("GitHub request failed")
		return nil, &provenance.RequestFailedError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("rate_remaining", resp.Header.Get("X-RateLimit-Remaining")).
		Msg("GitHub request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &provenance.RequestFailedError{Status: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &provenance.RequestFailedError{Status: resp.StatusCode, URL: url, Err: err}
	}
	return body, nil
}
