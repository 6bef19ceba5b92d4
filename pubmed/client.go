// Package pubmed is a small client for the NCBI E-utilities endpoints used to
// find and describe PubMed articles.
package pubmed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/metrics"
	"golang.org/x/time/rate"
)

// ErrUpstreamUnavailable wraps every transport, status or decode failure
var ErrUpstreamUnavailable = errors.New("PubMed unavailable")

const (
	// DefaultBaseURL is the public E-utilities root
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	articleURL     = "https://pubmed.ncbi.nlm.nih.gov/%s/"
	maxBodySize    = 16 << 20
)

// Options configures a Client
type Options struct {
	BaseURL string
	APIKey  string
	Tool    string
	Email   string
	Timeout time.Duration
	// RequestsPerSecond overrides the NCBI default of 3 (10 with an API key)
	RequestsPerSecond float64
}

// Client issues throttled E-utilities requests
type Client struct {
	baseURL    string
	apiKey     string
	tool       string
	email      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client; zero options fall back to NCBI defaults
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 3
		if opts.APIKey != "" {
			rps = 10
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		tool:       opts.Tool,
		email:      opts.Email,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// get performs one E-utilities call and returns the raw body
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (body []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveUpstream("pubmed", endpoint, start, err, "unavailable")
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	params.Set("db", "pubmed")
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	endpointURL := fmt.Sprintf("%s/%s.fcgi?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build %s request: %v", ErrUpstreamUnavailable, endpoint, err)
	}
	req.Header.Set("User-Agent", "drugcheck-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s response: %v", ErrUpstreamUnavailable, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstreamUnavailable, endpoint, resp.StatusCode)
	}
	return body, nil
}

// ArticleURL is the public PubMed page of pmid
func ArticleURL(pmid string) string {
	return fmt.Sprintf(articleURL, pmid)
}
