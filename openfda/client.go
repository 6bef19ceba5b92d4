package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/metrics"
)

var (
	// ErrLabelNotFound means openFDA answered but has no label for the drug
	ErrLabelNotFound = errors.New("no drug label found")
	// ErrUpstreamUnavailable means openFDA could not be reached or answered with garbage
	ErrUpstreamUnavailable = errors.New("openFDA unavailable")
	// ErrEmptyDrugName is returned before any call is made
	ErrEmptyDrugName = errors.New("drug name is empty")
)

// Label fetch outcomes reported alongside compatibility results
const (
	StatusFound       = "found"
	StatusNotFound    = "not_found"
	StatusUnavailable = "unavailable"
)

const maxBodySize = 8 << 20

// Client queries {baseURL}/drug/label.json
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a label client with a fixed per-call timeout
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchLabel returns the first label whose openfda.generic_name matches drug
func (c *Client) FetchLabel(ctx context.Context, drug string) (label Label, err error) {
	drug = strings.TrimSpace(strings.ReplaceAll(drug, `"`, ""))
	if drug == "" {
		return Label{}, ErrEmptyDrugName
	}

	start := time.Now()
	defer func() {
		outcome := StatusUnavailable
		if errors.Is(err, ErrLabelNotFound) {
			outcome = StatusNotFound
		}
		metrics.ObserveUpstream("openfda", "label", start, err, outcome)
	}()

	q := url.Values{}
	q.Set("search", fmt.Sprintf(`openfda.generic_name:"%s"`, drug))
	q.Set("limit", "1")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/drug/label.json?"+q.Encode(), nil)
	if err != nil {
		return Label{}, fmt.Errorf("%w: failed to build request: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "drugcheck-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Label{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Label{}, fmt.Errorf("%w: failed to read response: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return Label{}, fmt.Errorf("%w for %q", ErrLabelNotFound, drug)
	}
	if resp.StatusCode != http.StatusOK {
		return Label{}, fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var decoded labelResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Label{}, fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamUnavailable, err)
	}
	if decoded.Error != nil {
		if decoded.Error.Code == "NOT_FOUND" {
			return Label{}, fmt.Errorf("%w for %q", ErrLabelNotFound, drug)
		}
		return Label{}, fmt.Errorf("%w: %s: %s", ErrUpstreamUnavailable, decoded.Error.Code, decoded.Error.Message)
	}
	if len(decoded.Results) == 0 {
		return Label{}, fmt.Errorf("%w for %q", ErrLabelNotFound, drug)
	}

	return decoded.Results[0], nil
}

// FetchLabelOrPlaceholder never fails the caller: on any error it returns the
// placeholder label together with the classified error so it can be reported.
func (c *Client) FetchLabelOrPlaceholder(ctx context.Context, drug string) (Label, error) {
	label, err := c.FetchLabel(ctx, drug)
	if err != nil {
		return PlaceholderLabel(), err
	}
	return label, nil
}

// Status maps a FetchLabel error to the reported label status
func Status(err error) string {
	switch {
	case err == nil:
		return StatusFound
	case errors.Is(err, ErrLabelNotFound), errors.Is(err, ErrEmptyDrugName):
		return StatusNotFound
	default:
		return StatusUnavailable
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
