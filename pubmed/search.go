package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type esearchResponse struct {
	Result struct {
		Count   string   `json:"count"`
		IDList  []string `json:"idlist"`
		ErrList struct {
			PhraseNotFound []string `json:"phrasesnotfound"`
		} `json:"errorlist"`
	} `json:"esearchresult"`
}

// Search returns up to retmax PMIDs for term, in the order ESearch ranks them
func (c *Client) Search(ctx context.Context, term string, retmax int, sort string) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []string{}, nil
	}
	if sort == "" {
		sort = "relevance"
	}

	params := url.Values{}
	params.Set("retmode", "json")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("sort", sort)

	body, err := c.get(ctx, "esearch", params)
	if err != nil {
		return nil, err
	}

	var decoded esearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode esearch response: %v", ErrUpstreamUnavailable, err)
	}
	if decoded.Result.IDList == nil {
		return []string{}, nil
	}
	return decoded.Result.IDList, nil
}
