package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Summary is the ESummary document of one article
type Summary struct {
	UID             string      `json:"uid"`
	Title           string      `json:"title"`
	SortTitle       string      `json:"sorttitle"`
	FullJournalName string      `json:"fulljournalname"`
	Source          string      `json:"source"`
	PubDate         string      `json:"pubdate"`
	Authors         []Author    `json:"authors"`
	ArticleIDs      []ArticleID `json:"articleids"`
}

// Author as listed by ESummary, e.g. "Smith J"
type Author struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

// ArticleID is one external identifier (pubmed, doi, pmc, …)
type ArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// DisplayTitle falls back to the sort title when the title is blank
func (s Summary) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return strings.TrimSpace(s.SortTitle)
}

// Journal prefers the full journal name over the abbreviated source
func (s Summary) Journal() string {
	if j := strings.TrimSpace(s.FullJournalName); j != "" {
		return j
	}
	return strings.TrimSpace(s.Source)
}

// PMID is the uid, or the first listed article id
func (s Summary) PMID() string {
	if s.UID != "" {
		return s.UID
	}
	for _, id := range s.ArticleIDs {
		if id.IDType == "pubmed" && id.Value != "" {
			return id.Value
		}
	}
	if len(s.ArticleIDs) > 0 {
		return s.ArticleIDs[0].Value
	}
	return ""
}

// AuthorNames lists the author names in order
func (s Summary) AuthorNames() []string {
	names := make([]string, 0, len(s.Authors))
	for _, a := range s.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// Summaries fetches ESummary documents keyed by PMID
func (c *Client) Summaries(ctx context.Context, pmids []string) (map[string]Summary, error) {
	out := make(map[string]Summary, len(pmids))
	if len(pmids) == 0 {
		return out, nil
	}

	params := url.Values{}
	params.Set("retmode", "json")
	params.Set("id", strings.Join(pmids, ","))

	body, err := c.get(ctx, "esummary", params)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode esummary response: %v", ErrUpstreamUnavailable, err)
	}

	for key, raw := range decoded.Result {
		if key == "uids" {
			continue
		}
		var s Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			// ESummary reports per-id errors as {"uid": "...", "error": "..."}; skip anything else
			continue
		}
		if s.UID == "" {
			s.UID = key
		}
		out[key] = s
	}
	return out, nil
}
