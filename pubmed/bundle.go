package pubmed

import (
	"context"
	"fmt"
	"strings"

	"github.com/giygas/drugcheck-api/logging"
	"golang.org/x/sync/errgroup"
)

// ArticleBundle aggregates what is known about one article
type ArticleBundle struct {
	PMID        string   `json:"pmid"`
	Title       string   `json:"title"`
	Journal     string   `json:"journal"`
	PubDate     string   `json:"pubdate"`
	Authors     []string `json:"authors"`
	FirstAuthor string   `json:"first_author"`
	Citation    string   `json:"citation"`
	Abstract    string   `json:"abstract"`
	URL         string   `json:"url"`
}

// FormatCitation renders "<first author> et al. <title>. <journal> (<year>). PMID: <id>."
// The author part is left out when the summary lists no authors.
func FormatCitation(s Summary) string {
	year := ""
	if fields := strings.Fields(s.PubDate); len(fields) > 0 {
		year = fields[0]
	}

	citation := fmt.Sprintf("%s. %s (%s). PMID: %s.", s.DisplayTitle(), s.Journal(), year, s.PMID())
	if len(s.Authors) == 0 {
		return citation
	}

	first := s.Authors[0].Name
	if first == "" {
		first = s.Authors[0].AuthType
	}
	if first == "" {
		first = "Author"
	}
	return first + " et al. " + citation
}

// BuildBundles fetches summaries and records concurrently and assembles one
// bundle per PMID, in the given order. Either fetch failing fails the call
// with ErrUpstreamUnavailable.
func (c *Client) BuildBundles(ctx context.Context, pmids []string) ([]ArticleBundle, error) {
	if len(pmids) == 0 {
		return []ArticleBundle{}, nil
	}

	var (
		summaries map[string]Summary
		records   map[string]Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaries, err = c.Summaries(gctx, pmids)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = c.FetchRecords(gctx, pmids)
		if err != nil {
			logging.Warn("Abstract fetch failed", "error", err, "pmids", len(pmids))
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundles := make([]ArticleBundle, 0, len(pmids))
	for _, pmid := range pmids {
		s, hasSummary := summaries[pmid]
		rec := records[pmid]

		b := ArticleBundle{
			PMID:        pmid,
			Authors:     []string{},
			FirstAuthor: rec.FirstAuthor,
			Abstract:    rec.Abstract,
			URL:         ArticleURL(pmid),
		}
		if hasSummary {
			if s.UID == "" {
				s.UID = pmid
			}
			b.Title = s.DisplayTitle()
			b.Journal = s.Journal()
			b.PubDate = s.PubDate
			b.Authors = s.AuthorNames()
			b.Citation = FormatCitation(s)
			if b.FirstAuthor == "" && len(b.Authors) > 0 {
				b.FirstAuthor = b.Authors[0]
			}
		} else {
			b.Citation = FormatCitation(Summary{UID: pmid, Title: rec.Title})
		}
		if b.Title == "" {
			b.Title = rec.Title
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}
