// Package alternatives suggests replacement drugs from PubMed evidence
package alternatives

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/interfaces"
	"github.com/giygas/drugcheck-api/llm"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
	"github.com/giygas/drugcheck-api/prompts"
	"github.com/giygas/drugcheck-api/pubmed"
)

const (
	DefaultK          = 5
	MinK              = 1
	MaxK              = 20
	DefaultRetryDelay = 800 * time.Millisecond

	snippetLimit = 800
	snippetKeep  = 780
	noArticles   = "(no articles found)"
)

var (
	ErrMissingQuery       = errors.New("missing required parameter: issue or search_hint")
	ErrTooFewAlternatives = errors.New("model returned too few alternatives")
)

// Request describes the clinical problem
type Request struct {
	Issue         string `json:"issue"`
	CurrentOption string `json:"current_option"`
	SearchHint    string `json:"search_hint"`
	K             int    `json:"k"`
}

// Alternative is one suggested drug
type Alternative struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Citation    string `json:"citation"`
}

// ArticleRef is the short form of an article shown next to the suggestions
type ArticleRef struct {
	PMID     string `json:"pmid"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Citation string `json:"citation"`
}

// Result of one Suggest call
type Result struct {
	Alternatives []Alternative
	Articles     []ArticleRef
	Query        string
	Retried      bool
}

// Options bound the answer and set the retry pause
type Options struct {
	Min        int
	Max        int
	RetryDelay time.Duration
	DefaultK   int
}

// Evaluator searches PubMed and asks the model for alternatives
type Evaluator struct {
	search    interfaces.LiteratureSearcher
	completer interfaces.Completer
	opts      Options
}

// NewEvaluator creates an evaluator. Zero bounds mean [1,4]; a zero
// RetryDelay retries without pausing.
func NewEvaluator(search interfaces.LiteratureSearcher, completer interfaces.Completer, opts Options) *Evaluator {
	if opts.Min < 1 {
		opts.Min = 1
	}
	if opts.Max < opts.Min {
		opts.Max = max(opts.Min, 4)
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.DefaultK == 0 {
		opts.DefaultK = DefaultK
	}
	return &Evaluator{search: search, completer: completer, opts: opts}
}

// ClampK applies the default for 0 and keeps k within [MinK, MaxK]
func ClampK(k, def int) int {
	if k == 0 {
		k = def
	}
	return min(max(k, MinK), MaxK)
}

// Suggest runs search, the single fallback search, bundling and the model call
func (e *Evaluator) Suggest(ctx context.Context, req Request) (Result, error) {
	req.Issue = strings.TrimSpace(req.Issue)
	req.SearchHint = strings.TrimSpace(req.SearchHint)
	req.CurrentOption = strings.TrimSpace(req.CurrentOption)
	if req.Issue == "" && req.SearchHint == "" {
		return Result{}, ErrMissingQuery
	}
	k := ClampK(req.K, e.opts.DefaultK)

	query := req.SearchHint
	if query == "" {
		query = req.Issue
	}

	res := Result{Query: query}
	pmids, err := e.search.Search(ctx, query, k, "relevance")
	if err != nil {
		return Result{}, err
	}

	// The retry searches the text before the first ';' and is skipped when that is empty
	if fallback := FallbackQuery(query); len(pmids) == 0 && fallback != "" {
		res.Retried = true
		metrics.ResearchRetries.Inc()

		if err := sleep(ctx, e.opts.RetryDelay); err != nil {
			return Result{}, err
		}
		logging.Debug("No PubMed results, retrying with shorter query", "query", query, "fallback", fallback)

		res.Query = fallback
		pmids, err = e.search.Search(ctx, fallback, k, "relevance")
		if err != nil {
			return Result{}, err
		}
	}

	bundles, err := e.search.BuildBundles(ctx, pmids)
	if err != nil {
		return Result{}, err
	}

	system, user, err := prompts.Alternatives(prompts.AlternativesData{
		Issue:         req.Issue,
		CurrentOption: req.CurrentOption,
		Count:         len(bundles),
		ArticlesBlock: FormatArticles(bundles),
		Min:           e.opts.Min,
		Max:           e.opts.Max,
	})
	if err != nil {
		return Result{}, err
	}

	raw, err := e.completer.Complete(ctx, llm.Prompt{
		System:     system,
		User:       user,
		SchemaName: "AlternativesOut",
		Schema:     Schema(e.opts.Min, e.opts.Max),
	})
	if err != nil {
		return Result{}, fmt.Errorf("alternatives completion failed: %w", err)
	}

	alts, err := e.parse(raw)
	if err != nil {
		return Result{}, err
	}

	res.Alternatives = alts
	res.Articles = make([]ArticleRef, 0, len(bundles))
	for _, b := range bundles {
		res.Articles = append(res.Articles, ArticleRef{PMID: b.PMID, Title: b.Title, URL: b.URL, Citation: b.Citation})
	}
	return res, nil
}

func (e *Evaluator) parse(raw string) ([]Alternative, error) {
	var out struct {
		Alternatives []Alternative `json:"alternatives"`
	}
	if err := llm.Decode(raw, &out); err != nil {
		return nil, err
	}

	alts := make([]Alternative, 0, len(out.Alternatives))
	for _, a := range out.Alternatives {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			continue
		}
		a.Description = strings.TrimSpace(a.Description)
		a.Citation = strings.TrimSpace(a.Citation)
		alts = append(alts, a)
	}

	if len(alts) > e.opts.Max {
		alts = alts[:e.opts.Max]
	}
	if len(alts) < e.opts.Min {
		return nil, fmt.Errorf("%w: got %d, want at least %d", ErrTooFewAlternatives, len(alts), e.opts.Min)
	}
	return alts, nil
}

// FallbackQuery is the text before the first ';'
func FallbackQuery(q string) string {
	before, _, _ := strings.Cut(q, ";")
	return strings.TrimSpace(before)
}

// Snippet flattens an abstract to one line and shortens it past 800 characters
func Snippet(abstract string) string {
	s := strings.TrimSpace(abstract)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")

	runes := []rune(s)
	if len(runes) > snippetLimit {
		return string(runes[:snippetKeep]) + " …"
	}
	return s
}

// FormatArticles renders the article block of the prompt
func FormatArticles(bundles []pubmed.ArticleBundle) string {
	if len(bundles) == 0 {
		return noArticles
	}
	blocks := make([]string, 0, len(bundles))
	for _, b := range bundles {
		blocks = append(blocks, fmt.Sprintf("- %s\n  %s\n  %s\n  %s", b.Title, Snippet(b.Abstract), b.Citation, b.URL))
	}
	return strings.Join(blocks, "\n\n")
}

// Schema is the JSON schema of the model answer with the list bounds applied
func Schema(minItems, maxItems int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"alternatives": map[string]any{
				"type":     "array",
				"minItems": minItems,
				"maxItems": maxItems,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string", "description": "Name of the recommended alternative drug."},
						"description": map[string]any{"type": "string", "description": "Why this is appropriate or better for the given issue, in 2-4 sentences."},
						"citation":    map[string]any{"type": "string", "description": "Concise citation for the key supporting article."},
					},
					"required":             []string{"name", "description", "citation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"alternatives"},
		"additionalProperties": false,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
