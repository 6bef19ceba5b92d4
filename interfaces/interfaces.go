// Package interfaces defines the contracts between the drugcheck packages
// so evaluators, handlers and the scheduler can be tested with fakes.
package interfaces

import (
	"context"
	"time"

	"github.com/giygas/drugcheck-api/llm"
	"github.com/giygas/drugcheck-api/openfda"
	"github.com/giygas/drugcheck-api/patients"
	"github.com/giygas/drugcheck-api/pubmed"
)

// LabelFetcher retrieves drug label records.
// FetchLabelOrPlaceholder always returns a usable label; the error reports
// why the placeholder was used.
type LabelFetcher interface {
	FetchLabel(ctx context.Context, drug string) (openfda.Label, error)
	FetchLabelOrPlaceholder(ctx context.Context, drug string) (openfda.Label, error)
}

// LiteratureSearcher finds PubMed identifiers and assembles article bundles
type LiteratureSearcher interface {
	Search(ctx context.Context, term string, retmax int, sort string) ([]string, error)
	BuildBundles(ctx context.Context, pmids []string) ([]pubmed.ArticleBundle, error)
}

// Completer runs one schema-constrained completion
type Completer interface {
	Complete(ctx context.Context, p llm.Prompt) (string, error)
	Model() string
}

// PatientStore is the read-only patient handle plus the reload guard
type PatientStore interface {
	Lookup(id string) (patients.Record, error)
	Snapshot() *patients.Table
	Reload() error
	GetLastUpdated() time.Time
	LastError() string
	IsUpdating() bool
	BeginUpdate() bool
	EndUpdate()
}

// InputValidator checks user-supplied query values before any upstream call
type InputValidator interface {
	ValidateDrugName(name string) error
	ValidateList(field string, items []string) error
	ValidateFreeText(field, text string) error
	ValidatePatientID(id string) error
}

// Scheduler defines the contract for background reload jobs
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports service health for /health
type HealthChecker interface {
	// HealthCheck returns the status word, detail data and the HTTP status to answer with
	HealthCheck() (status string, data map[string]any, httpStatus int)

	// NextReload returns the next scheduled patient reload, zero when disabled
	NextReload() time.Time
}
