// Package compatibility decides whether a proposed drug suits a patient,
// grounded on the drug's openFDA label.
package compatibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/drugcheck-api/interfaces"
	"github.com/giygas/drugcheck-api/llm"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
	"github.com/giygas/drugcheck-api/openfda"
	"github.com/giygas/drugcheck-api/prompts"
)

// Verdicts the model may return
const (
	VerdictSafe    = "SAFE TO PROCEED"
	VerdictCaution = "PROCEED WITH CAUTION"
	VerdictAgainst = "STRONGLY ADVISE AGAINST"
)

// Reason count bounds given to the model; extra reasons are dropped
const (
	MinReasons = 2
	MaxReasons = 4
)

var (
	ErrMissingDrug    = errors.New("missing required parameter: drug")
	ErrInvalidVerdict = errors.New("model returned an invalid verdict")
)

// Verdicts lists the allowed verdicts
func Verdicts() []string {
	return []string{VerdictSafe, VerdictCaution, VerdictAgainst}
}

// Request is the patient context for one check
type Request struct {
	Drug        string   `json:"drug"`
	Allergies   []string `json:"allergies"`
	Conditions  []string `json:"conditions"`
	OngoingMeds []string `json:"ongoingMeds"`
}

// Result is the model's verdict
type Result struct {
	Verdict        string   `json:"verdict"`
	Reasons        []string `json:"reasons"`
	EvidenceQuotes []string `json:"evidence_quotes"`
}

// Report is a Result plus how the label lookup went
type Report struct {
	Input       Request
	Result      Result
	LabelStatus string
	LabelID     string
	LabelError  string
}

// Evaluator runs label fetch, prompt and validation
type Evaluator struct {
	labels    interfaces.LabelFetcher
	completer interfaces.Completer
}

// NewEvaluator creates an evaluator
func NewEvaluator(labels interfaces.LabelFetcher, completer interfaces.Completer) *Evaluator {
	return &Evaluator{labels: labels, completer: completer}
}

// Normalize trims the drug and turns nil lists into empty ones
func (r Request) Normalize() Request {
	return Request{
		Drug:        strings.TrimSpace(r.Drug),
		Allergies:   nonNil(r.Allergies),
		Conditions:  nonNil(r.Conditions),
		OngoingMeds: nonNil(r.OngoingMeds),
	}
}

// Check evaluates req. A failed label fetch does not fail the check: the
// placeholder label is used and the failure is reported in LabelStatus.
func (e *Evaluator) Check(ctx context.Context, req Request) (Report, error) {
	req = req.Normalize()
	if req.Drug == "" {
		return Report{}, ErrMissingDrug
	}

	label, labelErr := e.labels.FetchLabelOrPlaceholder(ctx, req.Drug)
	report := Report{
		Input:       req,
		LabelStatus: openfda.Status(labelErr),
		LabelID:     label.ID,
	}
	if labelErr != nil {
		report.LabelError = labelErr.Error()
		logging.Warn("Label unavailable, using placeholder",
			"drug", req.Drug,
			"label_status", report.LabelStatus,
			"error", labelErr)
	}

	labelJSON, err := json.Marshal(label)
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode label: %w", err)
	}

	system, user, err := prompts.Compatibility(prompts.CompatibilityData{
		Drug:        req.Drug,
		Allergies:   req.Allergies,
		Conditions:  req.Conditions,
		OngoingMeds: req.OngoingMeds,
		LabelJSON:   string(labelJSON),
	})
	if err != nil {
		return Report{}, err
	}

	raw, err := e.completer.Complete(ctx, llm.Prompt{
		System:     system,
		User:       user,
		SchemaName: "CompatibilityResult",
		Schema:     Schema(),
	})
	if err != nil {
		return Report{}, fmt.Errorf("compatibility completion failed: %w", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		return Report{}, err
	}

	report.Result = result
	metrics.CompatibilityVerdicts.WithLabelValues(result.Verdict).Inc()
	return report, nil
}

// ParseResult decodes and validates a model answer
func ParseResult(raw string) (Result, error) {
	var result Result
	if err := llm.Decode(raw, &result); err != nil {
		return Result{}, err
	}

	result.Verdict = strings.TrimSpace(result.Verdict)
	if !validVerdict(result.Verdict) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidVerdict, result.Verdict)
	}

	result.Reasons = nonNil(result.Reasons)
	if len(result.Reasons) > MaxReasons {
		result.Reasons = result.Reasons[:MaxReasons]
	}
	result.EvidenceQuotes = nonNil(result.EvidenceQuotes)
	return result, nil
}

// Schema is the JSON schema the model must answer with
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict": map[string]any{
				"type": "string",
				"enum": Verdicts(),
			},
			"reasons": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": MinReasons,
				"maxItems": MaxReasons,
			},
			"evidence_quotes": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"verdict", "reasons", "evidence_quotes"},
		"additionalProperties": false,
	}
}

func validVerdict(v string) bool {
	for _, allowed := range Verdicts() {
		if v == allowed {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
