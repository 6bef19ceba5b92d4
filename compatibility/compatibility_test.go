package compatibility

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/giygas/drugcheck-api/llm"
	"github.com/giygas/drugcheck-api/openfda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLabels struct {
	label openfda.Label
	err   error
	drugs []string
}

func (f *fakeLabels) FetchLabel(_ context.Context, drug string) (openfda.Label, error) {
	f.drugs = append(f.drugs, drug)
	return f.label, f.err
}

func (f *fakeLabels) FetchLabelOrPlaceholder(ctx context.Context, drug string) (openfda.Label, error) {
	label, err := f.FetchLabel(ctx, drug)
	if err != nil {
		return openfda.PlaceholderLabel(), err
	}
	return label, nil
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []llm.Prompt
}

func (f *fakeCompleter) Complete(_ context.Context, p llm.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeCompleter) Model() string { return "fake" }

func TestCheckUsesLabelAndPatientContext(t *testing.T) {
	labels := &fakeLabels{label: openfda.Label{ID: "lbl-1", Warnings: []string{"Reye's syndrome"}}}
	completer := &fakeCompleter{reply: `{"verdict":"PROCEED WITH CAUTION","reasons":["a","b"],"evidence_quotes":["Reye's syndrome"]}`}

	report, err := NewEvaluator(labels, completer).Check(context.Background(), Request{
		Drug:       "  aspirin ",
		Conditions: []string{"Scoliosis"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"aspirin"}, labels.drugs)
	assert.Equal(t, VerdictCaution, report.Result.Verdict)
	assert.Equal(t, openfda.StatusFound, report.LabelStatus)
	assert.Equal(t, "lbl-1", report.LabelID)
	assert.Equal(t, []string{}, report.Input.Allergies)
	assert.Equal(t, []string{}, report.Input.OngoingMeds)

	require.Len(t, completer.prompts, 1)
	p := completer.prompts[0]
	assert.Equal(t, "CompatibilityResult", p.SchemaName)
	assert.Contains(t, p.User, "ProposedDrug: aspirin")
	assert.Contains(t, p.User, "PatientAllergies: (none)")
	assert.Contains(t, p.User, "PatientConditions: Scoliosis")
	assert.Contains(t, p.User, `"warnings":["Reye's syndrome"]`)
	assert.Contains(t, p.System, "STRONGLY ADVISE AGAINST")
}

func TestCheckPromptCarriesFullLabel(t *testing.T) {
	var label openfda.Label
	require.NoError(t, json.Unmarshal([]byte(`{"id":"lbl-2","dosage_and_administration":["Reduce dose in renal impairment."]}`), &label))
	completer := &fakeCompleter{reply: `{"verdict":"PROCEED WITH CAUTION","reasons":["a","b"],"evidence_quotes":[]}`}

	_, err := NewEvaluator(&fakeLabels{label: label}, completer).Check(context.Background(), Request{Drug: "ibuprofen"})
	require.NoError(t, err)
	assert.Contains(t, completer.prompts[0].User, `"dosage_and_administration":["Reduce dose in renal impairment."]`)
}

func TestCheckDegradesToPlaceholderLabel(t *testing.T) {
	tests := []struct {
		name       string
		labelErr   error
		wantStatus string
	}{
		{"not found", openfda.ErrLabelNotFound, openfda.StatusNotFound},
		{"unavailable", openfda.ErrUpstreamUnavailable, openfda.StatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{reply: `{"verdict":"SAFE TO PROCEED","reasons":["no label text"],"evidence_quotes":[]}`}
			report, err := NewEvaluator(&fakeLabels{err: tt.labelErr}, completer).Check(context.Background(), Request{Drug: "zzz"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, report.LabelStatus)
			assert.NotEmpty(t, report.LabelError)
			assert.Empty(t, report.LabelID)
			assert.Contains(t, completer.prompts[0].User, `{"id":"","openfda":{}}`)
		})
	}
}

func TestCheckMissingDrug(t *testing.T) {
	completer := &fakeCompleter{}
	_, err := NewEvaluator(&fakeLabels{}, completer).Check(context.Background(), Request{Drug: "   "})
	assert.ErrorIs(t, err, ErrMissingDrug)
	assert.Empty(t, completer.prompts, "no model call without a drug")
}

func TestCheckCompletionError(t *testing.T) {
	completer := &fakeCompleter{err: llm.ErrProvider}
	_, err := NewEvaluator(&fakeLabels{}, completer).Check(context.Background(), Request{Drug: "aspirin"})
	assert.ErrorIs(t, err, llm.ErrProvider)
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, r Result)
	}{
		{
			name: "valid",
			raw:  `{"verdict":"STRONGLY ADVISE AGAINST","reasons":["allergy"],"evidence_quotes":["do not use"]}`,
			check: func(t *testing.T, r Result) {
				assert.Equal(t, VerdictAgainst, r.Verdict)
			},
		},
		{
			name: "reasons truncated to four",
			raw:  `{"verdict":"SAFE TO PROCEED","reasons":["1","2","3","4","5","6"],"evidence_quotes":[]}`,
			check: func(t *testing.T, r Result) {
				assert.Equal(t, []string{"1", "2", "3", "4"}, r.Reasons)
			},
		},
		{
			name: "missing lists become empty",
			raw:  `{"verdict":"SAFE TO PROCEED"}`,
			check: func(t *testing.T, r Result) {
				assert.NotNil(t, r.Reasons)
				assert.NotNil(t, r.EvidenceQuotes)
			},
		},
		{name: "unknown verdict", raw: `{"verdict":"MAYBE","reasons":[],"evidence_quotes":[]}`, wantErr: ErrInvalidVerdict},
		{name: "lowercase verdict", raw: `{"verdict":"safe to proceed","reasons":[],"evidence_quotes":[]}`, wantErr: ErrInvalidVerdict},
		{name: "not json", raw: `SAFE TO PROCEED`, wantErr: llm.ErrMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResult(tt.raw)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestSchemaEnumMatchesVerdicts(t *testing.T) {
	props := Schema()["properties"].(map[string]any)
	verdict := props["verdict"].(map[string]any)
	assert.Equal(t, Verdicts(), verdict["enum"])
	assert.Equal(t, false, Schema()["additionalProperties"])
	reasons := props["reasons"].(map[string]any)
	assert.Equal(t, MinReasons, reasons["minItems"])
	assert.Equal(t, MaxReasons, reasons["maxItems"])
	for _, v := range Verdicts() {
		assert.Equal(t, strings.ToUpper(v), v)
	}
}
