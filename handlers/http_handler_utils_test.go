package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/drugcheck-api/alternatives"
	"github.com/giygas/drugcheck-api/compatibility"
	"github.com/giygas/drugcheck-api/interfaces"
	"github.com/giygas/drugcheck-api/patients"
	"github.com/giygas/drugcheck-api/validation"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeChecker struct {
	report compatibility.Report
	err    error
	got    compatibility.Request
	calls  int
}

func (f *fakeChecker) Check(_ context.Context, req compatibility.Request) (compatibility.Report, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return compatibility.Report{}, f.err
	}
	r := f.report
	r.Input = req.Normalize()
	return r, nil
}

type fakeSuggester struct {
	result alternatives.Result
	err    error
	got    alternatives.Request
	calls  int
}

func (f *fakeSuggester) Suggest(_ context.Context, req alternatives.Request) (alternatives.Result, error) {
	f.calls++
	f.got = req
	return f.result, f.err
}

type fakeHealth struct {
	status string
}

func (f *fakeHealth) HealthCheck() (string, map[string]any, int) {
	return f.status, map[string]any{"patients": 3}, http.StatusOK
}

func (f *fakeHealth) NextReload() time.Time { return time.Time{} }

const testPatientsCSV = `id,name,age,conditions
1,Ana Ruiz,54,Asthma
2,"Brown, Sam",61,Hypertension; Type 2 diabetes
42,Kim Lee,37,
`

func newTestStore(t testing.TB) *patients.Store {
	t.Helper()
	table, err := patients.ParseCSV(strings.NewReader(testPatientsCSV), "test.csv", "id")
	if err != nil {
		t.Fatalf("Failed to parse test patients: %v", err)
	}
	return patients.NewStoreFromTable(table)
}

// handlerDeps groups the fakes so tests can override one at a time
type handlerDeps struct {
	checker   *fakeChecker
	suggester *fakeSuggester
	store     interfaces.PatientStore
	health    *fakeHealth
}

func newTestHandler(t testing.TB) (*HTTPHandlerImpl, *handlerDeps) {
	t.Helper()
	deps := &handlerDeps{
		checker: &fakeChecker{report: compatibility.Report{
			Result: compatibility.Result{
				Verdict:        compatibility.VerdictCaution,
				Reasons:        []string{"Label warns about bleeding risk"},
				EvidenceQuotes: []string{"may cause stomach bleeding"},
			},
			LabelStatus: "found",
			LabelID:     "label-1",
		}},
		suggester: &fakeSuggester{result: alternatives.Result{
			Alternatives: []alternatives.Alternative{
				{Name: "Acetaminophen", Description: "Analgesic", Citation: "Smith et al. Pain relief. J Pain (2020). PMID: 111."},
			},
			Articles: []alternatives.ArticleRef{
				{PMID: "111", Title: "Pain relief", URL: "https://pubmed.ncbi.nlm.nih.gov/111/", Citation: "Smith et al. Pain relief. J Pain (2020). PMID: 111."},
			},
			Query: "pain",
		}},
		store:  newTestStore(t),
		health: &fakeHealth{status: "healthy"},
	}
	h := NewHTTPHandler(deps.checker, deps.suggester, deps.store, validation.NewValidator(), deps.health)
	return h, deps
}

// serve runs handler against a recorded request and decodes the JSON body
func serve(t *testing.T, handler http.HandlerFunc, method, target string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	handler(rr, req)

	var decoded map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("Response is not a JSON object: %v (body %q)", err, rr.Body.String())
	}
	return rr, decoded
}
