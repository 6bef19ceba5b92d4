package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/alternatives"
	"github.com/giygas/drugcheck-api/compatibility"
	"github.com/giygas/drugcheck-api/interfaces"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/patients"
	"github.com/giygas/drugcheck-api/pubmed"
	"github.com/giygas/drugcheck-api/validation"
	"github.com/google/uuid"
)

// CompatibilityChecker produces a verdict for one patient context
type CompatibilityChecker interface {
	Check(ctx context.Context, req compatibility.Request) (compatibility.Report, error)
}

// AlternativesSuggester proposes literature-backed alternatives
type AlternativesSuggester interface {
	Suggest(ctx context.Context, req alternatives.Request) (alternatives.Result, error)
}

// HTTPHandlerImpl serves the drugcheck routes
type HTTPHandlerImpl struct {
	checker   CompatibilityChecker
	suggester AlternativesSuggester
	patients  interfaces.PatientStore
	validator interfaces.InputValidator
	health    interfaces.HealthChecker
	startTime time.Time
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	checker CompatibilityChecker,
	suggester AlternativesSuggester,
	store interfaces.PatientStore,
	validator interfaces.InputValidator,
	health interfaces.HealthChecker,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		checker:   checker,
		suggester: suggester,
		patients:  store,
		validator: validator,
		health:    health,
		startTime: time.Now(),
	}
}

// HealthCheck handles GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, code := h.health.HealthCheck()
	data["uptime"] = formatUptimeHuman(time.Since(h.startTime))

	message := "drugcheck backend is running"
	if status != "healthy" {
		message = "drugcheck backend is running with reduced functionality"
	}

	RespondWithJSON(w, code, map[string]any{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// APIInfo handles GET /api
func (h *HTTPHandlerImpl) APIInfo(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the drugcheck API",
		"version": APIVersion,
		"endpoints": []string{
			"/health - Health check",
			"/api - API information",
			"/api/data - Sample data endpoint",
			"/api/compatibility - Drug compatibility verdict",
			"/api/research - Literature-backed alternatives",
			"/api/user - Patient lookup",
			"/metrics - Prometheus metrics",
		},
	})
}

type sampleItem struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GetData handles GET /api/data
func (h *HTTPHandlerImpl) GetData(w http.ResponseWriter, r *http.Request) {
	items := []sampleItem{
		{ID: 1, Name: "Sample Item 1", Description: "This is a sample item"},
		{ID: 2, Name: "Sample Item 2", Description: "This is another sample item"},
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// PostData handles POST /api/data. Any non-empty JSON value other than null is accepted.
func (h *HTTPHandlerImpl) PostData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "No JSON data provided"})
		return
	}

	var received any
	if err := json.Unmarshal(body, &received); err != nil || isEmptyJSON(received) {
		RespondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "No JSON data provided"})
		return
	}

	RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message":       "Data received successfully",
		"received_data": received,
		"id":            uuid.NewString(),
	})
}

func isEmptyJSON(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

// Compatibility handles GET /api/compatibility
func (h *HTTPHandlerImpl) Compatibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	drug := strings.TrimSpace(q.Get("drug"))
	if drug == "" {
		respondFailure(w, http.StatusBadRequest, compatibility.ErrMissingDrug.Error(), nil)
		return
	}
	if err := h.validator.ValidateDrugName(drug); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	req := compatibility.Request{
		Drug:        drug,
		Allergies:   validation.SplitList(q.Get("allergies")),
		Conditions:  validation.SplitList(q.Get("conditions")),
		OngoingMeds: validation.SplitList(q.Get("ongoingMeds")),
	}
	lists := []struct {
		field string
		items []string
	}{
		{"allergies", req.Allergies},
		{"conditions", req.Conditions},
		{"ongoingMeds", req.OngoingMeds},
	}
	for _, l := range lists {
		if err := h.validator.ValidateList(l.field, l.items); err != nil {
			respondFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	report, err := h.checker.Check(r.Context(), req)
	if err != nil {
		if errors.Is(err, compatibility.ErrMissingDrug) {
			respondFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		logging.Error("Compatibility check failed", "drug", drug, "error", err)
		respondFailure(w, http.StatusInternalServerError, "Failed to evaluate compatibility", err)
		return
	}

	body := map[string]any{
		"ok":           true,
		"input":        report.Input,
		"result":       report.Result,
		"label_status": report.LabelStatus,
	}
	if report.LabelID != "" {
		body["label_id"] = report.LabelID
	}
	if report.LabelError != "" {
		body["label_error"] = report.LabelError
	}
	RespondWithJSON(w, http.StatusOK, body)
}

// Research handles GET /api/research
func (h *HTTPHandlerImpl) Research(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := alternatives.Request{
		Issue:         strings.TrimSpace(q.Get("issue")),
		CurrentOption: strings.TrimSpace(q.Get("current_option")),
		SearchHint:    strings.TrimSpace(q.Get("search_hint")),
	}
	if req.Issue == "" && req.SearchHint == "" {
		respondFailure(w, http.StatusBadRequest, alternatives.ErrMissingQuery.Error(), nil)
		return
	}

	fields := []struct {
		name  string
		value string
	}{
		{"issue", req.Issue},
		{"current_option", req.CurrentOption},
		{"search_hint", req.SearchHint},
	}
	for _, f := range fields {
		if err := h.validator.ValidateFreeText(f.name, f.value); err != nil {
			respondFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	k, err := validation.ParseK(q.Get("k"))
	if err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	req.K = k

	result, err := h.suggester.Suggest(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, alternatives.ErrMissingQuery):
			respondFailure(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, pubmed.ErrUpstreamUnavailable):
			logging.Warn("Literature search unavailable", "error", err)
			respondFailure(w, http.StatusBadGateway, "Literature search unavailable", err)
		default:
			logging.Error("Alternatives generation failed", "error", err)
			respondFailure(w, http.StatusInternalServerError, "Failed to generate alternatives", err)
		}
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"input": req,
		"result": map[string]any{
			"alternatives": result.Alternatives,
		},
		"articles": result.Articles,
		"query":    result.Query,
		"retried":  result.Retried,
	})
}

// User handles GET /api/user
func (h *HTTPHandlerImpl) User(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		respondFailure(w, http.StatusBadRequest, "missing required parameter: id", nil)
		return
	}
	if err := h.validator.ValidatePatientID(id); err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	record, err := h.patients.Lookup(id)
	switch {
	case errors.Is(err, patients.ErrPatientNotFound):
		RespondWithJSON(w, http.StatusNotFound, map[string]any{
			"ok":    false,
			"error": "user not found",
			"id":    id,
		})
		return
	case err != nil:
		logging.Error("Patient lookup failed", "error", err)
		respondFailure(w, http.StatusInternalServerError, "Patient data unavailable", err)
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": record,
	})
}
