// Package health provides health checking functionality for the drugcheck API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/drugcheck-api/interfaces"
)

// Options carries the static facts the report includes
type Options struct {
	LLMProvider string
	LLMModel    string
	StartTime   time.Time
	StaleAfter  time.Duration
	// NextRun returns the next scheduled patient reload; nil when reloads are disabled
	NextRun func() time.Time
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store interfaces.PatientStore
	opts  Options
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.PatientStore, opts Options) interfaces.HealthChecker {
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}
	return &HealthCheckerImpl{store: store, opts: opts}
}

// HealthCheck reports "healthy" or "degraded". Degraded means only the patient
// lookup is affected, so the HTTP status stays 200.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	table := h.store.Snapshot()
	lastUpdate := h.store.GetLastUpdated()
	isUpdating := h.store.IsUpdating()

	status = "healthy"
	httpStatus = http.StatusOK

	data = map[string]any{
		"uptime_seconds": math.Round(time.Since(h.opts.StartTime).Seconds()),
		"llm_provider":   h.opts.LLMProvider,
		"llm_model":      h.opts.LLMModel,
		"is_updating":    isUpdating,
	}

	switch {
	case table == nil:
		status = "degraded"
		data["patients"] = 0
		data["patients_error"] = "patient table not loaded"
		if lastErr := h.store.LastError(); lastErr != "" {
			data["patients_error"] = lastErr
		}

	default:
		dataAge := time.Since(lastUpdate)
		data["patients"] = table.Len()
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10

		if h.opts.NextRun != nil && h.opts.StaleAfter > 0 && dataAge > h.opts.StaleAfter {
			status = "degraded"
			data["patients_error"] = "patient table is stale"
		}
	}

	if next := h.NextReload(); !next.IsZero() {
		data["next_reload"] = next.Format(time.RFC3339)
	}

	return status, data, httpStatus
}

// NextReload returns the next scheduled patient reload, zero when disabled
func (h *HealthCheckerImpl) NextReload() time.Time {
	if h.opts.NextRun == nil {
		return time.Time{}
	}
	return h.opts.NextRun()
}
