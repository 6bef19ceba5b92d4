// Package handlers provides the HTTP request handlers for the drugcheck API:
// health, API index, sample data, compatibility checks, literature-backed
// alternatives and patient lookup.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/drugcheck-api/logging"
)

// APIVersion is reported by GET /api
const APIVersion = "1.0.0"

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// respondFailure writes the {ok:false, error[, detail]} envelope used by the /api routes
func respondFailure(w http.ResponseWriter, code int, message string, err error) {
	body := map[string]any{
		"ok":    false,
		"error": message,
	}
	if err != nil {
		body["detail"] = err.Error()
	}
	RespondWithJSON(w, code, body)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// NotFound answers unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
}

// MethodNotAllowed answers known routes hit with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}
