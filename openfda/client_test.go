package openfda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aspirinLabel = `{
  "meta": {"last_updated": "2025-01-10", "results": {"skip": 0, "limit": 1, "total": 42}},
  "results": [{
    "id": "0a1b2c",
    "set_id": "set-123",
    "effective_time": "20240115",
    "openfda": {"generic_name": ["ASPIRIN"], "brand_name": ["Bayer"]},
    "warnings": ["Reye's syndrome: Children and teenagers should not use this medicine."],
    "do_not_use": ["if you are allergic to aspirin or any other pain reliever"],
    "ask_doctor": ["stomach bleeding warning applies to you"]
  }]
}`

func TestFetchLabelFound(t *testing.T) {
	var gotSearch, gotLimit, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		gotSearch = r.URL.Query().Get("search")
		gotLimit = r.URL.Query().Get("limit")
		gotKey = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(aspirinLabel))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", 5*time.Second)
	label, err := c.FetchLabel(context.Background(), `  "aspirin" `)
	require.NoError(t, err)

	assert.Equal(t, `openfda.generic_name:"aspirin"`, gotSearch)
	assert.Equal(t, "1", gotLimit)
	assert.Equal(t, "secret", gotKey)

	assert.Equal(t, "0a1b2c", label.ID)
	assert.Equal(t, []string{"ASPIRIN"}, label.OpenFDA.GenericName)
	assert.Len(t, label.Warnings, 1)
	assert.False(t, label.IsPlaceholder())
}

func TestFetchLabelReencodesOnlyPresentSections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(aspirinLabel))
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, "", time.Second).FetchLabel(context.Background(), "aspirin")
	require.NoError(t, err)

	raw, err := json.Marshal(label)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "warnings")
	assert.Contains(t, fields, "do_not_use")
	assert.NotContains(t, fields, "boxed_warning")
	assert.NotContains(t, fields, "precautions")
}

func TestFetchLabelForwardsEverySection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{
			"id": "x",
			"warnings": ["w"],
			"use_in_specific_populations": ["Reduce the dose in renal impairment."],
			"dosage_and_administration": ["Take 1 tablet every 4 hours."],
			"when_using": ["do not exceed the recommended dose"]
		}]}`))
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, "", time.Second).FetchLabel(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, label.Warnings)

	raw, err := json.Marshal(label)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "x",
		"warnings": ["w"],
		"use_in_specific_populations": ["Reduce the dose in renal impairment."],
		"dosage_and_administration": ["Take 1 tablet every 4 hours."],
		"when_using": ["do not exceed the recommended dose"]
	}`, string(raw))
}

func TestLabelWithoutRawUsesTypedSections(t *testing.T) {
	raw, err := json.Marshal(Label{ID: "lbl", Warnings: []string{"w"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"lbl","openfda":{},"warnings":["w"]}`, string(raw))
}

func TestFetchLabelErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantStatus string
	}{
		{"404 from openFDA", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"No matches found!"}}`, ErrLabelNotFound, StatusNotFound},
		{"empty results", http.StatusOK, `{"meta":{},"results":[]}`, ErrLabelNotFound, StatusNotFound},
		{"error payload with 200", http.StatusOK, `{"error":{"code":"NOT_FOUND","message":"x"}}`, ErrLabelNotFound, StatusNotFound},
		{"server error", http.StatusInternalServerError, `oops`, ErrUpstreamUnavailable, StatusUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrUpstreamUnavailable, StatusUnavailable},
		{"garbage body", http.StatusOK, `<html>`, ErrUpstreamUnavailable, StatusUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).FetchLabel(context.Background(), "aspirin")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, Status(err))
		})
	}
}

func TestFetchLabelUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).FetchLabel(context.Background(), "aspirin")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchLabelEmptyName(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", "", time.Second).FetchLabel(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyDrugName)
}

func TestFetchLabelOrPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, "", time.Second).FetchLabelOrPlaceholder(context.Background(), "aspirin")
	require.Error(t, err)
	assert.True(t, label.IsPlaceholder())
	if diff := cmp.Diff(PlaceholderLabel(), label); diff != "" {
		t.Errorf("placeholder mismatch (-want +got):\n%s", diff)
	}

	raw, err := json.Marshal(label)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"","openfda":{}}`, string(raw))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusFound, Status(nil))
	assert.Equal(t, StatusNotFound, Status(ErrEmptyDrugName))
	assert.Equal(t, StatusUnavailable, Status(context.DeadlineExceeded))
}
