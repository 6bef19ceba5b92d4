package health

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/giygas/drugcheck-api/patients"
)

// MockHealthStore for testing
type MockHealthStore struct {
	table       *patients.Table
	lastUpdated time.Time
	isUpdating  bool
	lastErr     string
}

func (m *MockHealthStore) Lookup(string) (patients.Record, error) {
	return patients.Record{}, patients.ErrTableUnavailable
}
func (m *MockHealthStore) Snapshot() *patients.Table { return m.table }
func (m *MockHealthStore) Reload() error             { return nil }
func (m *MockHealthStore) GetLastUpdated() time.Time { return m.lastUpdated }
func (m *MockHealthStore) LastError() string         { return m.lastErr }
func (m *MockHealthStore) IsUpdating() bool          { return m.isUpdating }
func (m *MockHealthStore) BeginUpdate() bool         { return true }
func (m *MockHealthStore) EndUpdate()                {}

func loadedStore(t *testing.T, age time.Duration) *MockHealthStore {
	t.Helper()
	table, err := patients.ParseCSV(strings.NewReader("id,name\n1,A\n2,B\n3,C\n"), "test", "id")
	if err != nil {
		t.Fatal(err)
	}
	return &MockHealthStore{table: table, lastUpdated: time.Now().Add(-age)}
}

func TestNewHealthChecker(t *testing.T) {
	checker := NewHealthChecker(&MockHealthStore{}, Options{})
	if checker == nil {
		t.Fatal("NewHealthChecker returned nil")
	}
	if _, ok := checker.(*HealthCheckerImpl); !ok {
		t.Error("NewHealthChecker should return *HealthCheckerImpl")
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	checker := NewHealthChecker(loadedStore(t, time.Hour), Options{
		LLMProvider: "openai",
		LLMModel:    "gpt-4o-mini",
		StartTime:   time.Now().Add(-90 * time.Second),
	})

	status, data, code := checker.HealthCheck()
	if status != "healthy" {
		t.Errorf("Expected healthy, got %s", status)
	}
	if code != http.StatusOK {
		t.Errorf("Expected 200, got %d", code)
	}
	if data["patients"] != 3 {
		t.Errorf("Expected 3 patients, got %v", data["patients"])
	}
	if data["llm_model"] != "gpt-4o-mini" {
		t.Errorf("Expected llm_model, got %v", data["llm_model"])
	}
	if uptime, ok := data["uptime_seconds"].(float64); !ok || uptime < 90 {
		t.Errorf("Expected uptime >= 90s, got %v", data["uptime_seconds"])
	}
	if _, ok := data["last_update"]; !ok {
		t.Error("Expected last_update field")
	}
	if _, ok := data["next_reload"]; ok {
		t.Error("next_reload should be absent when reloads are disabled")
	}
}

func TestHealthCheck_Degraded_NoTable(t *testing.T) {
	checker := NewHealthChecker(&MockHealthStore{lastErr: "open data/patients.csv: no such file"}, Options{})

	status, data, code := checker.HealthCheck()
	if status != "degraded" {
		t.Errorf("Expected degraded, got %s", status)
	}
	if code != http.StatusOK {
		t.Errorf("Degraded must still answer 200, got %d", code)
	}
	if data["patients"] != 0 {
		t.Errorf("Expected 0 patients, got %v", data["patients"])
	}
	if !strings.Contains(data["patients_error"].(string), "no such file") {
		t.Errorf("Expected load error in report, got %v", data["patients_error"])
	}
}

func TestHealthCheck_Degraded_StaleTable(t *testing.T) {
	next := time.Now().Add(2 * time.Hour)
	checker := NewHealthChecker(loadedStore(t, 30*time.Hour), Options{
		StaleAfter: 25 * time.Hour,
		NextRun:    func() time.Time { return next },
	})

	status, data, _ := checker.HealthCheck()
	if status != "degraded" {
		t.Errorf("Expected degraded for stale table, got %s", status)
	}
	if data["next_reload"] != next.Format(time.RFC3339) {
		t.Errorf("Expected next_reload %s, got %v", next.Format(time.RFC3339), data["next_reload"])
	}
}

func TestHealthCheck_OldTableWithoutReloadsIsHealthy(t *testing.T) {
	checker := NewHealthChecker(loadedStore(t, 100*time.Hour), Options{StaleAfter: 25 * time.Hour})

	status, _, _ := checker.HealthCheck()
	if status != "healthy" {
		t.Errorf("a table loaded once is never stale, got %s", status)
	}
}

func TestHealthCheck_DataAgeRounded(t *testing.T) {
	checker := NewHealthChecker(loadedStore(t, 90*time.Minute), Options{})

	_, data, _ := checker.HealthCheck()
	age, ok := data["data_age_hours"].(float64)
	if !ok {
		t.Fatalf("data_age_hours has type %T", data["data_age_hours"])
	}
	if age < 1.4 || age > 1.6 {
		t.Errorf("Expected ~1.5h, got %v", age)
	}
}

func TestNextReload(t *testing.T) {
	checker := NewHealthChecker(&MockHealthStore{}, Options{})
	if !checker.NextReload().IsZero() {
		t.Error("NextReload should be zero without a scheduler")
	}

	at := time.Date(2030, 1, 1, 6, 0, 0, 0, time.Local)
	checker = NewHealthChecker(&MockHealthStore{}, Options{NextRun: func() time.Time { return at }})
	if !checker.NextReload().Equal(at) {
		t.Errorf("Expected %v, got %v", at, checker.NextReload())
	}
}

func BenchmarkHealthCheck(b *testing.B) {
	table, _ := patients.ParseCSV(strings.NewReader("id,name\n1,A\n"), "bench", "id")
	checker := NewHealthChecker(&MockHealthStore{table: table, lastUpdated: time.Now()}, Options{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.HealthCheck()
	}
}
