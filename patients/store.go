package patients

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
)

var (
	// ErrTableUnavailable means no snapshot has been loaded yet
	ErrTableUnavailable = errors.New("patient table not loaded")
	// ErrPatientNotFound means the id is not in the current snapshot
	ErrPatientNotFound = errors.New("patient not found")
)

// Store is the read-only handle handlers use; Reload swaps in a new
// snapshot only when loading succeeds.
type Store struct {
	path     string
	idColumn string

	table     atomic.Pointer[Table]
	updating  atomic.Bool
	lastError atomic.Value // string
}

// NewStore creates an empty store for the CSV at path
func NewStore(path, idColumn string) *Store {
	s := &Store{path: path, idColumn: idColumn}
	s.lastError.Store("")
	return s
}

// NewStoreFromTable wraps an already built table
func NewStoreFromTable(t *Table) *Store {
	s := NewStore(t.Source(), t.IDColumn())
	s.Swap(t)
	return s
}

// Reload reads the file and atomically replaces the current snapshot
func (s *Store) Reload() error {
	start := time.Now()

	t, err := LoadCSV(s.path, s.idColumn)
	if err != nil {
		s.lastError.Store(err.Error())
		return fmt.Errorf("patient reload failed: %w", err)
	}

	s.Swap(t)
	s.lastError.Store("")
	logging.Info("Patient table loaded",
		"source", t.Source(),
		"patients", t.Len(),
		"columns", len(t.Columns()),
		"duration", time.Since(start).String())
	return nil
}

// Swap installs t as the current snapshot
func (s *Store) Swap(t *Table) {
	s.table.Store(t)
	metrics.PatientRecords.Set(float64(t.Len()))
}

// Snapshot returns the current table, nil before the first load
func (s *Store) Snapshot() *Table {
	return s.table.Load()
}

// Lookup finds a patient by id in the current snapshot
func (s *Store) Lookup(id string) (Record, error) {
	t := s.table.Load()
	if t == nil {
		return Record{}, ErrTableUnavailable
	}
	r, ok := t.Lookup(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrPatientNotFound, id)
	}
	return r, nil
}

// GetLastUpdated is the load time of the current snapshot
func (s *Store) GetLastUpdated() time.Time {
	if t := s.table.Load(); t != nil {
		return t.LoadedAt()
	}
	return time.Time{}
}

// LastError is the message of the last failed reload, empty after a success
func (s *Store) LastError() string {
	if v, ok := s.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// IsUpdating reports whether a reload is in progress
func (s *Store) IsUpdating() bool {
	return s.updating.Load()
}

// BeginUpdate marks the start of a reload.
// Returns false if another reload is already running.
func (s *Store) BeginUpdate() bool {
	return s.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload
func (s *Store) EndUpdate() {
	s.updating.Store(false)
}
