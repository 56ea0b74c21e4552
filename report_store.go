package wasmdeploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReportStore persists the deployment report as a JSON document. Every
// mutation is in memory until Sync writes the whole file atomically.
type ReportStore struct {
	mu     sync.RWMutex
	path   string
	report *Report
	fresh  bool
}

// OpenReportStore loads the report at path, or starts an empty one when the
// file does not exist yet.
func OpenReportStore(path string) (*ReportStore, error) {
	if path == "" {
		return nil, ErrMissingReportPath
	}

	s := &ReportStore{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.report = newReport()
		s.fresh = true
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportCorrupted, err)
	}
	if r.Version != DefaultReportVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrReportCorrupted, r.Version)
	}
	r.ensureMaps()
	s.report = &r
	return s, nil
}

func newReport() *Report {
	now := time.Now().UTC()
	r := &Report{
		Version:   DefaultReportVersion,
		RunID:     uuid.NewString(),
		StartedAt: now,
		UpdatedAt: now,
	}
	r.ensureMaps()
	return r
}

func (r *Report) ensureMaps() {
	if r.Codes == nil {
		r.Codes = make(map[string]uint64)
	}
	if r.Contracts == nil {
		r.Contracts = make(map[string]string)
	}
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	if r.Steps == nil {
		r.Steps = make(map[string]*StepRecord)
	}
}

// Path returns the report file path.
func (s *ReportStore) Path() string {
	return s.path
}

// Fresh reports whether the store did not exist on disk when opened.
func (s *ReportStore) Fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fresh
}

// Begin stamps run metadata. It is a no-op for fields already set by a
// previous run.
func (s *ReportStore) Begin(plan, chainID, sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report.Plan == "" {
		s.report.Plan = plan
	}
	if s.report.ChainID == "" {
		s.report.ChainID = chainID
	}
	if s.report.Sender == "" {
		s.report.Sender = sender
	}
}

// SetCode records an uploaded code ID.
func (s *ReportStore) SetCode(name string, codeID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Codes[name] = codeID
}

// SetContract records an instantiated contract address.
func (s *ReportStore) SetContract(name, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Contracts[name] = address
}

// SetValue records a value captured from events.
func (s *ReportStore) SetValue(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Values[name] = value
}

// CompleteStep marks a plan step as done.
func (s *ReportStore) CompleteStep(id string, rec StepRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	s.report.Steps[id] = &rec
}

// HasStep checks whether a step was completed by this or an earlier run.
// Pending steps do not count.
func (s *ReportStore) HasStep(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.report.Steps[id]
	return ok && !rec.Pending
}

// Step returns a copy of the record for id, pending or not.
func (s *ReportStore) Step(id string) (StepRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.report.Steps[id]
	if !ok {
		return StepRecord{}, false
	}
	return *rec, true
}

// Report returns a deep copy of the current report.
func (s *ReportStore) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := *s.report
	r.Codes = make(map[string]uint64, len(s.report.Codes))
	for k, v := range s.report.Codes {
		r.Codes[k] = v
	}
	r.Contracts = make(map[string]string, len(s.report.Contracts))
	for k, v := range s.report.Contracts {
		r.Contracts[k] = v
	}
	r.Values = make(map[string]string, len(s.report.Values))
	for k, v := range s.report.Values {
		r.Values[k] = v
	}
	r.Steps = make(map[string]*StepRecord, len(s.report.Steps))
	for k, v := range s.report.Steps {
		rec := *v
		r.Steps[k] = &rec
	}
	return r
}

// Sync writes the report to disk via a temp file and rename.
func (s *ReportStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.report.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s.report, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrReportPersist, err)
	}

	s.fresh = false
	return nil
}
