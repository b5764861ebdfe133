// Package memstore provides in-memory implementations of the store ports.
package memstore

import (
	"context"
	"sync"

	"github.com/kilianp07/eventrescue/core/model"
)

// IncidentStore holds incidents in memory, listed in insertion order.
type IncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]model.Incident
	order     []string
}

// NewIncidentStore initializes an empty IncidentStore.
func NewIncidentStore() *IncidentStore {
	return &IncidentStore{incidents: make(map[string]model.Incident)}
}

// Get retrieves an incident by id.
func (s *IncidentStore) Get(_ context.Context, id string) (model.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	return inc, ok, nil
}

// List returns all incidents in insertion order.
func (s *IncidentStore) List(_ context.Context) ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Incident, 0, len(s.order))
	for _, id := range s.order {
		if inc, ok := s.incidents[id]; ok {
			out = append(out, inc)
		}
	}
	return out, nil
}

// Upsert stores the incident, preserving its original insertion position.
func (s *IncidentStore) Upsert(_ context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		s.order = append(s.order, inc.ID)
	}
	s.incidents[inc.ID] = inc
	return nil
}

// Delete removes the incident if present.
func (s *IncidentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[id]; !ok {
		return nil
	}
	delete(s.incidents, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DispatchLog keeps the per-incident dispatch audit trail in memory.
type DispatchLog struct {
	mu      sync.RWMutex
	records map[string][]model.DispatchRecord
}

// NewDispatchLog initializes an empty DispatchLog.
func NewDispatchLog() *DispatchLog {
	return &DispatchLog{records: make(map[string][]model.DispatchRecord)}
}

// Append adds the record to the incident's ordered log.
func (s *DispatchLog) Append(_ context.Context, rec model.DispatchRecord) error {
	s.mu.Lock()
	s.records[rec.IncidentID] = append(s.records[rec.IncidentID], rec)
	s.mu.Unlock()
	return nil
}

// ListByIncident returns a copy of the incident's log in append order.
func (s *DispatchLog) ListByIncident(_ context.Context, incidentID string) ([]model.DispatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[incidentID]
	out := make([]model.DispatchRecord, len(recs))
	copy(out, recs)
	return out, nil
}
