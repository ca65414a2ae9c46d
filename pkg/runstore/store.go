// Package runstore persists run records: the resolved configuration, its
// change summary, seeds, status and result of each executed run.
package runstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes a run's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the persisted shape of one run.
type Record struct {
	ID          uuid.UUID
	Experiment  string
	Command     string
	Status      Status
	Seed        int64
	Config      map[string]any
	Added       []string
	Modified    []string
	Typechanged []string
	Result      any
	StartedAt   time.Time
	StoppedAt   time.Time
}

// Store persists run records.
type Store interface {
	Save(record Record) error
	Get(id uuid.UUID) (Record, bool)
	List() []Record
	Delete(id uuid.UUID) error
}

// MemoryStore is an in-memory Store safe for concurrent use. Records are
// listed in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	order   []uuid.UUID
}

// New constructs an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{records: map[uuid.UUID]Record{}}
}

// Save inserts or updates a record.
func (s *MemoryStore) Save(record Record) error {
	if record.ID == uuid.Nil {
		return fmt.Errorf("runstore: record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = record
	return nil
}

// Get returns the record for id.
func (s *MemoryStore) Get(id uuid.UUID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok
}

// List returns all records in insertion order.
func (s *MemoryStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Delete removes the record for id.
func (s *MemoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("runstore: record %s not found", id)
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
