package learning

import (
	"context"
	"fmt"
	"sync"
)

// Repository persists profile records and their feedback logs by profile
// name. The serialization format is up to the implementation.
type Repository interface {
	// LoadProfile returns ErrProfileNotFound when no record exists.
	LoadProfile(ctx context.Context, name string) (Record, error)
	SaveProfile(ctx context.Context, r Record) error
	AppendFeedback(ctx context.Context, profile string, events []Feedback) error
	ListFeedback(ctx context.Context, profile string) ([]Feedback, error)
	// DeleteProfile removes the record and its feedback. Deleting a missing
	// profile is not an error.
	DeleteProfile(ctx context.Context, name string) error
}

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  map[string]Record
	feedback map[string][]Feedback
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]Record),
		feedback: make(map[string][]Feedback),
	}
}

func (m *MemoryRepository) LoadProfile(_ context.Context, name string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return copyRecord(r), nil
}

func (m *MemoryRepository) SaveProfile(_ context.Context, r Record) error {
	if err := ValidateProfileName(r.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Name] = copyRecord(r)
	return nil
}

func (m *MemoryRepository) AppendFeedback(_ context.Context, profile string, events []Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[profile] = append(m.feedback[profile], events...)
	return nil
}

func (m *MemoryRepository) ListFeedback(_ context.Context, profile string) ([]Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feedback, len(m.feedback[profile]))
	copy(out, m.feedback[profile])
	return out, nil
}

func (m *MemoryRepository) DeleteProfile(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, name)
	delete(m.feedback, name)
	return nil
}

func copyRecord(r Record) Record {
	c := r
	c.TypeWeights = make(map[string]float64, len(r.TypeWeights))
	for k, v := range r.TypeWeights {
		c.TypeWeights[k] = v
	}
	c.PriorityWeights = make(map[string]float64, len(r.PriorityWeights))
	for k, v := range r.PriorityWeights {
		c.PriorityWeights[k] = v
	}
	c.DisabledTypes = append([]string(nil), r.DisabledTypes...)
	if r.ConfidenceThreshold != nil {
		v := *r.ConfidenceThreshold
		c.ConfidenceThreshold = &v
	}
	return c
}
