package incidentlog

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-node deployments. Production
// should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepository creates a new in-memory incident history repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
	}
}

// Upsert stores the latest state of an incident.
func (r *InMemoryRepository) Upsert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.ID] = copyRecord(&rec)
	return nil
}

// Get retrieves one incident by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}

	return copyRecord(rec), nil
}

// List retrieves incidents ordered by start time, newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if opts.OnlyResolved && !rec.Resolved() {
			continue
		}
		ordered = append(ordered, rec)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.After(ordered[j].StartedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	if opts.Cursor != "" {
		for i, rec := range ordered {
			if rec.ID == opts.Cursor {
				ordered = ordered[i+1:]
				break
			}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	result := &ListResult{}
	for i, rec := range ordered {
		if i == limit {
			result.NextCursor = result.Items[limit-1].ID
			break
		}
		result.Items = append(result.Items, copyRecord(rec))
	}

	return result, nil
}

// copyRecord creates a deep copy of a record.
func copyRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}

	out := *rec
	out.Services = append([]string(nil), rec.Services...)
	out.Features = append([]string(nil), rec.Features...)
	out.Updates = append([]Update(nil), rec.Updates...)
	if rec.ResolvedAt != nil {
		resolved := *rec.ResolvedAt
		out.ResolvedAt = &resolved
	}

	return &out
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
