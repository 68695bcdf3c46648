package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driveguard/backend/internal/domain"
)

// MemoryRepository implements domain.EmergencyRepository in volatile memory.
// It is the default store when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]domain.EmergencyRequest
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requests: make(map[string]domain.EmergencyRequest),
	}
}

// SaveRequest stores the request in memory
func (r *MemoryRepository) SaveRequest(ctx context.Context, req domain.EmergencyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req
	return nil
}

// GetRequest retrieves a request by id
func (r *MemoryRepository) GetRequest(ctx context.Context, id string) (domain.EmergencyRequest, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	return req, ok, nil
}

// ListRequests returns all stored requests, newest first
func (r *MemoryRepository) ListRequests(ctx context.Context) ([]domain.EmergencyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.EmergencyRequest, 0, len(r.requests))
	for _, req := range r.requests {
		results = append(results, req)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// PurgeOlderThan removes requests created before the cutoff
func (r *MemoryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, req := range r.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(r.requests, id)
			purged++
		}
	}
	return purged, nil
}

// Health always reports healthy for the in-memory store
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
