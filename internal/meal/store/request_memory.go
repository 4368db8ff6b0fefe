package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mealcard/internal/meal/models"
	"mealcard/pkg/platform/sentinel"
)

type requestKey struct {
	personID int64
	date     time.Time
}

// MemoryRequestStore backs unit tests; it mirrors the Postgres store's
// semantics including the atomic finalized rejection.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[requestKey]models.EntitlementRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[requestKey]models.EntitlementRequest)}
}

func (s *MemoryRequestStore) Get(_ context.Context, personID int64, date time.Time) (*models.EntitlementRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[requestKey{personID, models.DateOnly(date)}]; ok {
		r := req
		return &r, nil
	}
	return nil, nil
}

func (s *MemoryRequestStore) Upsert(_ context.Context, req models.EntitlementRequest) error {
	key := requestKey{req.PersonID, models.DateOnly(req.Date)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.requests[key]; ok && existing.Finalized {
		return fmt.Errorf("meal request for person %d on %s: %w",
			req.PersonID, key.date.Format("2006-01-02"), sentinel.ErrFinalized)
	}
	s.requests[key] = models.EntitlementRequest{
		PersonID:   req.PersonID,
		Date:       key.date,
		Selections: req.Selections,
	}
	return nil
}

func (s *MemoryRequestStore) DeleteFutureUnfinalized(_ context.Context, personID int64, after time.Time) (int64, error) {
	cutoff := models.DateOnly(after)

	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key, req := range s.requests {
		if key.personID == personID && key.date.After(cutoff) && !req.Finalized {
			delete(s.requests, key)
			count++
		}
	}
	return count, nil
}

func (s *MemoryRequestStore) FinalizeUpTo(_ context.Context, day time.Time) (int64, error) {
	cutoff := models.DateOnly(day)

	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key, req := range s.requests {
		if !req.Finalized && !key.date.After(cutoff) {
			req.Finalized = true
			s.requests[key] = req
			count++
		}
	}
	return count, nil
}

// Request returns a copy of the stored request, if any. Test helper.
func (s *MemoryRequestStore) Request(personID int64, date time.Time) (models.EntitlementRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestKey{personID, models.DateOnly(date)}]
	return req, ok
}

// Len reports how many rows the store holds. Test helper.
func (s *MemoryRequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
