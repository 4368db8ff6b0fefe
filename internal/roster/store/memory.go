package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mealcard/internal/roster/models"
	"mealcard/internal/roster/ports"
	"mealcard/pkg/platform/sentinel"
)

// In-memory stores back unit tests and intentionally favor clarity over
// performance. They share one mutex through MemoryRoster so the tx runner can
// hand out the same instances without isolation concerns in sequential tests.

// MemoryRoster bundles the three in-memory stores plus a no-op tx runner.
type MemoryRoster struct {
	Cards       *MemoryCardStore
	Persons     *MemoryPersonStore
	Responsible *MemoryResponsibleStore
}

func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{
		Cards:       NewMemoryCardStore(),
		Persons:     NewMemoryPersonStore(),
		Responsible: NewMemoryResponsibleStore(),
	}
}

// RunInTx satisfies ports.TxRunner. Memory stores have no transaction
// isolation; fn runs against the shared stores directly.
func (m *MemoryRoster) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	return fn(ctx, ports.TxStores{
		Cards:       m.Cards,
		Persons:     m.Persons,
		Responsible: m.Responsible,
	})
}

type MemoryCardStore struct {
	mu    sync.RWMutex
	cards map[string]models.CardRecord // keyed by surrogate id
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{cards: make(map[string]models.CardRecord)}
}

func (s *MemoryCardStore) FindByNaturalKey(_ context.Context, key models.NaturalKey) (*models.CardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, card := range s.cards {
		if card.NaturalKey == key {
			c := card
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryCardStore) Insert(_ context.Context, card models.CardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cards[card.SurrogateID]; exists {
		return fmt.Errorf("insert card %s: %w", card.SurrogateID, sentinel.ErrConflict)
	}
	s.cards[card.SurrogateID] = card
	return nil
}

func (s *MemoryCardStore) Refresh(_ context.Context, surrogateID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, exists := s.cards[surrogateID]
	if !exists {
		return nil
	}
	card.Status = models.CardStatusActive
	card.UpdatedAt = at
	s.cards[surrogateID] = card
	return nil
}

func (s *MemoryCardStore) Rename(_ context.Context, oldSurrogateID, newSurrogateID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, exists := s.cards[oldSurrogateID]
	if !exists {
		return fmt.Errorf("rename card %s: %w", oldSurrogateID, sentinel.ErrNotFound)
	}
	if _, taken := s.cards[newSurrogateID]; taken {
		return fmt.Errorf("rename card %s to %s: %w", oldSurrogateID, newSurrogateID, sentinel.ErrConflict)
	}
	delete(s.cards, oldSurrogateID)
	card.SurrogateID = newSurrogateID
	card.Status = models.CardStatusActive
	card.UpdatedAt = at
	s.cards[newSurrogateID] = card
	return nil
}

func (s *MemoryCardStore) UpsertByNaturalKey(_ context.Context, card models.CardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.cards {
		if existing.NaturalKey == card.NaturalKey {
			if id != card.SurrogateID {
				if _, taken := s.cards[card.SurrogateID]; taken {
					return fmt.Errorf("upsert card %s: %w", card.SurrogateID, sentinel.ErrConflict)
				}
				delete(s.cards, id)
			}
			s.cards[card.SurrogateID] = card
			return nil
		}
	}
	if _, taken := s.cards[card.SurrogateID]; taken {
		return fmt.Errorf("upsert card %s: %w", card.SurrogateID, sentinel.ErrConflict)
	}
	s.cards[card.SurrogateID] = card
	return nil
}

func (s *MemoryCardStore) DeactivateNotIn(_ context.Context, surrogateIDs []string, at time.Time) ([]string, error) {
	keep := make(map[string]struct{}, len(surrogateIDs))
	for _, id := range surrogateIDs {
		keep[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []string
	for id, card := range s.cards {
		if card.Status != models.CardStatusActive {
			continue
		}
		if _, present := keep[id]; present {
			continue
		}
		card.Status = models.CardStatusInactive
		card.UpdatedAt = at
		s.cards[id] = card
		swept = append(swept, id)
	}
	sort.Strings(swept)
	return swept, nil
}

// Card returns a copy of the stored card, if any. Test helper.
func (s *MemoryCardStore) Card(surrogateID string) (models.CardRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[surrogateID]
	return card, ok
}

// ActiveMapping returns naturalKey→surrogateID for all active cards. Test helper.
func (s *MemoryCardStore) ActiveMapping() map[models.NaturalKey]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mapping := make(map[models.NaturalKey]string)
	for id, card := range s.cards {
		if card.Status == models.CardStatusActive {
			mapping[card.NaturalKey] = id
		}
	}
	return mapping
}

type MemoryPersonStore struct {
	mu      sync.RWMutex
	persons map[int64]models.Person
	nextID  int64
}

func NewMemoryPersonStore() *MemoryPersonStore {
	return &MemoryPersonStore{persons: make(map[int64]models.Person), nextID: 1}
}

// Add registers a person and returns its id. Test helper mirroring the
// registration flow that owns person creation in production.
func (s *MemoryPersonStore) Add(key models.NaturalKey, surrogateID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.persons[id] = models.Person{ID: id, NaturalKey: key, SurrogateIDRef: surrogateID}
	return id
}

func (s *MemoryPersonStore) FindBySurrogateIDs(_ context.Context, surrogateIDs []string) ([]models.Person, error) {
	want := make(map[string]struct{}, len(surrogateIDs))
	for _, id := range surrogateIDs {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Person
	for _, p := range s.persons {
		if _, ok := want[p.SurrogateIDRef]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryPersonStore) ReassignSurrogateID(_ context.Context, oldSurrogateID, newSurrogateID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, p := range s.persons {
		if p.SurrogateIDRef == oldSurrogateID {
			p.SurrogateIDRef = newSurrogateID
			s.persons[id] = p
			count++
		}
	}
	return count, nil
}

func (s *MemoryPersonStore) SetExpelled(_ context.Context, personID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.persons[personID]
	if !exists {
		return fmt.Errorf("set expelled %d: %w", personID, sentinel.ErrNotFound)
	}
	p.Expelled = true
	s.persons[personID] = p
	return nil
}

func (s *MemoryPersonStore) CorrectSurrogateIDByNaturalKey(_ context.Context, key models.NaturalKey, surrogateID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, p := range s.persons {
		if p.NaturalKey == key && p.SurrogateIDRef != surrogateID {
			p.SurrogateIDRef = surrogateID
			s.persons[id] = p
			count++
		}
	}
	return count, nil
}

// Person returns a copy of the stored person, if any. Test helper.
func (s *MemoryPersonStore) Person(id int64) (models.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	return p, ok
}

type MemoryResponsibleStore struct {
	mu      sync.RWMutex
	parties map[models.NaturalKey]models.ResponsibleParty
}

func NewMemoryResponsibleStore() *MemoryResponsibleStore {
	return &MemoryResponsibleStore{parties: make(map[models.NaturalKey]models.ResponsibleParty)}
}

func (s *MemoryResponsibleStore) Upsert(_ context.Context, party models.ResponsibleParty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[party.NaturalKey] = party
	return nil
}

// Party returns the stored party for the key, if any. Test helper.
func (s *MemoryResponsibleStore) Party(key models.NaturalKey) (models.ResponsibleParty, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[key]
	return p, ok
}
