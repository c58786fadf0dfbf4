package store

import (
	"sort"
	"sync"

	"seogen/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	usersByEmail map[string]string
	records      []domain.SeoRecord
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

// SaveUser registers or updates a user.
func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok && existing.Email != u.Email {
		delete(s.usersByEmail, existing.Email)
	}
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.usersByEmail[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := s.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

// SaveRecord appends a history record.
func (s *MemoryStore) SaveRecord(r domain.SeoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// ListRecordsByUser returns a user's history, newest first.
func (s *MemoryStore) ListRecordsByUser(userID string) ([]domain.SeoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.SeoRecord, 0)
	for _, r := range s.records {
		if r.UserID == userID {
			items = append(items, r)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
