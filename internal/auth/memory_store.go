package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory account catalogue for development and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*User
	subjects map[string]*Subject
	apiKeys  map[string]*APIKey
}

// NewMemoryStore initializes the store with the provided seeds.
func NewMemoryStore(seeds []Seed) (*MemoryStore, error) {
	store := &MemoryStore{
		byEmail:  make(map[string]*User),
		subjects: make(map[string]*Subject),
		apiKeys:  make(map[string]*APIKey),
	}
	for _, seed := range seeds {
		if err := store.ApplySeed(context.Background(), seed); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// ApplySeed upserts a bootstrap account.
func (s *MemoryStore) ApplySeed(_ context.Context, seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" {
		return errors.New("seed email cannot be empty")
	}
	hashed, err := HashPassword(seed.Password)
	if err != nil {
		return err
	}

	user, ok := s.byEmail[email]
	if !ok {
		user = &User{ID: uuid.NewString()}
	}
	user.Email = email
	user.OrgID = seed.OrgID
	user.PasswordHash = hashed
	user.Disabled = seed.Disabled
	s.byEmail[email] = user

	subject := &Subject{
		UserID:      user.ID,
		OrgID:       seed.OrgID,
		Email:       email,
		Roles:       dedupeStrings(seed.Roles),
		Permissions: dedupeStrings(seed.Permissions),
		Disabled:    seed.Disabled,
	}
	subject.normalize()
	s.subjects[user.ID] = subject
	return nil
}

// AddAPIKey registers a programmatic access key.
func (s *MemoryStore) AddAPIKey(key APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := key
	s.apiKeys[key.Key] = &stored
}

// FindUserByEmail retrieves the user record.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, errors.New("user not found")
}

// LoadSubject returns the subject with roles and permissions.
func (s *MemoryStore) LoadSubject(_ context.Context, userID string) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if subject, ok := s.subjects[userID]; ok {
		return subject.Clone(), nil
	}
	return nil, errors.New("subject not found")
}

// FindAPIKey resolves a programmatic access key.
func (s *MemoryStore) FindAPIKey(_ context.Context, key string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if apiKey, ok := s.apiKeys[key]; ok {
		clone := *apiKey
		return &clone, nil
	}
	return nil, errors.New("api key not found")
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		seen[strings.ToLower(value)] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for key := range seen {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

var _ Store = (*MemoryStore)(nil)
var _ SeedWriter = (*MemoryStore)(nil)
