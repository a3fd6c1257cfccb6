package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Records are stored and
// returned as clones so callers never share state with the store.
type MemoryStore struct {
	usersMu sync.RWMutex
	users   map[string]*User

	contentMu    sync.RWMutex
	content      map[string]*Content
	contentOrder []string // insertion order, keeps listings stable

	purchasesMu    sync.RWMutex
	purchases      []Purchase
	lastPurchaseID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		content: make(map[string]*Content),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

// User methods
func (s *MemoryStore) AddUser(_ context.Context, user *User) (*User, error) {
	stored := cloneUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, exists := s.users[stored.ID]; exists {
		return nil, fmt.Errorf("failed to insert user %s: %w", stored.ID, ErrDuplicateID)
	}
	s.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil // User not found
	}
	return cloneUser(user), nil
}

// Content methods
func (s *MemoryStore) AddContent(_ context.Context, content *Content) (*Content, error) {
	stored, err := cloneContent(content)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize content: %w", err)
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.contentMu.Lock()
	defer s.contentMu.Unlock()

	if _, exists := s.content[stored.ID]; exists {
		return nil, fmt.Errorf("failed to insert content %s: %w", stored.ID, ErrDuplicateID)
	}
	s.content[stored.ID] = stored
	s.contentOrder = append(s.contentOrder, stored.ID)
	return cloneContent(stored)
}

func (s *MemoryStore) GetContent(_ context.Context, id string) (*Content, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()

	content, ok := s.content[id]
	if !ok {
		return nil, nil // Not found
	}
	return cloneContent(content)
}

func (s *MemoryStore) GetContentByOwner(_ context.Context, ownerID string) ([]Content, error) {
	return s.filterContent(func(c *Content) bool {
		return c.OwnerID == ownerID
	}, -1)
}

func (s *MemoryStore) SearchContent(_ context.Context, query string) ([]Content, error) {
	query = strings.ToLower(query)
	return s.filterContent(func(c *Content) bool {
		return strings.Contains(strings.ToLower(c.Title), query) ||
			strings.Contains(strings.ToLower(c.Description), query)
	}, -1)
}

func (s *MemoryStore) GetNItems(_ context.Context, n int) ([]Content, error) {
	if n <= 0 {
		return []Content{}, nil
	}
	return s.filterContent(func(*Content) bool { return true }, n)
}

func (s *MemoryStore) UpdateContentMetadata(_ context.Context, id string, metadata map[string]any) error {
	s.contentMu.Lock()
	defer s.contentMu.Unlock()

	content, ok := s.content[id]
	if !ok {
		return fmt.Errorf("content %s: %w", id, ErrNotFound)
	}

	updated := *content
	updated.Metadata = metadata
	stored, err := cloneContent(&updated)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}
	s.content[id] = stored
	return nil
}

// filterContent walks content in insertion order; limit < 0 means no limit.
func (s *MemoryStore) filterContent(match func(*Content) bool, limit int) ([]Content, error) {
	s.contentMu.RLock()
	defer s.contentMu.RUnlock()

	results := []Content{}
	for _, id := range s.contentOrder {
		if limit >= 0 && len(results) >= limit {
			break
		}
		content := s.content[id]
		if !match(content) {
			continue
		}
		clone, err := cloneContent(content)
		if err != nil {
			return nil, fmt.Errorf("failed to clone content %s: %w", id, err)
		}
		results = append(results, *clone)
	}
	return results, nil
}

// Purchase methods
func (s *MemoryStore) AddPurchase(_ context.Context, purchase *Purchase) (*Purchase, error) {
	s.purchasesMu.Lock()
	defer s.purchasesMu.Unlock()

	s.lastPurchaseID++
	stored := Purchase{
		ID:        s.lastPurchaseID,
		UserID:    purchase.UserID,
		ContentID: purchase.ContentID,
	}
	s.purchases = append(s.purchases, stored)
	return &stored, nil
}

func (s *MemoryStore) GetPurchasesByUser(_ context.Context, userID string) ([]Purchase, error) {
	return s.filterPurchases(func(p Purchase) bool { return p.UserID == userID }), nil
}

func (s *MemoryStore) GetPurchasesByContent(_ context.Context, contentID string) ([]Purchase, error) {
	return s.filterPurchases(func(p Purchase) bool { return p.ContentID == contentID }), nil
}

func (s *MemoryStore) filterPurchases(match func(Purchase) bool) []Purchase {
	s.purchasesMu.RLock()
	defer s.purchasesMu.RUnlock()

	results := []Purchase{}
	for _, p := range s.purchases {
		if match(p) {
			results = append(results, p)
		}
	}
	return results
}
