package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"poster-studio/internal/documents"
)

type memStore struct {
	mu   sync.RWMutex
	docs map[string]documents.Document
	now  func() time.Time
}

// NewStore creates an in-memory document store.
func NewStore() *memStore {
	return &memStore{docs: make(map[string]documents.Document), now: time.Now}
}

func (s *memStore) Save(_ context.Context, doc *documents.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stored := *doc
	stored.Data = append([]byte(nil), doc.Data...)
	if stored.ID == "" {
		stored.ID = ulid.Make().String()
		stored.CreatedAt = now
	} else if prev, ok := s.docs[stored.ID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.docs[stored.ID] = stored
	return stored.ID, nil
}

func (s *memStore) Find(_ context.Context, id string) (*documents.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, documents.NotFound(id)
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return &doc, nil
}

// List returns metadata ordered by last update, newest first.
func (s *memStore) List(_ context.Context) ([]*documents.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*documents.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		doc := doc
		doc.Data = nil
		out = append(out, &doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return documents.NotFound(id)
	}
	delete(s.docs, id)
	return nil
}
