// Package library keeps the generated images and videos of a process,
// newest first.
package library

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"poster-studio/internal/media"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Sources that never add to the library.
const (
	SourceLibrary  = "library"
	SourceSettings = "settings"
)

type Item struct {
	ID        string      `json:"id"`
	Kind      Kind        `json:"type"`
	Media     media.Image `json:"media"`
	Prompt    string      `json:"prompt"`
	Source    string      `json:"sourceTab"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Library struct {
	mu    sync.RWMutex
	items []Item
	max   int
	now   func() time.Time
}

// New creates a library holding at most max items; max <= 0 means no cap.
func New(max int) *Library {
	return &Library{max: max, now: time.Now}
}

// Add records one batch. The batch goes in front of older items and keeps its
// own order. Items from the library or settings views are ignored.
func (l *Library) Add(kind Kind, outputs []media.Image, prompt, source string) []Item {
	if source == SourceLibrary || source == SourceSettings || len(outputs) == 0 {
		return nil
	}

	now := l.now()
	batch := make([]Item, 0, len(outputs))
	for _, m := range outputs {
		batch = append(batch, Item{
			ID:        uuid.NewString(),
			Kind:      kind,
			Media:     m,
			Prompt:    prompt,
			Source:    source,
			CreatedAt: now,
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append(append([]Item(nil), batch...), l.items...)
	if l.max > 0 && len(l.items) > l.max {
		l.items = l.items[:l.max]
	}
	return append([]Item(nil), batch...)
}

// List returns the items, newest first.
func (l *Library) List() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Item(nil), l.items...)
}

func (l *Library) Get(id string) (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (l *Library) Delete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, it := range l.items {
		if it.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
