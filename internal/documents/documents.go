// Package documents describes saved posters: an exported poster document
// plus a name, kept by one of the stores under internal/stores.
package documents

import (
	"context"
	"time"

	"poster-studio/internal/apperr"
)

type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists saved posters. Save creates a document when ID is empty and
// replaces it otherwise, returning the ID either way. List omits Data.
type Store interface {
	Save(ctx context.Context, doc *Document) (string, error)
	Find(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]*Document, error)
	Delete(ctx context.Context, id string) error
}

func NotFound(id string) error {
	return apperr.New(apperr.CodeNotFound, "document %s not found", id)
}
