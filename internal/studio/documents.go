package studio

import (
	"context"
	"strings"

	"poster-studio/internal/apperr"
	"poster-studio/internal/documents"
	"poster-studio/internal/poster"
)

// SavePoster exports the session poster into docs. An empty docID creates a
// new saved poster.
func (s *Service) SavePoster(ctx context.Context, docs documents.Store, id, docID, name string) (string, error) {
	var doc poster.Document
	err := s.sessions.Update(id, func(sess *Session) error {
		doc = sess.Poster.Export()
		return nil
	})
	if err != nil {
		return "", err
	}

	data, err := poster.EncodeDocument(doc)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, err, "encode poster")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled poster"
	}
	return docs.Save(ctx, &documents.Document{ID: docID, Name: name, Data: data})
}

// OpenPoster loads a saved poster into a new session and returns its id.
func (s *Service) OpenPoster(ctx context.Context, docs documents.Store, docID string) (string, error) {
	saved, err := docs.Find(ctx, docID)
	if err != nil {
		return "", err
	}
	doc, err := poster.DecodeDocument(saved.Data)
	if err != nil {
		return "", err
	}
	ps, err := poster.Import(doc, s.sessions.posterOpts...)
	if err != nil {
		return "", err
	}

	id := s.sessions.Create()
	if err := s.sessions.Replace(id, ps); err != nil {
		return "", err
	}
	return id, nil
}
