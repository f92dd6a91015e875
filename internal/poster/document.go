package poster

import (
	"encoding/json"
	"fmt"

	"poster-studio/internal/apperr"
	"poster-studio/internal/media"
)

// DocumentVersion is written into every exported document.
const DocumentVersion = 1

// Document is the exported form of a Store.
type Document struct {
	Version    int          `json:"version"`
	Canvas     Canvas       `json:"canvas"`
	Background *media.Image `json:"background,omitempty"`
	Layers     []Layer      `json:"layers"`
	Selected   string       `json:"selected,omitempty"`
}

// Export copies the store into a Document. Layers keep insertion order.
func (s *Store) Export() Document {
	doc := Document{
		Version:  DocumentVersion,
		Canvas:   s.canvas,
		Layers:   cloneLayers(s.layers),
		Selected: s.selected,
	}
	if s.background != nil {
		bg := *s.background
		doc.Background = &bg
	}
	return doc
}

// Validate checks the invariants a Store relies on.
func (d Document) Validate() error {
	if d.Version != DocumentVersion {
		return apperr.New(apperr.CodeInvalidInput, "unsupported document version %d", d.Version)
	}
	seen := make(map[string]struct{}, len(d.Layers))
	mains := 0
	for _, l := range d.Layers {
		if l.ID == "" {
			return apperr.New(apperr.CodeInvalidInput, "layer without id")
		}
		if _, dup := seen[l.ID]; dup {
			return apperr.New(apperr.CodeInvalidInput, "duplicate layer id %s", l.ID)
		}
		seen[l.ID] = struct{}{}
		if l.Payload == nil {
			return apperr.New(apperr.CodeInvalidInput, "layer %s has no payload", l.ID)
		}
		if !(l.Width > 0 && l.Height > 0) || !finite(l.Width) || !finite(l.Height) || !finite(l.X) || !finite(l.Y) {
			return apperr.New(apperr.CodeInvalidInput, "layer %s has an invalid geometry", l.ID)
		}
		if img, ok := l.Image(); ok && !validAspect(img.AspectRatio) {
			return apperr.New(apperr.CodeInvalidInput, "layer %s has an invalid aspect ratio", l.ID)
		}
		if l.Opacity < 0 || l.Opacity > 1 {
			return apperr.New(apperr.CodeInvalidInput, "layer %s opacity out of range", l.ID)
		}
		if l.MainProduct {
			mains++
		}
	}
	if mains > 1 {
		return apperr.New(apperr.CodeInvalidInput, "more than one main product layer")
	}
	if d.Selected != "" {
		if _, ok := seen[d.Selected]; !ok {
			return apperr.New(apperr.CodeInvalidInput, "selected layer %s does not exist", d.Selected)
		}
	}
	return nil
}

// Import rebuilds a Store from a validated document.
func Import(doc Document, opts ...Option) (*Store, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	s := NewStore(doc.Canvas, opts...)
	s.layers = cloneLayers(doc.Layers)
	s.selected = doc.Selected
	if doc.Background != nil {
		bg := *doc.Background
		s.background = &bg
	}
	return s, nil
}

// EncodeDocument marshals doc to JSON.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument unmarshals and validates a JSON document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, apperr.Wrap(apperr.CodeInvalidInput, err, "invalid poster document")
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}
