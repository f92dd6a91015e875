package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"poster-studio/internal/apperr"
	"poster-studio/internal/documents"
	"poster-studio/internal/library"
	"poster-studio/internal/settings"
)

type saveRequest struct {
	DocumentID string `json:"documentId,omitempty"`
	Name       string `json:"name"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (s *Server) requireDocs() error {
	if s.docs == nil {
		return apperr.New(apperr.CodeNotFound, "saved posters are disabled")
	}
	return nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.requireDocs(); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req saveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.studio.SavePoster(r.Context(), s.docs, chi.URLParam(r, "sessionID"), req.DocumentID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, idResponse{ID: id})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if err := s.requireDocs(); err != nil {
		s.writeError(w, r, err)
		return
	}
	docs, err := s.docs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*documents.Document{}
	}
	render.JSON(w, r, docs)
}

// handleGetDocument answers with the stored poster document itself.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.requireDocs(); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.docs.Find(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc.Data)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.requireDocs(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.docs.Delete(r.Context(), chi.URLParam(r, "docID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.requireDocs(); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.studio.OpenPoster(r.Context(), s.docs, chi.URLParam(r, "docID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.studio.Sessions().View(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

type libraryEntry struct {
	ID        string       `json:"id"`
	Kind      library.Kind `json:"type"`
	MimeType  string       `json:"mimeType"`
	Size      int          `json:"size"`
	Prompt    string       `json:"prompt"`
	Source    string       `json:"sourceTab"`
	CreatedAt time.Time    `json:"createdAt"`
}

// handleListLibrary lists item metadata; the media is fetched per item.
func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	items := s.studio.Library().List()
	out := make([]libraryEntry, 0, len(items))
	for _, it := range items {
		out = append(out, libraryEntry{
			ID:        it.ID,
			Kind:      it.Kind,
			MimeType:  it.Media.MimeType,
			Size:      len(it.Media.Data),
			Prompt:    it.Prompt,
			Source:    it.Source,
			CreatedAt: it.CreatedAt,
		})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleGetLibraryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	it, ok := s.studio.Library().Get(id)
	if !ok {
		s.writeError(w, r, apperr.New(apperr.CodeNotFound, "library item %s not found", id))
		return
	}
	w.Header().Set("Content-Type", it.Media.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(it.Media.Data)))
	_, _ = w.Write(it.Media.Data)
}

func (s *Server) handleDeleteLibraryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	if !s.studio.Library().Delete(id) {
		s.writeError(w, r, apperr.New(apperr.CodeNotFound, "library item %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := decode(r, &next); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.settings.Update(r.Context(), next)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.CodeInternal, err, "save settings"))
		return
	}
	render.JSON(w, r, got)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	got, err := s.settings.Reset(r.Context())
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.CodeInternal, err, "save settings"))
		return
	}
	render.JSON(w, r, got)
}
