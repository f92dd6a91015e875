package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"poster-studio/internal/media"
	"poster-studio/internal/prompt"
	"poster-studio/internal/studio"
)

type promptResponse struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	text, err := s.studio.PosterPrompt(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, promptResponse{Prompt: text})
}

// handleComposite returns the flattened poster as an image.
func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	img, err := s.studio.Composite(chi.URLParam(r, "sessionID"), media.ParseFormat(r.URL.Query().Get("format")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	_, _ = w.Write(img.Data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.studio.GeneratePoster(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) handleGenerateBackground(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.studio.GenerateBackground(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondView(w, r, id)
}

func (s *Server) handleRemoveLayerBackground(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.studio.RemoveLayerBackground(r.Context(), id, chi.URLParam(r, "layerID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondView(w, r, id)
}

func (s *Server) handleRemoveGalleryBackground(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid gallery index"))
		return
	}
	if err := s.studio.RemoveGalleryBackground(r.Context(), id, i); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondView(w, r, id)
}

func (s *Server) handleSuggestScene(w http.ResponseWriter, r *http.Request) {
	sug, err := s.studio.SuggestScenes(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, sug)
}

type analyzeResponse struct {
	Stages  []studio.Report `json:"stages"`
	Session studio.View     `json:"session"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	img, ok, err := formImage(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, badRequest("missing image"))
		return
	}

	id := chi.URLParam(r, "sessionID")
	reports, err := s.studio.AnalyzeScene(r.Context(), id, img, formBool(r, "optimize"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.studio.Sessions().View(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, analyzeResponse{Stages: reports, Session: view})
}

type imagesResponse struct {
	Images []media.Image `json:"images"`
}

func (s *Server) handleProductShot(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}

	req := studio.ProductShotRequest{
		Context:      strings.TrimSpace(r.FormValue("context")),
		Style:        strings.TrimSpace(r.FormValue("style")),
		Supplement:   strings.TrimSpace(r.FormValue("supplement")),
		AspectRatio:  strings.TrimSpace(r.FormValue("aspect_ratio")),
		PreserveFace: formBool(r, "preserve_face"),
	}
	if q, ok := prompt.ParseQuality(r.FormValue("quality")); ok {
		req.Quality = q
	}
	if n, err := strconv.Atoi(r.FormValue("count")); err == nil {
		req.Count = n
	}

	for field, dst := range map[string]**media.Image{"character": &req.Character, "product": &req.Product} {
		img, ok, err := formImage(r, field)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if ok {
			*dst = &img
		}
	}
	details, err := formImages(r, "detail")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Details = details

	out, err := s.studio.GenerateProductShot(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, imagesResponse{Images: out})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := studio.VideoRequest{
		Prompt:      r.FormValue("prompt"),
		AspectRatio: strings.TrimSpace(r.FormValue("aspect_ratio")),
		Resolution:  strings.TrimSpace(r.FormValue("resolution")),
	}
	img, ok, err := formImage(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		req.Image = &img
	}

	item, err := s.studio.GenerateVideo(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}
