package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"poster-studio/internal/apperr"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
	"poster-studio/internal/settings"
	"poster-studio/internal/studio"
)

type option struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type catalogResponse struct {
	AspectRatios []poster.AspectRatio `json:"aspectRatios"`
	Qualities    []prompt.Quality     `json:"qualities"`
	Layouts      []poster.Layout      `json:"layouts"`
	Lighting     []option             `json:"lighting"`
	Atmosphere   []option             `json:"atmosphere"`
	TextPresets  []option             `json:"textPresets"`
	Tabs         []string             `json:"tabs"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{
		AspectRatios: poster.AspectRatios(),
		Qualities:    prompt.Qualities(),
		Layouts:      []poster.Layout{poster.LayoutFreeform, poster.LayoutCenterMain, poster.LayoutSideBySide},
		Tabs:         settings.Tabs,
	}
	for _, o := range prompt.LightingOptions() {
		resp.Lighting = append(resp.Lighting, option{Key: o.Key, Name: o.Name})
	}
	for _, o := range prompt.AtmosphereOptions() {
		resp.Atmosphere = append(resp.Atmosphere, option{Key: o.Key, Name: o.Name})
	}
	for _, p := range poster.TextPresets() {
		resp.TextPresets = append(resp.TextPresets, option{Key: p.Key, Name: p.Name})
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.studio.Sessions().Create()
	view, err := s.studio.Sessions().View(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, chi.URLParam(r, "sessionID"))
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, id string) {
	view, err := s.studio.Sessions().View(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.studio.Sessions().Delete(id) {
		s.writeError(w, r, apperr.New(apperr.CodeNotFound, "session %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutate runs fn on the session and answers with the updated view.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*studio.Session) error) {
	id := chi.URLParam(r, "sessionID")
	if err := s.studio.Sessions().Update(id, fn); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondView(w, r, id)
}

type layerResponse struct {
	LayerID string      `json:"layerId,omitempty"`
	Session studio.View `json:"session"`
}

func (s *Server) respondLayer(w http.ResponseWriter, r *http.Request, layerID string) {
	view, err := s.studio.Sessions().View(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, layerResponse{LayerID: layerID, Session: view})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	role, err := studio.ParseRole(r.FormValue("role"))
	if err != nil {
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

	layerID, err := s.studio.Upload(chi.URLParam(r, "sessionID"), role, img)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondLayer(w, r, layerID)
}

func (s *Server) handleAddText(w http.ResponseWriter, r *http.Request) {
	var layerID string
	err := s.studio.Sessions().Update(chi.URLParam(r, "sessionID"), func(sess *studio.Session) error {
		layerID = sess.Poster.AddTextLayer()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondLayer(w, r, layerID)
}

func (s *Server) handleGalleryLayer(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid gallery index"))
		return
	}
	layerID, err := s.studio.AddGalleryImage(chi.URLParam(r, "sessionID"), i)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondLayer(w, r, layerID)
}

func layerNotFound(id string) error {
	return apperr.New(apperr.CodeNotFound, "layer %s not found", id)
}

func (s *Server) handlePatchLayer(w http.ResponseWriter, r *http.Request) {
	var p poster.Patch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	layerID := chi.URLParam(r, "layerID")
	s.mutate(w, r, func(sess *studio.Session) error {
		if !sess.Poster.UpdateLayer(layerID, p) {
			return layerNotFound(layerID)
		}
		return nil
	})
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerID")
	s.mutate(w, r, func(sess *studio.Session) error {
		if !sess.Poster.DeleteLayer(layerID) {
			return layerNotFound(layerID)
		}
		return nil
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	layerID := chi.URLParam(r, "layerID")
	s.mutate(w, r, func(sess *studio.Session) error {
		if !sess.Poster.Select(layerID) {
			return layerNotFound(layerID)
		}
		return nil
	})
}

type presetRequest struct {
	Preset string `json:"preset"`
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	layerID := chi.URLParam(r, "layerID")
	s.mutate(w, r, func(sess *studio.Session) error {
		if _, ok := poster.LookupTextPreset(req.Preset); !ok {
			return badRequest("unknown text preset %q", req.Preset)
		}
		l, ok := sess.Poster.Layer(layerID)
		if !ok {
			return layerNotFound(layerID)
		}
		if l.Kind() != poster.KindText {
			return badRequest("presets only apply to text layers")
		}
		sess.Poster.ApplyTextPreset(layerID, req.Preset)
		return nil
	})
}

type dragRequest struct {
	Gesture string         `json:"gesture"`
	Start   poster.Point   `json:"start"`
	Points  []poster.Point `json:"points"`
}

// handleDrag replays a whole pointer gesture. Locked layers answer 409 and
// keep their geometry.
func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, ok := poster.ParseGesture(req.Gesture)
	if !ok {
		s.writeError(w, r, badRequest("gesture must be move or resize"))
		return
	}

	layerID := chi.URLParam(r, "layerID")
	var accepted bool
	err := s.studio.Sessions().Update(chi.URLParam(r, "sessionID"), func(sess *studio.Session) error {
		l, ok := sess.Poster.Layer(layerID)
		if !ok {
			return layerNotFound(layerID)
		}
		if l.Locked {
			return nil
		}
		accepted = sess.Controller.Drag(layerID, g, req.Start, req.Points)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !accepted {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errorResponse{Error: "layer is locked"})
		return
	}
	s.respondView(w, r, chi.URLParam(r, "sessionID"))
}

type layoutRequest struct {
	Layout string `json:"layout"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	layout, err := poster.ParseLayout(req.Layout)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.CodeInvalidInput, err, "unknown layout %q", req.Layout))
		return
	}
	s.mutate(w, r, func(sess *studio.Session) error {
		sess.Poster.ApplyLayout(layout)
		return nil
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	var p studio.OptionsPatch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.mutate(w, r, func(sess *studio.Session) error {
		return sess.Apply(p)
	})
}

func (s *Server) handleClearBackground(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *studio.Session) error {
		sess.Poster.ClearBackground()
		return nil
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var doc poster.Document
	err := s.studio.Sessions().Update(chi.URLParam(r, "sessionID"), func(sess *studio.Session) error {
		doc = sess.Poster.Export()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, doc)
}
