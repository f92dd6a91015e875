// Package api exposes the studio over JSON/HTTP.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"poster-studio/internal/apperr"
	"poster-studio/internal/documents"
	"poster-studio/internal/logging"
	"poster-studio/internal/media"
	"poster-studio/internal/settings"
	"poster-studio/internal/studio"
)

type Options struct {
	Studio      *studio.Service
	Documents   documents.Store
	Settings    *settings.Store
	Logger      *slog.Logger
	CORSOrigins []string
	MaxUploadMB int
}

type Server struct {
	studio    *studio.Service
	docs      documents.Store
	settings  *settings.Store
	logger    *slog.Logger
	origins   []string
	maxUpload int64
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxMB := opts.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 25
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		studio:    opts.Studio,
		docs:      opts.Documents,
		settings:  opts.Settings,
		logger:    logger,
		origins:   origins,
		maxUpload: int64(maxMB) << 20,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)

				r.Post("/images", s.handleUpload)
				r.Post("/texts", s.handleAddText)
				r.Patch("/options", s.handleOptions)
				r.Post("/layout", s.handleLayout)
				r.Delete("/background", s.handleClearBackground)
				r.Get("/export", s.handleExport)
				r.Post("/save", s.handleSave)

				r.Route("/layers/{layerID}", func(r chi.Router) {
					r.Patch("/", s.handlePatchLayer)
					r.Delete("/", s.handleDeleteLayer)
					r.Post("/select", s.handleSelect)
					r.Post("/preset", s.handlePreset)
					r.Post("/drag", s.handleDrag)
					r.Post("/remove-background", s.handleRemoveLayerBackground)
				})
				r.Route("/gallery/{index}", func(r chi.Router) {
					r.Post("/layer", s.handleGalleryLayer)
					r.Post("/remove-background", s.handleRemoveGalleryBackground)
				})

				r.Get("/prompt", s.handlePrompt)
				r.Get("/composite", s.handleComposite)
				r.Post("/generate", s.handleGenerate)
				r.Post("/background", s.handleGenerateBackground)
				r.Post("/suggest-scene", s.handleSuggestScene)
				r.Post("/analyze", s.handleAnalyze)
			})
		})

		r.Post("/product-shots", s.handleProductShot)
		r.Post("/videos", s.handleVideo)

		r.Route("/ideas", func(r chi.Router) {
			r.Post("/fields", s.handleFieldIdeas)
			r.Post("/poses", s.handlePoseIdeas)
			r.Post("/product-scenes", s.handleProductScenes)
			r.Post("/actions", s.handleActionIdeas)
		})
		r.Route("/poses", func(r chi.Router) {
			r.Post("/describe", s.handleDescribePose)
			r.Post("/optimize", s.handleOptimizePose)
		})
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/review", s.handleReviewPrompt)
			r.Post("/translate", s.handleTranslate)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Route("/{docID}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Delete("/", s.handleDeleteDocument)
				r.Post("/open", s.handleOpenDocument)
			})
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/", s.handleListLibrary)
			r.Get("/{itemID}", s.handleGetLibraryItem)
			r.Delete("/{itemID}", s.handleDeleteLibraryItem)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Put("/", s.handlePutSettings)
			r.Delete("/", s.handleResetSettings)
		})
	})

	return r
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: apperr.UserMessage(err), Code: apperr.CodeOf(err)})
}

func badRequest(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidInput, format, args...)
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return apperr.Wrap(apperr.CodeInvalidInput, err, "invalid JSON body")
	}
	return nil
}

// parseForm parses a multipart form bounded by the upload limit.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("upload is larger than %d MB", s.maxUpload>>20)
		}
		return apperr.Wrap(apperr.CodeInvalidInput, err, "invalid multipart form")
	}
	return nil
}

// formImage reads an uploaded file. ok is false when the field is absent.
func formImage(r *http.Request, field string) (img media.Image, ok bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return media.Image{}, false, nil
	}
	if err != nil {
		return media.Image{}, false, apperr.Wrap(apperr.CodeInvalidInput, err, "read %s", field)
	}
	defer file.Close()

	img, err = media.Read(file, header.Header.Get("Content-Type"))
	if err != nil {
		return media.Image{}, false, apperr.Wrap(apperr.CodeInvalidInput, err, "read %s", field)
	}
	return img, true, nil
}

func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"status": "ok", "time": time.Now().UTC()})
}
