package api

import (
	"net/http"

	"github.com/go-chi/render"

	"poster-studio/internal/media"
	"poster-studio/internal/prompt"
	"poster-studio/internal/studio"
)

type ideasResponse struct {
	Ideas []string `json:"ideas"`
}

type textResponse struct {
	Text string `json:"text"`
}

type fieldIdeasRequest struct {
	Field  string            `json:"field"`
	Prompt map[string]string `json:"prompt"`
}

func (s *Server) handleFieldIdeas(w http.ResponseWriter, r *http.Request) {
	var req fieldIdeasRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	field, err := prompt.ParseField(req.Field)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	current := make(map[prompt.Field]string, len(req.Prompt))
	for k, v := range req.Prompt {
		current[prompt.Field(k)] = v
	}
	s.respondIdeas(w, r)(s.studio.FieldIdeas(r.Context(), field, current))
}

func (s *Server) handlePoseIdeas(w http.ResponseWriter, r *http.Request) {
	s.respondIdeas(w, r)(s.studio.PoseIdeas(r.Context()))
}

func (s *Server) handleProductScenes(w http.ResponseWriter, r *http.Request) {
	img, err := s.requiredImage(w, r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondIdeas(w, r)(s.studio.ProductScenes(r.Context(), img))
}

func (s *Server) handleActionIdeas(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	imgs, err := formImages(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondIdeas(w, r)(s.studio.ActionIdeas(r.Context(), imgs))
}

func (s *Server) respondIdeas(w http.ResponseWriter, r *http.Request) func([]string, error) {
	return func(ideas []string, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		render.JSON(w, r, ideasResponse{Ideas: ideas})
	}
}

func (s *Server) handleDescribePose(w http.ResponseWriter, r *http.Request) {
	img, err := s.requiredImage(w, r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondText(w, r)(s.studio.DescribePose(r.Context(), img))
}

func (s *Server) handleOptimizePose(w http.ResponseWriter, r *http.Request) {
	img, err := s.requiredImage(w, r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondText(w, r)(s.studio.OptimizePose(r.Context(), r.FormValue("description"), img))
}

type translateRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondText(w, r)(s.studio.Translate(r.Context(), req.Text, req.Lang))
}

func (s *Server) respondText(w http.ResponseWriter, r *http.Request) func(string, error) {
	return func(text string, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		render.JSON(w, r, textResponse{Text: text})
	}
}

// handleReviewPrompt takes the prompt plus model, optional pose and outfit
// images.
func (s *Server) handleReviewPrompt(w http.ResponseWriter, r *http.Request) {
	model, err := s.requiredImage(w, r, "model")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req := studio.ReviewRequest{Prompt: r.FormValue("prompt"), Model: model}
	for field, dst := range map[string]**media.Image{"pose": &req.Pose, "outfit": &req.Outfit} {
		img, ok, err := formImage(r, field)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if ok {
			*dst = &img
		}
	}

	review, err := s.studio.ReviewPrompt(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, review)
}

// requiredImage parses the multipart form and returns the image in field.
func (s *Server) requiredImage(w http.ResponseWriter, r *http.Request, field string) (media.Image, error) {
	if err := s.parseForm(w, r); err != nil {
		return media.Image{}, err
	}
	img, ok, err := formImage(r, field)
	if err != nil {
		return media.Image{}, err
	}
	if !ok {
		return media.Image{}, badRequest("missing %s image", field)
	}
	return img, nil
}

// formImages reads every file uploaded under field, in form order.
func formImages(r *http.Request, field string) ([]media.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []media.Image
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			return nil, badRequest("read %s image", field)
		}
		img, err := media.Read(f, fh.Header.Get("Content-Type"))
		f.Close()
		if err != nil {
			return nil, badRequest("read %s image", field)
		}
		out = append(out, img)
	}
	return out, nil
}
