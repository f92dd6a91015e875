package studio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"poster-studio/internal/apperr"
	"poster-studio/internal/compositor"
	"poster-studio/internal/gemini"
	"poster-studio/internal/library"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
)

// Library sources written by the service.
const (
	SourcePoster = "posterCreator"
	SourceEditor = "editor"
	SourceVideo  = "videoCreator"
)

// Operation names reported in Session.Pending.
const (
	OpGenerate   = "generate"
	OpBackground = "background"
	OpRemoveBG   = "remove-background"
	OpSuggest    = "suggest-scene"
	OpAnalyze    = "analyze"
)

// Generator is the generative collaborator. *gemini.Client implements it.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string, refs []media.Image, opts gemini.ImageOptions) (media.Image, error)
	GenerateImages(ctx context.Context, prompt string, refs []media.Image, n int, opts gemini.ImageOptions) ([]media.Image, error)
	RemoveBackground(ctx context.Context, img media.Image) (media.Image, error)
	Describe(ctx context.Context, instruction string, imgs []media.Image) (string, error)
	SuggestScenes(ctx context.Context, instruction string, imgs []media.Image) (gemini.SceneSuggestions, error)
	SuggestList(ctx context.Context, instruction string, imgs []media.Image) ([]string, error)
	ReviewPrompt(ctx context.Context, instruction string, imgs []media.Image) (gemini.PromptReview, error)
	GenerateVideo(ctx context.Context, prompt string, img *media.Image, opts gemini.VideoOptions) (media.Image, error)
}

// Timeouts bound each call class.
type Timeouts struct {
	Generate time.Duration
	Analyze  time.Duration
	Video    time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Generate <= 0 {
		t.Generate = 180 * time.Second
	}
	if t.Analyze <= 0 {
		t.Analyze = 60 * time.Second
	}
	if t.Video <= 0 {
		t.Video = 10 * time.Minute
	}
	return t
}

type ServiceOptions struct {
	Sessions    *Store
	Generator   Generator
	Library     *library.Library
	Timeouts    Timeouts
	OutputWidth int
	Logger      *slog.Logger
}

type Service struct {
	sessions *Store
	gen      Generator
	lib      *library.Library
	timeouts Timeouts
	width    int
	logger   *slog.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewStore(StoreOptions{})
	}
	lib := opts.Library
	if lib == nil {
		lib = library.New(0)
	}
	width := opts.OutputWidth
	if width <= 0 {
		width = compositor.DefaultWidth
	}
	return &Service{
		sessions: sessions,
		gen:      opts.Generator,
		lib:      lib,
		timeouts: opts.Timeouts.withDefaults(),
		width:    width,
		logger:   logger,
	}
}

func (s *Service) Sessions() *Store { return s.sessions }

func (s *Service) Library() *library.Library { return s.lib }

// Role says where an uploaded image goes.
type Role string

const (
	RoleProduct    Role = "product"
	RoleLogo       Role = "logo"
	RoleBackground Role = "background"
	RoleFace       Role = "face"
	RoleGallery    Role = "gallery"
)

func ParseRole(value string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(value))); r {
	case RoleProduct, RoleLogo, RoleBackground, RoleFace, RoleGallery:
		return r, nil
	case "":
		return RoleProduct, nil
	}
	return "", apperr.New(apperr.CodeInvalidInput, "unknown image role %q", value)
}

// Upload validates img and places it according to role. For layer roles the
// new layer id is returned.
func (s *Service) Upload(id string, role Role, img media.Image) (string, error) {
	if err := media.Validate(img); err != nil {
		return "", err
	}

	var aspect float64
	if role == RoleProduct || role == RoleLogo {
		a, err := media.AspectRatio(img)
		if err != nil {
			return "", err
		}
		aspect = a
	}

	var layerID string
	err := s.sessions.Update(id, func(sess *Session) error {
		switch role {
		case RoleProduct:
			layerID = sess.Poster.AddImageLayer(img, aspect)
		case RoleLogo:
			layerID = sess.Poster.AddLogoLayer(img, aspect)
		case RoleBackground:
			sess.Poster.SetBackground(img)
		case RoleFace:
			face := img
			sess.Face = &face
		case RoleGallery:
			sess.Gallery = append(sess.Gallery, img)
		default:
			return apperr.New(apperr.CodeInvalidInput, "unknown image role %q", role)
		}
		return nil
	})
	return layerID, err
}

// AddGalleryImage puts gallery image i on the poster as a new layer.
func (s *Service) AddGalleryImage(id string, i int) (string, error) {
	var img media.Image
	err := s.sessions.Update(id, func(sess *Session) error {
		if i < 0 || i >= len(sess.Gallery) {
			return apperr.New(apperr.CodeNotFound, "gallery image %d not found", i)
		}
		img = sess.Gallery[i]
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.Upload(id, RoleProduct, img)
}

// PosterPrompt returns the instruction GeneratePoster would send.
func (s *Service) PosterPrompt(id string) (string, error) {
	var text string
	err := s.sessions.Update(id, func(sess *Session) error {
		text = prompt.Poster(sess.PosterOptions(sess.Poster.Snapshot()))
		return nil
	})
	return text, err
}

// Composite renders the poster without calling the generator.
func (s *Service) Composite(id string, format media.Format) (media.Image, error) {
	var sc poster.Scene
	var ar poster.AspectRatio
	err := s.sessions.Update(id, func(sess *Session) error {
		sc = sess.Poster.Snapshot()
		ar = sess.Options.AspectRatio
		return nil
	})
	if err != nil {
		return media.Image{}, err
	}
	return compositor.Compose(sc, compositor.Options{AspectRatio: ar, Width: s.width, Format: format})
}

// PosterResult is the outcome of GeneratePoster. Images holds the composite
// followed by the generated variations.
type PosterResult struct {
	Prompt    string         `json:"prompt"`
	Composite media.Image    `json:"composite"`
	Images    []media.Image  `json:"images"`
	Items     []library.Item `json:"items,omitempty"`
}

// GeneratePoster flattens the poster, sends it with the assembled prompt and
// records composite plus variations in the library. Layers are never touched
// by a failure.
func (s *Service) GeneratePoster(ctx context.Context, id string) (res PosterResult, err error) {
	var (
		sc   poster.Scene
		opts Options
		face *media.Image
		po   prompt.PosterOptions
	)
	err = s.begin(id, OpGenerate, func(sess *Session) error {
		if _, ok := sess.Poster.Background(); !ok {
			return apperr.New(apperr.CodeInvalidInput, "add or generate a background image first")
		}
		sc = sess.Poster.Snapshot()
		opts = sess.Options
		if sess.Face != nil && opts.PreserveFace {
			f := *sess.Face
			face = &f
		}
		po = sess.PosterOptions(sc)
		sess.Results = nil
		return nil
	})
	if err != nil {
		return PosterResult{}, err
	}
	defer func() { s.finish(id, OpGenerate, err) }()

	composite, err := compositor.Compose(sc, compositor.Options{
		AspectRatio: opts.AspectRatio,
		Width:       s.width,
		Format:      media.JPEG,
	})
	if err != nil {
		return PosterResult{}, err
	}

	text := prompt.Poster(po)
	refs := []media.Image{composite}
	if face != nil {
		refs = append(refs, *face)
	}

	var variations []media.Image
	err = s.call(ctx, s.timeouts.Generate, func(ctx context.Context) error {
		var callErr error
		variations, callErr = s.gen.GenerateImages(ctx, text, refs, po.Variations, gemini.ImageOptions{
			AspectRatio: string(opts.AspectRatio),
		})
		return callErr
	})
	if err != nil {
		return PosterResult{}, err
	}

	images := append([]media.Image{composite}, variations...)
	items := s.lib.Add(library.KindImage, images, text, SourcePoster)
	s.logger.Info("poster generated", "session", id, "variations", len(variations))

	err = s.sessions.Update(id, func(sess *Session) error {
		sess.Results = images
		sess.Prompt = text
		return nil
	})
	return PosterResult{Prompt: text, Composite: composite, Images: images, Items: items}, err
}

// GenerateBackground creates a background from the session's scene and stage
// and installs it.
func (s *Service) GenerateBackground(ctx context.Context, id string) (img media.Image, err error) {
	var text string
	err = s.begin(id, OpBackground, func(sess *Session) error {
		var perr error
		text, perr = prompt.Background(sess.Options.Scene, sess.Options.Stage)
		return perr
	})
	if err != nil {
		return media.Image{}, err
	}
	defer func() { s.finish(id, OpBackground, err) }()

	err = s.call(ctx, s.timeouts.Generate, func(ctx context.Context) error {
		var callErr error
		img, callErr = s.gen.GenerateImage(ctx, text, nil, gemini.ImageOptions{})
		return callErr
	})
	if err != nil {
		return media.Image{}, err
	}

	err = s.sessions.Update(id, func(sess *Session) error {
		sess.Poster.SetBackground(img)
		return nil
	})
	return img, err
}

// RemoveLayerBackground cuts out the subject of an image layer and swaps it
// into the layer, keeping the layer's width.
func (s *Service) RemoveLayerBackground(ctx context.Context, id, layerID string) (err error) {
	var src media.Image
	err = s.begin(id, OpRemoveBG, func(sess *Session) error {
		l, ok := sess.Poster.Layer(layerID)
		if !ok {
			return apperr.New(apperr.CodeNotFound, "layer %s not found", layerID)
		}
		ip, ok := l.Image()
		if !ok {
			return apperr.New(apperr.CodeInvalidInput, "layer %s is not an image", layerID)
		}
		src = ip.Image
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { s.finish(id, OpRemoveBG, err) }()

	out, aspect, err := s.removeBackground(ctx, src)
	if err != nil {
		return err
	}

	return s.sessions.Update(id, func(sess *Session) error {
		sess.Poster.UpdateLayer(layerID, poster.Patch{Image: &out, AspectRatio: &aspect})
		return nil
	})
}

// RemoveGalleryBackground replaces gallery image i with its cut-out.
func (s *Service) RemoveGalleryBackground(ctx context.Context, id string, i int) (err error) {
	var src media.Image
	err = s.begin(id, OpRemoveBG, func(sess *Session) error {
		if i < 0 || i >= len(sess.Gallery) {
			return apperr.New(apperr.CodeNotFound, "gallery image %d not found", i)
		}
		src = sess.Gallery[i]
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { s.finish(id, OpRemoveBG, err) }()

	out, _, err := s.removeBackground(ctx, src)
	if err != nil {
		return err
	}
	return s.sessions.Update(id, func(sess *Session) error {
		if i < len(sess.Gallery) {
			sess.Gallery[i] = out
		}
		return nil
	})
}

func (s *Service) removeBackground(ctx context.Context, src media.Image) (media.Image, float64, error) {
	var out media.Image
	err := s.call(ctx, s.timeouts.Generate, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.gen.RemoveBackground(ctx, src)
		return callErr
	})
	if err != nil {
		return media.Image{}, 0, err
	}
	aspect, err := media.AspectRatio(out)
	if err != nil {
		return media.Image{}, 0, apperr.Wrap(apperr.CodeExternal, err, "background removal returned an unreadable image")
	}
	return out, aspect, nil
}

// SuggestScenes asks for scene and stage ideas from the visible layers.
func (s *Service) SuggestScenes(ctx context.Context, id string) (sug gemini.SceneSuggestions, err error) {
	var (
		imgs  []media.Image
		texts []string
	)
	err = s.begin(id, OpSuggest, func(sess *Session) error {
		layers := sess.Poster.Layers()
		if len(layers) == 0 {
			return apperr.New(apperr.CodeInvalidInput, "add a product, logo or text to the poster first")
		}
		for _, l := range layers {
			if !l.Visible {
				continue
			}
			if ip, ok := l.Image(); ok {
				imgs = append(imgs, ip.Image)
			}
			if tp, ok := l.Text(); ok {
				texts = append(texts, tp.Content)
			}
		}
		sess.Suggestions = nil
		return nil
	})
	if err != nil {
		return gemini.SceneSuggestions{}, err
	}
	defer func() { s.finish(id, OpSuggest, err) }()

	err = s.call(ctx, s.timeouts.Analyze, func(ctx context.Context) error {
		var callErr error
		sug, callErr = s.gen.SuggestScenes(ctx, prompt.SceneSuggestion(texts), imgs)
		return callErr
	})
	if err != nil {
		return gemini.SceneSuggestions{}, err
	}

	err = s.sessions.Update(id, func(sess *Session) error {
		out := sug
		sess.Suggestions = &out
		return nil
	})
	return sug, err
}

// Stage names of the scene analysis pipeline.
const (
	StageUpload   = "upload"
	StageContext  = "context"
	StageStyle    = "style"
	StageOptimize = "optimize"
)

// AnalysisPipeline builds the reference-image analysis: validate the upload,
// describe its setting and its style, and optionally rewrite the setting as a
// generation instruction.
func (s *Service) AnalysisPipeline(img media.Image, optimize bool) *Pipeline {
	describe := func(instruction string) func(context.Context, map[string]string) (string, error) {
		return func(ctx context.Context, _ map[string]string) (string, error) {
			return s.gen.Describe(ctx, instruction, []media.Image{img})
		}
	}

	stages := []Stage{
		{Name: StageUpload, Run: func(context.Context, map[string]string) (string, error) {
			if err := media.Validate(img); err != nil {
				return "", err
			}
			return img.MimeType, nil
		}},
		{Name: StageContext, Needs: []string{StageUpload}, Run: describe(prompt.ContextAnalysis)},
		{Name: StageStyle, Needs: []string{StageUpload}, Run: describe(prompt.StyleAnalysis)},
	}
	if optimize {
		stages = append(stages, Stage{
			Name:  StageOptimize,
			Needs: []string{StageContext},
			Run: func(ctx context.Context, out map[string]string) (string, error) {
				return s.gen.Describe(ctx, prompt.OptimizeDescription+out[StageContext], []media.Image{img})
			},
		})
	}
	return NewPipeline(s.timeouts.Analyze, s.logger, stages...)
}

// AnalyzeScene runs the analysis pipeline on a reference image and fills the
// session scene from the best description that succeeded. Stage failures are
// reported, not returned.
func (s *Service) AnalyzeScene(ctx context.Context, id string, img media.Image, optimize bool) (reports []Report, err error) {
	if err = s.begin(id, OpAnalyze, nil); err != nil {
		return nil, err
	}
	defer func() { s.finish(id, OpAnalyze, err) }()

	p := s.AnalysisPipeline(img, optimize)
	reports = p.Run(ctx)
	out := p.Outputs()

	scene := out[StageOptimize]
	if scene == "" {
		scene = out[StageContext]
	}
	err = s.sessions.Update(id, func(sess *Session) error {
		if scene != "" {
			sess.Options.Scene = scene
		}
		if style := out[StageStyle]; style != "" && sess.Options.Supplement == "" {
			sess.Options.Supplement = "Style: " + style
		}
		return nil
	})
	return reports, err
}

// ProductShotRequest is the editor view input.
type ProductShotRequest struct {
	Character    *media.Image
	Product      *media.Image
	Details      []media.Image
	Context      string
	Style        string
	Quality      prompt.Quality
	PreserveFace bool
	Supplement   string
	AspectRatio  string
	Count        int
}

// GenerateProductShot renders the editor prompt with its reference images.
func (s *Service) GenerateProductShot(ctx context.Context, req ProductShotRequest) ([]media.Image, error) {
	if req.Character == nil && req.Product == nil {
		return nil, apperr.New(apperr.CodeInvalidInput, "add a character or a product image")
	}
	var refs []media.Image
	for _, img := range append([]*media.Image{req.Character, req.Product}, imagePtrs(req.Details)...) {
		if img == nil {
			continue
		}
		if err := media.Validate(*img); err != nil {
			return nil, err
		}
		refs = append(refs, *img)
	}

	text := prompt.ProductShot(prompt.ProductShotOptions{
		PreserveFace: req.PreserveFace,
		HasCharacter: req.Character != nil,
		HasProduct:   req.Product != nil,
		DetailImages: len(req.Details),
		Context:      req.Context,
		Style:        req.Style,
		Quality:      req.Quality,
		Supplement:   req.Supplement,
	})

	n := req.Count
	if n < 1 {
		n = 1
	}
	var out []media.Image
	err := s.call(ctx, s.timeouts.Generate, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.gen.GenerateImages(ctx, text, refs, n, gemini.ImageOptions{AspectRatio: req.AspectRatio})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	s.lib.Add(library.KindImage, out, text, SourceEditor)
	return out, nil
}

func imagePtrs(in []media.Image) []*media.Image {
	out := make([]*media.Image, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

// VideoRequest is the video view input.
type VideoRequest struct {
	Prompt      string
	Image       *media.Image
	AspectRatio string
	Resolution  string
}

// GenerateVideo runs a long video job and records it in the library.
func (s *Service) GenerateVideo(ctx context.Context, req VideoRequest) (library.Item, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return library.Item{}, apperr.New(apperr.CodeInvalidInput, "describe the video to generate")
	}
	if req.Image != nil {
		if err := media.Validate(*req.Image); err != nil {
			return library.Item{}, err
		}
	}

	var video media.Image
	err := s.call(ctx, s.timeouts.Video, func(ctx context.Context) error {
		var callErr error
		video, callErr = s.gen.GenerateVideo(ctx, text, req.Image, gemini.VideoOptions{
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
		})
		return callErr
	})
	if err != nil {
		return library.Item{}, err
	}

	items := s.lib.Add(library.KindVideo, []media.Image{video}, text, SourceVideo)
	if len(items) == 0 {
		return library.Item{}, apperr.New(apperr.CodeInternal, "video was not recorded")
	}
	return items[0], nil
}

// begin marks op as running after fn accepts the session. A second call for
// the same op while one is running is rejected.
func (s *Service) begin(id, op string, fn func(*Session) error) error {
	return s.sessions.Update(id, func(sess *Session) error {
		if sess.Busy(op) {
			return apperr.New(apperr.CodeInvalidInput, "%s is already running", op)
		}
		sess.Error = ""
		if fn != nil {
			if err := fn(sess); err != nil {
				sess.Error = apperr.UserMessage(err)
				return err
			}
		}
		sess.pending[op] = true
		return nil
	})
}

// finish clears op and records a failure message on the session.
func (s *Service) finish(id, op string, err error) {
	_ = s.sessions.Update(id, func(sess *Session) error {
		delete(sess.pending, op)
		if err != nil {
			sess.Error = apperr.UserMessage(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("studio operation failed", "session", id, "op", op, "err", err)
	}
}

// call runs fn under the call-class timeout.
func (s *Service) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if s.gen == nil {
		return apperr.New(apperr.CodeInternal, "no generator configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return classify(ctx, fn(ctx))
}

// classify gives uncoded errors a code: deadline expiries become TIMEOUT,
// anything else EXTERNAL.
func classify(ctx context.Context, err error) error {
	if err == nil || apperr.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTimeout, err, "the request took too long")
	}
	return apperr.Wrap(apperr.CodeExternal, err, "the request failed")
}
