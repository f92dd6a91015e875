// Package studio owns the per-user poster sessions and runs the flows that
// leave the process: compositing plus generation, background work, scene
// suggestions, analysis and video.
package studio

import (
	"sort"
	"time"

	"poster-studio/internal/apperr"
	"poster-studio/internal/gemini"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
)

// Options are the poster view selections that feed the prompt.
type Options struct {
	AspectRatio  poster.AspectRatio `json:"aspectRatio"`
	Quality      prompt.Quality     `json:"quality"`
	Lighting     string             `json:"lighting,omitempty"`
	Atmosphere   string             `json:"atmosphere,omitempty"`
	Supplement   string             `json:"supplement,omitempty"`
	PreserveFace bool               `json:"preserveFace"`
	Variations   int                `json:"variations"`
	Scene        string             `json:"scene,omitempty"`
	Stage        string             `json:"stage,omitempty"`
}

// OptionsPatch changes a subset of Options.
type OptionsPatch struct {
	AspectRatio  *string `json:"aspectRatio,omitempty"`
	Quality      *string `json:"quality,omitempty"`
	Lighting     *string `json:"lighting,omitempty"`
	Atmosphere   *string `json:"atmosphere,omitempty"`
	Supplement   *string `json:"supplement,omitempty"`
	PreserveFace *bool   `json:"preserveFace,omitempty"`
	Variations   *int    `json:"variations,omitempty"`
	Scene        *string `json:"scene,omitempty"`
	Stage        *string `json:"stage,omitempty"`
}

const maxVariations = 4

// Session is the state of one poster view. It is only touched inside
// Store.Update.
type Session struct {
	ID         string
	Poster     *poster.Store
	Controller *poster.Controller
	Options    Options

	Face        *media.Image
	Gallery     []media.Image
	Results     []media.Image
	Prompt      string
	Suggestions *gemini.SceneSuggestions

	pending   map[string]bool
	Error     string
	UpdatedAt time.Time
}

func newSession(id string, variations int, opts ...poster.Option) *Session {
	ps := poster.NewStore(poster.DefaultCanvas(), opts...)
	return &Session{
		ID:         id,
		Poster:     ps,
		Controller: poster.NewController(ps),
		Options: Options{
			AspectRatio: ps.Canvas().AspectRatio,
			Quality:     prompt.QualityStandard,
			Variations:  variations,
		},
		pending: make(map[string]bool),
	}
}

// Apply validates and applies an options patch. An aspect ratio change also
// reshapes the viewport.
func (s *Session) Apply(p OptionsPatch) error {
	next := s.Options
	if p.AspectRatio != nil {
		ar, err := poster.ParseAspectRatio(*p.AspectRatio)
		if err != nil {
			return apperr.Wrap(apperr.CodeInvalidInput, err, "unsupported aspect ratio %q", *p.AspectRatio)
		}
		next.AspectRatio = ar
	}
	if p.Quality != nil {
		q, ok := prompt.ParseQuality(*p.Quality)
		if !ok {
			return apperr.New(apperr.CodeInvalidInput, "unsupported quality %q", *p.Quality)
		}
		next.Quality = q
	}
	if p.Variations != nil {
		if *p.Variations < 1 || *p.Variations > maxVariations {
			return apperr.New(apperr.CodeInvalidInput, "variations must be between 1 and %d", maxVariations)
		}
		next.Variations = *p.Variations
	}
	if p.Lighting != nil {
		next.Lighting = *p.Lighting
	}
	if p.Atmosphere != nil {
		next.Atmosphere = *p.Atmosphere
	}
	if p.Supplement != nil {
		next.Supplement = *p.Supplement
	}
	if p.PreserveFace != nil {
		next.PreserveFace = *p.PreserveFace
	}
	if p.Scene != nil {
		next.Scene = *p.Scene
	}
	if p.Stage != nil {
		next.Stage = *p.Stage
	}

	if next.AspectRatio != s.Options.AspectRatio {
		c := s.Poster.Canvas()
		c.AspectRatio = next.AspectRatio
		s.Poster.SetCanvas(c)
	}
	s.Options = next
	return nil
}

// Busy reports whether op is in flight.
func (s *Session) Busy(op string) bool {
	return s.pending[op]
}

// Pending lists the operations in flight, sorted.
func (s *Session) Pending() []string {
	out := make([]string, 0, len(s.pending))
	for op := range s.pending {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// PosterOptions maps the session to the poster prompt builder.
func (s *Session) PosterOptions(sc poster.Scene) prompt.PosterOptions {
	_, flagged := flaggedMain(sc.Layers)
	return prompt.PosterOptions{
		PreserveFace:       s.Options.PreserveFace && s.Face != nil,
		MainProductFlagged: flagged,
		Lighting:           s.Options.Lighting,
		Atmosphere:         s.Options.Atmosphere,
		Quality:            s.Options.Quality,
		Supplement:         s.Options.Supplement,
		Variations:         s.Options.Variations,
	}
}

func flaggedMain(layers []poster.Layer) (poster.Layer, bool) {
	for _, l := range layers {
		if l.MainProduct {
			return l, true
		}
	}
	return poster.Layer{}, false
}

// View is the JSON form of a session.
type View struct {
	ID            string                   `json:"id"`
	Canvas        poster.Canvas            `json:"canvas"`
	Size          poster.Size              `json:"size"`
	Layers        []poster.Layer           `json:"layers"`
	HasBackground bool                     `json:"hasBackground"`
	HasFace       bool                     `json:"hasFace"`
	Selected      string                   `json:"selected,omitempty"`
	Interaction   string                   `json:"interaction"`
	Options       Options                  `json:"options"`
	Gallery       int                      `json:"gallery"`
	Results       []media.Image            `json:"results,omitempty"`
	Prompt        string                   `json:"prompt,omitempty"`
	Suggestions   *gemini.SceneSuggestions `json:"suggestions,omitempty"`
	Pending       []string                 `json:"pending,omitempty"`
	Error         string                   `json:"error,omitempty"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

func (s *Session) View() View {
	phase, _ := s.Controller.State()
	_, hasBG := s.Poster.Background()
	return View{
		ID:            s.ID,
		Canvas:        s.Poster.Canvas(),
		Size:          s.Poster.Canvas().Size(),
		Layers:        s.Poster.Layers(),
		HasBackground: hasBG,
		HasFace:       s.Face != nil,
		Selected:      s.Poster.SelectedID(),
		Interaction:   phase.String(),
		Options:       s.Options,
		Gallery:       len(s.Gallery),
		Results:       append([]media.Image(nil), s.Results...),
		Prompt:        s.Prompt,
		Suggestions:   s.Suggestions,
		Pending:       s.Pending(),
		Error:         s.Error,
		UpdatedAt:     s.UpdatedAt,
	}
}
