// Package poster holds the layer model of a poster: the layer store, the
// drag interaction state machine, the layout normalizer and the exported
// document form.
package poster

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"poster-studio/internal/media"
)

const (
	defaultImageOffset = 20.0
	defaultImageWidth  = 200.0
	defaultLogoWidth   = 100.0
	logoZBoost         = 10
)

// Patch lists property changes for UpdateLayer. Nil fields are left alone;
// payload fields that do not match the layer kind are ignored.
type Patch struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	ZIndex      *int     `json:"zIndex,omitempty"`
	Visible     *bool    `json:"visible,omitempty"`
	Locked      *bool    `json:"locked,omitempty"`
	MainProduct *bool    `json:"isMainProduct,omitempty"`

	Content    *string     `json:"content,omitempty"`
	FontFamily *string     `json:"fontFamily,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	Color      *string     `json:"color,omitempty"`
	Weight     *FontWeight `json:"fontWeight,omitempty"`
	Style      *FontStyle  `json:"fontStyle,omitempty"`

	Image       *media.Image `json:"image,omitempty"`
	AspectRatio *float64     `json:"aspectRatio,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store owns the layers of one poster and its background. It is not safe
// for concurrent use; callers serialize access.
type Store struct {
	canvas     Canvas
	layers     []Layer
	background *media.Image
	selected   string
	newID      func() string
}

func NewStore(canvas Canvas, opts ...Option) *Store {
	s := &Store{
		canvas: canvas.normalized(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Canvas() Canvas {
	return s.canvas
}

// SetCanvas changes the viewport. Layer coordinates are kept as they are.
func (s *Store) SetCanvas(c Canvas) {
	s.canvas = c.normalized()
}

// AddImageLayer inserts an image at the default offset above every layer
// and selects it.
func (s *Store) AddImageLayer(img media.Image, aspectRatio float64) string {
	width := math.Min(defaultImageWidth, s.canvas.Width*0.4)
	return s.addImage(img, aspectRatio, width, 1)
}

// AddLogoLayer inserts a small image that floats above everything else.
func (s *Store) AddLogoLayer(img media.Image, aspectRatio float64) string {
	return s.addImage(img, aspectRatio, defaultLogoWidth, logoZBoost)
}

func (s *Store) addImage(img media.Image, aspectRatio, width float64, zBoost int) string {
	if !validAspect(aspectRatio) {
		aspectRatio = 1
	}
	width, height := imageSize(width, aspectRatio)

	layer := Layer{
		ID:      s.newID(),
		X:       defaultImageOffset,
		Y:       defaultImageOffset,
		Width:   width,
		Height:  height,
		Opacity: 1,
		ZIndex:  s.maxZ() + zBoost,
		Visible: true,
		Payload: &ImagePayload{Image: img, AspectRatio: aspectRatio},
	}
	s.layers = append(s.layers, layer)
	s.selected = layer.ID
	return layer.ID
}

// AddTextLayer inserts a placeholder text box and selects it.
func (s *Store) AddTextLayer() string {
	layer := Layer{
		ID:      s.newID(),
		X:       50,
		Y:       50,
		Width:   250,
		Height:  60,
		Opacity: 1,
		ZIndex:  s.maxZ() + 1,
		Visible: true,
		Payload: &TextPayload{
			Content:    "Your text here",
			FontFamily: "Arial, sans-serif",
			FontSize:   48,
			Color:      "#FFFFFF",
			Weight:     WeightNormal,
			Style:      StyleNormal,
		},
	}
	s.layers = append(s.layers, layer)
	s.selected = layer.ID
	return layer.ID
}

func (s *Store) maxZ() int {
	if len(s.layers) == 0 {
		return 0
	}
	max := s.layers[0].ZIndex
	for _, l := range s.layers[1:] {
		if l.ZIndex > max {
			max = l.ZIndex
		}
	}
	return max
}

func (s *Store) index(id string) int {
	for i := range s.layers {
		if s.layers[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateLayer applies p to the layer. Setting MainProduct clears the flag on
// every other layer in the same call. Unknown ids are a no-op.
func (s *Store) UpdateLayer(id string, p Patch) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}

	next := s.layers[i].Clone()
	applyPatch(&next, p)

	if p.MainProduct != nil && *p.MainProduct {
		for j := range s.layers {
			s.layers[j].MainProduct = false
		}
	}
	s.layers[i] = next
	return true
}

func applyPatch(l *Layer, p Patch) {
	if p.X != nil {
		l.X = *p.X
	}
	if p.Y != nil {
		l.Y = *p.Y
	}
	if p.Rotation != nil {
		l.Rotation = normalizeRotation(*p.Rotation)
	}
	if p.Opacity != nil {
		l.Opacity = clamp(*p.Opacity, 0, 1)
	}
	if p.ZIndex != nil {
		l.ZIndex = *p.ZIndex
	}
	if p.Visible != nil {
		l.Visible = *p.Visible
	}
	if p.Locked != nil {
		l.Locked = *p.Locked
	}
	if p.MainProduct != nil {
		l.MainProduct = *p.MainProduct
	}

	switch payload := l.Payload.(type) {
	case *ImagePayload:
		if p.Image != nil {
			payload.Image = *p.Image
		}
		if p.AspectRatio != nil && validAspect(*p.AspectRatio) {
			payload.AspectRatio = *p.AspectRatio
		}
		width := l.Width
		if p.Width != nil && finite(*p.Width) {
			width = *p.Width
		}
		if (p.Width != nil || p.AspectRatio != nil) && validAspect(payload.AspectRatio) {
			l.Width, l.Height = imageSize(width, payload.AspectRatio)
		} else {
			l.Width = math.Max(MinSize, width)
		}
	case *TextPayload:
		if p.Content != nil {
			payload.Content = *p.Content
		}
		if p.FontFamily != nil {
			payload.FontFamily = *p.FontFamily
		}
		if p.FontSize != nil {
			payload.FontSize = math.Max(1, *p.FontSize)
		}
		if p.Color != nil {
			payload.Color = *p.Color
		}
		if p.Weight != nil {
			payload.Weight = *p.Weight
		}
		if p.Style != nil {
			payload.Style = *p.Style
		}
		if p.Width != nil && finite(*p.Width) {
			l.Width = math.Max(MinSize, *p.Width)
		}
	}
	if p.Height != nil && finite(*p.Height) {
		l.Height = math.Max(MinSize, *p.Height)
	}
}

// imageSize returns the size of an image layer of the given width. Height
// follows the aspect ratio; when it would fall under the floor it is floored
// and the width re-derived so the ratio still holds.
func imageSize(width, aspect float64) (float64, float64) {
	w := math.Max(MinSize, width)
	h := w / aspect
	if h < MinSize {
		h = MinSize
		w = h * aspect
	}
	return w, h
}

func validAspect(a float64) bool {
	return a > 0 && finite(a)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DeleteLayer removes the layer and clears the selection if it pointed at it.
func (s *Store) DeleteLayer(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	return true
}

func (s *Store) SetVisible(id string, visible bool) bool {
	return s.UpdateLayer(id, Patch{Visible: &visible})
}

func (s *Store) SetLocked(id string, locked bool) bool {
	return s.UpdateLayer(id, Patch{Locked: &locked})
}

// Select marks id as selected. An empty id clears the selection.
func (s *Store) Select(id string) bool {
	if id == "" {
		s.selected = ""
		return true
	}
	if s.index(id) < 0 {
		return false
	}
	s.selected = id
	return true
}

func (s *Store) SelectedID() string {
	return s.selected
}

func (s *Store) Selected() (Layer, bool) {
	return s.Layer(s.selected)
}

func (s *Store) Layer(id string) (Layer, bool) {
	i := s.index(id)
	if i < 0 {
		return Layer{}, false
	}
	return s.layers[i].Clone(), true
}

func (s *Store) Len() int {
	return len(s.layers)
}

// Layers returns copies of the layers in insertion order.
func (s *Store) Layers() []Layer {
	return cloneLayers(s.layers)
}

// DrawOrder returns copies of the layers sorted by ascending z-index; ties
// keep insertion order.
func (s *Store) DrawOrder() []Layer {
	return sortByZ(cloneLayers(s.layers))
}

// MainProduct returns the flagged layer, or the first image layer.
func (s *Store) MainProduct() (Layer, bool) {
	i := mainProductIndex(s.layers)
	if i < 0 {
		return Layer{}, false
	}
	return s.layers[i].Clone(), true
}

// TitleText returns the first text layer in insertion order.
func (s *Store) TitleText() (Layer, bool) {
	i := titleIndex(s.layers)
	if i < 0 {
		return Layer{}, false
	}
	return s.layers[i].Clone(), true
}

func (s *Store) SetBackground(img media.Image) {
	s.background = &img
}

func (s *Store) ClearBackground() {
	s.background = nil
}

func (s *Store) Background() (media.Image, bool) {
	if s.background == nil {
		return media.Image{}, false
	}
	return *s.background, true
}

// ApplyLayout repositions the main product and title layers.
func (s *Store) ApplyLayout(layout Layout) {
	s.layers = ApplyLayout(s.layers, layout, s.canvas.Size())
}

// ApplyTextPreset copies a named text style onto a text layer.
func (s *Store) ApplyTextPreset(id, preset string) bool {
	tp, ok := LookupTextPreset(preset)
	if !ok {
		return false
	}
	l, ok := s.Layer(id)
	if !ok || l.Kind() != KindText {
		return false
	}
	return s.UpdateLayer(id, tp.Patch())
}

// Snapshot copies the state the compositor needs.
func (s *Store) Snapshot() Scene {
	sc := Scene{
		Canvas: s.canvas,
		Layers: cloneLayers(s.layers),
	}
	if s.background != nil {
		bg := *s.background
		sc.Background = &bg
	}
	return sc
}

// Scene is an immutable copy of a poster taken at one moment.
type Scene struct {
	Canvas     Canvas
	Background *media.Image
	Layers     []Layer
}

// DrawOrder returns the visible layers in ascending z-order.
func (sc Scene) DrawOrder() []Layer {
	var out []Layer
	for _, l := range sortByZ(cloneLayers(sc.Layers)) {
		if l.Visible {
			out = append(out, l)
		}
	}
	return out
}

// MainProduct resolves the main product layer of the scene.
func (sc Scene) MainProduct() (Layer, bool) {
	i := mainProductIndex(sc.Layers)
	if i < 0 {
		return Layer{}, false
	}
	return sc.Layers[i], true
}

func mainProductIndex(layers []Layer) int {
	for i, l := range layers {
		if l.MainProduct {
			return i
		}
	}
	for i, l := range layers {
		if l.Kind() == KindImage {
			return i
		}
	}
	return -1
}

func titleIndex(layers []Layer) int {
	for i, l := range layers {
		if l.Kind() == KindText {
			return i
		}
	}
	return -1
}

func cloneLayers(in []Layer) []Layer {
	out := make([]Layer, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}

func sortByZ(layers []Layer) []Layer {
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].ZIndex < layers[j].ZIndex
	})
	return layers
}

func normalizeRotation(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	}
	if deg <= -180 {
		deg += 360
	}
	return deg
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
