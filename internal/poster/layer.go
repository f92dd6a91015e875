package poster

import (
	"encoding/json"
	"fmt"

	"poster-studio/internal/media"
)

// MinSize is the floor applied to layer width and height.
const MinSize = 20.0

type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

type FontWeight string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"
)

type FontStyle string

const (
	StyleNormal FontStyle = "normal"
	StyleItalic FontStyle = "italic"
)

// Payload is the kind-specific part of a layer.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// ImagePayload holds an image reference and its natural width/height ratio.
type ImagePayload struct {
	Image       media.Image `json:"image"`
	AspectRatio float64     `json:"aspectRatio"`
}

func (p *ImagePayload) Kind() Kind { return KindImage }

func (p *ImagePayload) clone() Payload {
	cp := *p
	return &cp
}

// TextPayload holds literal text and its styling.
type TextPayload struct {
	Content    string     `json:"content"`
	FontFamily string     `json:"fontFamily"`
	FontSize   float64    `json:"fontSize"`
	Color      string     `json:"color"`
	Weight     FontWeight `json:"fontWeight"`
	Style      FontStyle  `json:"fontStyle"`
}

func (p *TextPayload) Kind() Kind { return KindText }

func (p *TextPayload) clone() Payload {
	cp := *p
	return &cp
}

// Layer is one positioned element of the poster. Coordinates are viewport
// pixels with a top-left origin; rotation is clockwise degrees.
type Layer struct {
	ID          string
	X           float64
	Y           float64
	Width       float64
	Height      float64
	Rotation    float64
	Opacity     float64
	ZIndex      int
	Visible     bool
	Locked      bool
	MainProduct bool
	Payload     Payload
}

func (l Layer) Kind() Kind {
	if l.Payload == nil {
		return ""
	}
	return l.Payload.Kind()
}

// Image returns the image payload when the layer is an image layer.
func (l Layer) Image() (*ImagePayload, bool) {
	p, ok := l.Payload.(*ImagePayload)
	return p, ok
}

// Text returns the text payload when the layer is a text layer.
func (l Layer) Text() (*TextPayload, bool) {
	p, ok := l.Payload.(*TextPayload)
	return p, ok
}

// Clone returns a copy whose payload can be mutated independently.
// Image bytes are shared; they are never written in place.
func (l Layer) Clone() Layer {
	if l.Payload != nil {
		l.Payload = l.Payload.clone()
	}
	return l
}

type layerJSON struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	X           float64       `json:"x"`
	Y           float64       `json:"y"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	Rotation    float64       `json:"rotation"`
	Opacity     float64       `json:"opacity"`
	ZIndex      int           `json:"zIndex"`
	Visible     bool          `json:"visible"`
	Locked      bool          `json:"locked"`
	MainProduct bool          `json:"isMainProduct"`
	Image       *ImagePayload `json:"image,omitempty"`
	Text        *TextPayload  `json:"text,omitempty"`
}

func (l Layer) MarshalJSON() ([]byte, error) {
	out := layerJSON{
		ID:          l.ID,
		Kind:        l.Kind(),
		X:           l.X,
		Y:           l.Y,
		Width:       l.Width,
		Height:      l.Height,
		Rotation:    l.Rotation,
		Opacity:     l.Opacity,
		ZIndex:      l.ZIndex,
		Visible:     l.Visible,
		Locked:      l.Locked,
		MainProduct: l.MainProduct,
	}
	switch p := l.Payload.(type) {
	case *ImagePayload:
		out.Image = p
	case *TextPayload:
		out.Text = p
	}
	return json.Marshal(out)
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var in layerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Layer{
		ID:          in.ID,
		X:           in.X,
		Y:           in.Y,
		Width:       in.Width,
		Height:      in.Height,
		Rotation:    in.Rotation,
		Opacity:     in.Opacity,
		ZIndex:      in.ZIndex,
		Visible:     in.Visible,
		Locked:      in.Locked,
		MainProduct: in.MainProduct,
	}
	switch in.Kind {
	case KindImage:
		if in.Image == nil {
			return fmt.Errorf("layer %s: image payload missing", in.ID)
		}
		l.Payload = in.Image
	case KindText:
		if in.Text == nil {
			return fmt.Errorf("layer %s: text payload missing", in.ID)
		}
		l.Payload = in.Text
	default:
		return fmt.Errorf("layer %s: unknown kind %q", in.ID, in.Kind)
	}
	return nil
}
