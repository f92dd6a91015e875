// Package compositor flattens a poster scene into a single raster.
package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"poster-studio/internal/apperr"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
)

// DefaultWidth is the output width used when Options.Width is unset.
const DefaultWidth = 1024

type Options struct {
	// AspectRatio of the output. Empty means the scene's canvas ratio.
	AspectRatio poster.AspectRatio
	Width       int
	Format      media.Format
	Quality     int
}

func (o Options) withDefaults(sc poster.Scene) Options {
	if o.AspectRatio == "" {
		o.AspectRatio = sc.Canvas.AspectRatio
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Format == "" {
		o.Format = media.JPEG
	}
	if o.Quality <= 0 {
		o.Quality = 90
	}
	return o
}

// OutputSize returns the pixel size Render will produce.
func (o Options) OutputSize() (int, int) {
	w := o.Width
	if w <= 0 {
		w = DefaultWidth
	}
	h := int(math.Round(o.AspectRatio.HeightFor(float64(w))))
	if h < 1 {
		h = 1
	}
	return w, h
}

// Render draws the background (cover-fit, white when absent) and then every
// visible layer in ascending z-order. Any image that fails to decode aborts
// the render.
func Render(sc poster.Scene, opts Options) (image.Image, error) {
	opts = opts.withDefaults(sc)
	outW, outH := opts.OutputSize()

	dc := gg.NewContext(outW, outH)
	dc.SetColor(color.White)
	dc.Clear()

	if sc.Background != nil {
		bg, err := media.Decode(*sc.Background)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeComposite, err, "background image could not be decoded")
		}
		dc.DrawImage(imaging.Fill(bg, outW, outH, imaging.Center, imaging.Lanczos), 0, 0)
	}

	viewport := sc.Canvas.Width
	if viewport <= 0 {
		viewport = poster.DefaultViewportWidth
	}
	scale := float64(outW) / viewport

	for _, l := range sc.DrawOrder() {
		if err := drawLayer(dc, l, scale); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

// Compose renders and encodes the scene.
func Compose(sc poster.Scene, opts Options) (media.Image, error) {
	opts = opts.withDefaults(sc)
	img, err := Render(sc, opts)
	if err != nil {
		return media.Image{}, err
	}
	out, err := media.Encode(img, opts.Format, opts.Quality)
	if err != nil {
		return media.Image{}, apperr.Wrap(apperr.CodeComposite, err, "composite could not be encoded")
	}
	return out, nil
}

func drawLayer(dc *gg.Context, l poster.Layer, scale float64) error {
	w := l.Width * scale
	h := l.Height * scale
	cx := l.X*scale + w/2
	cy := l.Y*scale + h/2

	dc.Push()
	defer dc.Pop()
	dc.Translate(cx, cy)
	dc.Rotate(gg.Radians(l.Rotation))

	switch p := l.Payload.(type) {
	case *poster.ImagePayload:
		src, err := media.Decode(p.Image)
		if err != nil {
			return apperr.Wrap(apperr.CodeComposite, err, "layer %s image could not be decoded", l.ID)
		}
		sized := imaging.Resize(src, pixels(w), pixels(h), imaging.Lanczos)
		if l.Opacity < 1 {
			sized = withOpacity(sized, l.Opacity)
		}
		dc.DrawImageAnchored(sized, 0, 0, 0.5, 0.5)
	case *poster.TextPayload:
		face, err := faceFor(p, p.FontSize*scale)
		if err != nil {
			return apperr.Wrap(apperr.CodeComposite, err, "layer %s font unavailable", l.ID)
		}
		dc.SetFontFace(face)
		dc.SetColor(textColor(p.Color, l.Opacity))
		dc.DrawStringAnchored(p.Content, 0, 0, 0.5, 0.5)
	}
	return nil
}

func pixels(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

func withOpacity(img *image.NRGBA, opacity float64) *image.NRGBA {
	opacity = math.Max(0, math.Min(1, opacity))
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = uint8(math.Round(float64(c.A) * opacity))
		return c
	})
}

// textColor parses a hex color; unparseable values fall back to white.
func textColor(hex string, opacity float64) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		c = colorful.Color{R: 1, G: 1, B: 1}
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(255 * math.Max(0, math.Min(1, opacity))))}
}
