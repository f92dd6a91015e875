package poster

import (
	"fmt"
	"strings"
)

// Layout names a layout strategy.
type Layout string

const (
	LayoutFreeform   Layout = "freeform"
	LayoutCenterMain Layout = "center-main"
	LayoutSideBySide Layout = "side-by-side"
)

func ParseLayout(value string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(value))); l {
	case LayoutFreeform, LayoutCenterMain, LayoutSideBySide:
		return l, nil
	case "":
		return LayoutFreeform, nil
	}
	return "", fmt.Errorf("unknown layout %q", value)
}

// ApplyLayout returns a copy of layers with the main product and title text
// repositioned for layout on a canvas of the given size. Other layers are
// copied unchanged. The input slice is not modified.
func ApplyLayout(layers []Layer, layout Layout, size Size) []Layer {
	out := cloneLayers(layers)
	if layout != LayoutCenterMain && layout != LayoutSideBySide {
		return out
	}

	main := mainProductIndex(out)
	title := titleIndex(out)
	if title == main {
		title = -1
	}

	switch layout {
	case LayoutCenterMain:
		if main >= 0 {
			l := &out[main]
			l.Width = size.W * 0.6
			l.Height = l.Width / layoutAspect(*l, 1.5)
			l.X = (size.W - l.Width) / 2
			l.Y = (size.H - l.Height) / 2
		}
		if title >= 0 {
			l := &out[title]
			l.X = (size.W - l.Width) / 2
			l.Y = size.H * 0.1
		}
	case LayoutSideBySide:
		padding := size.W * 0.05
		if main >= 0 {
			l := &out[main]
			l.Width = size.W * 0.4
			l.Height = l.Width / layoutAspect(*l, 1)
			l.X = padding
			l.Y = (size.H - l.Height) / 2
		}
		if title >= 0 {
			l := &out[title]
			l.X = size.W * 0.5
			l.Y = size.H * 0.4
		}
	}
	return out
}

func layoutAspect(l Layer, fallback float64) float64 {
	if img, ok := l.Image(); ok && img.AspectRatio > 0 {
		return img.AspectRatio
	}
	return fallback
}
