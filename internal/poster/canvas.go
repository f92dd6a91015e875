package poster

import (
	"fmt"
	"strconv"
	"strings"
)

// AspectRatio is one of the supported canvas ratios, written "w:h".
type AspectRatio string

const (
	Ratio1x1  AspectRatio = "1:1"
	Ratio4x5  AspectRatio = "4:5"
	Ratio9x16 AspectRatio = "9:16"
	Ratio16x9 AspectRatio = "16:9"
)

// AspectRatios lists the supported ratios in display order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{Ratio9x16, Ratio1x1, Ratio4x5, Ratio16x9}
}

// ParseAspectRatio normalizes value ("9x16", " 9:16 ") and checks it is supported.
func ParseAspectRatio(value string) (AspectRatio, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "x", ":")
	for _, ar := range AspectRatios() {
		if string(ar) == value {
			return ar, nil
		}
	}
	return "", fmt.Errorf("unsupported aspect ratio %q", value)
}

// Parts returns the numeric width and height terms of the ratio.
func (a AspectRatio) Parts() (float64, float64) {
	parts := strings.SplitN(string(a), ":", 2)
	if len(parts) != 2 {
		return 1, 1
	}
	w, errW := strconv.ParseFloat(parts[0], 64)
	h, errH := strconv.ParseFloat(parts[1], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 1, 1
	}
	return w, h
}

// HeightFor returns the height matching width under this ratio.
func (a AspectRatio) HeightFor(width float64) float64 {
	w, h := a.Parts()
	return width * h / w
}

// Size is a width/height pair in pixels.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// DefaultViewportWidth is the on-screen width layer coordinates are expressed in
// when the caller does not say otherwise.
const DefaultViewportWidth = 540.0

// Canvas is the viewport layers are positioned on.
type Canvas struct {
	AspectRatio AspectRatio `json:"aspectRatio"`
	Width       float64     `json:"width"`
}

// DefaultCanvas is a 9:16 poster at the default viewport width.
func DefaultCanvas() Canvas {
	return Canvas{AspectRatio: Ratio9x16, Width: DefaultViewportWidth}
}

func (c Canvas) normalized() Canvas {
	if _, err := ParseAspectRatio(string(c.AspectRatio)); err != nil {
		c.AspectRatio = Ratio9x16
	}
	if c.Width <= 0 {
		c.Width = DefaultViewportWidth
	}
	return c
}

func (c Canvas) Height() float64 {
	return c.AspectRatio.HeightFor(c.Width)
}

func (c Canvas) Size() Size {
	return Size{W: c.Width, H: c.Height()}
}
