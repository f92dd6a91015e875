package compositor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"

	"poster-studio/internal/poster"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

var (
	fontsMu sync.Mutex
	fonts   = map[fontKey]*truetype.Font{}
)

var monoFamilies = []string{"mono", "courier", "consolas", "menlo", "code"}

// keyFor maps a CSS-like family list plus weight and style onto one of the
// embedded Go fonts. Monospace families get Go Mono; everything else Go.
func keyFor(tp *poster.TextPayload) fontKey {
	family := strings.ToLower(tp.FontFamily)
	key := fontKey{
		bold:   tp.Weight == poster.WeightBold,
		italic: tp.Style == poster.StyleItalic,
	}
	for _, m := range monoFamilies {
		if strings.Contains(family, m) {
			key.mono = true
			break
		}
	}
	return key
}

func loadFont(key fontKey) (*truetype.Font, error) {
	fontsMu.Lock()
	defer fontsMu.Unlock()

	if f, ok := fonts[key]; ok {
		return f, nil
	}
	f, err := truetype.Parse(fontData[key])
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	fonts[key] = f
	return f, nil
}

// faceFor returns a face sized in pixels.
func faceFor(tp *poster.TextPayload, sizePx float64) (font.Face, error) {
	f, err := loadFont(keyFor(tp))
	if err != nil {
		return nil, err
	}
	if sizePx < 1 {
		sizePx = 1
	}
	return truetype.NewFace(f, &truetype.Options{Size: sizePx, DPI: 72, Hinting: font.HintingNone}), nil
}
