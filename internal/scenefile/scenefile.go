// Package scenefile reads a poster described in TOML, the input format of the
// poster command line tool.
//
//	aspect_ratio = "9:16"
//	background   = "beach.jpg"
//	layout       = "center-main"
//
//	[prompt]
//	quality  = "ultra"
//	lighting = "sunset"
//
//	[[layer]]
//	kind         = "image"
//	path         = "bottle.png"
//	main_product = true
//
//	[[layer]]
//	kind    = "text"
//	content = "SUMMER SALE"
//	preset  = "headline"
//
// Relative paths resolve against the directory of the scene file.
package scenefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"poster-studio/internal/apperr"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
)

type File struct {
	AspectRatio   string  `toml:"aspect_ratio"`
	ViewportWidth float64 `toml:"viewport_width"`
	Background    string  `toml:"background"`
	Layout        string  `toml:"layout"`
	Prompt        Prompt  `toml:"prompt"`
	Layers        []Layer `toml:"layer"`
}

type Prompt struct {
	Quality      string `toml:"quality"`
	Lighting     string `toml:"lighting"`
	Atmosphere   string `toml:"atmosphere"`
	Supplement   string `toml:"supplement"`
	Face         string `toml:"face"`
	PreserveFace bool   `toml:"preserve_face"`
	Variations   int    `toml:"variations"`
}

type Layer struct {
	Kind        string   `toml:"kind"`
	Path        string   `toml:"path"`
	Logo        bool     `toml:"logo"`
	X           *float64 `toml:"x"`
	Y           *float64 `toml:"y"`
	Width       *float64 `toml:"width"`
	Height      *float64 `toml:"height"`
	Rotation    *float64 `toml:"rotation"`
	Opacity     *float64 `toml:"opacity"`
	ZIndex      *int     `toml:"z_index"`
	Hidden      bool     `toml:"hidden"`
	Locked      bool     `toml:"locked"`
	MainProduct bool     `toml:"main_product"`

	Content    *string  `toml:"content"`
	Preset     string   `toml:"preset"`
	FontFamily *string  `toml:"font_family"`
	FontSize   *float64 `toml:"font_size"`
	Color      *string  `toml:"color"`
	Bold       bool     `toml:"bold"`
	Italic     bool     `toml:"italic"`
}

// Scene is a loaded scene file: a ready poster store plus its prompt options.
type Scene struct {
	Poster  *poster.Store
	Options prompt.PosterOptions
	Face    *media.Image
	Layout  poster.Layout
}

// Parse decodes a TOML scene.
func Parse(data []byte) (File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return File{}, apperr.Wrap(apperr.CodeInvalidInput, err, "invalid scene file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, apperr.New(apperr.CodeInvalidInput, "unknown scene keys: %s", strings.Join(keys, ", "))
	}
	return f, nil
}

// Load reads and builds the scene at path.
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("read scene: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return Scene{}, err
	}
	return f.Build(filepath.Dir(path))
}

// Build resolves images against dir and assembles the poster.
func (f File) Build(dir string, opts ...poster.Option) (Scene, error) {
	canvas := poster.DefaultCanvas()
	if f.AspectRatio != "" {
		ar, err := poster.ParseAspectRatio(f.AspectRatio)
		if err != nil {
			return Scene{}, apperr.Wrap(apperr.CodeInvalidInput, err, "aspect_ratio")
		}
		canvas.AspectRatio = ar
	}
	if f.ViewportWidth > 0 {
		canvas.Width = f.ViewportWidth
	}

	layout, err := poster.ParseLayout(f.Layout)
	if err != nil {
		return Scene{}, apperr.Wrap(apperr.CodeInvalidInput, err, "layout")
	}

	quality := prompt.QualityStandard
	if f.Prompt.Quality != "" {
		q, ok := prompt.ParseQuality(f.Prompt.Quality)
		if !ok {
			return Scene{}, apperr.New(apperr.CodeInvalidInput, "unknown quality %q", f.Prompt.Quality)
		}
		quality = q
	}

	ps := poster.NewStore(canvas, opts...)
	if f.Background != "" {
		bg, err := readImage(dir, f.Background)
		if err != nil {
			return Scene{}, err
		}
		ps.SetBackground(bg)
	}

	for i, l := range f.Layers {
		if err := addLayer(ps, dir, l); err != nil {
			return Scene{}, fmt.Errorf("layer %d: %w", i+1, err)
		}
	}
	ps.Select("")
	ps.ApplyLayout(layout)

	sc := Scene{Poster: ps, Layout: layout}
	if f.Prompt.Face != "" {
		face, err := readImage(dir, f.Prompt.Face)
		if err != nil {
			return Scene{}, err
		}
		sc.Face = &face
	}

	sc.Options = prompt.PosterOptions{
		PreserveFace:       f.Prompt.PreserveFace && sc.Face != nil,
		MainProductFlagged: anyMain(ps.Layers()),
		Lighting:           f.Prompt.Lighting,
		Atmosphere:         f.Prompt.Atmosphere,
		Quality:            quality,
		Supplement:         f.Prompt.Supplement,
		Variations:         f.Prompt.Variations,
	}
	return sc, nil
}

func anyMain(layers []poster.Layer) bool {
	for _, l := range layers {
		if l.MainProduct {
			return true
		}
	}
	return false
}

func addLayer(ps *poster.Store, dir string, l Layer) error {
	var id string
	switch strings.ToLower(strings.TrimSpace(l.Kind)) {
	case "image", "":
		if l.Path == "" {
			return apperr.New(apperr.CodeInvalidInput, "image layer needs a path")
		}
		img, err := readImage(dir, l.Path)
		if err != nil {
			return err
		}
		aspect, err := media.AspectRatio(img)
		if err != nil {
			return err
		}
		if l.Logo {
			id = ps.AddLogoLayer(img, aspect)
		} else {
			id = ps.AddImageLayer(img, aspect)
		}
	case "text":
		id = ps.AddTextLayer()
		if l.Preset != "" && !ps.ApplyTextPreset(id, l.Preset) {
			return apperr.New(apperr.CodeInvalidInput, "unknown text preset %q", l.Preset)
		}
	default:
		return apperr.New(apperr.CodeInvalidInput, "unknown layer kind %q", l.Kind)
	}

	p := poster.Patch{
		X:          l.X,
		Y:          l.Y,
		Width:      l.Width,
		Height:     l.Height,
		Rotation:   l.Rotation,
		Opacity:    l.Opacity,
		ZIndex:     l.ZIndex,
		Content:    l.Content,
		FontFamily: l.FontFamily,
		FontSize:   l.FontSize,
		Color:      l.Color,
	}
	if l.Hidden {
		p.Visible = boolPtr(false)
	}
	if l.Locked {
		p.Locked = boolPtr(true)
	}
	if l.MainProduct {
		p.MainProduct = boolPtr(true)
	}
	if l.Bold {
		w := poster.WeightBold
		p.Weight = &w
	}
	if l.Italic {
		st := poster.StyleItalic
		p.Style = &st
	}
	ps.UpdateLayer(id, p)
	return nil
}

func readImage(dir, path string) (media.Image, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return media.Image{}, apperr.Wrap(apperr.CodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()

	img, err := media.Read(f, "")
	if err != nil {
		return media.Image{}, err
	}
	if err := media.Validate(img); err != nil {
		return media.Image{}, err
	}
	return img, nil
}

func boolPtr(v bool) *bool { return &v }
