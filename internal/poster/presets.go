package poster

import "strings"

// TextPreset is a named bundle of text styling.
type TextPreset struct {
	Key        string
	Name       string
	FontSize   float64
	FontFamily string
	Color      string
	Weight     FontWeight
	Style      FontStyle
}

var textPresets = []TextPreset{
	{Key: "headline", Name: "Headline", FontSize: 72, FontFamily: "Impact, sans-serif", Color: "#FFFFFF", Weight: WeightBold, Style: StyleNormal},
	{Key: "elegant", Name: "Elegant", FontSize: 48, FontFamily: "Georgia, serif", Color: "#EAEAEA", Weight: WeightNormal, Style: StyleItalic},
	{Key: "minimal", Name: "Minimal", FontSize: 32, FontFamily: "Arial, sans-serif", Color: "#DDDDDD", Weight: WeightNormal, Style: StyleNormal},
	{Key: "vivid", Name: "Vivid", FontSize: 60, FontFamily: "Comic Sans MS, cursive", Color: "#FFD700", Weight: WeightBold, Style: StyleNormal},
}

func TextPresets() []TextPreset {
	return append([]TextPreset(nil), textPresets...)
}

func LookupTextPreset(key string) (TextPreset, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range textPresets {
		if p.Key == key {
			return p, true
		}
	}
	return TextPreset{}, false
}

// Patch converts the preset into a layer patch.
func (p TextPreset) Patch() Patch {
	return Patch{
		FontSize:   &p.FontSize,
		FontFamily: &p.FontFamily,
		Color:      &p.Color,
		Weight:     &p.Weight,
		Style:      &p.Style,
	}
}
