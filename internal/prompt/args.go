package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// Args are the poster settings that can be typed as shorthand after a chat
// command or on the command line, e.g. "ultra 9:16 center light=neon summer sale".
type Args struct {
	Quality     Quality
	AspectRatio string
	Layout      string
	Lighting    string
	Atmosphere  string
	Face        bool
	Supplement  string
}

// ParseArgs applies recognised tokens over defaults. Unrecognised tokens are
// kept, in order, as the supplement.
func ParseArgs(raw string, defaults Args) Args {
	args := defaults
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}

	var custom []string
	for _, tok := range strings.Fields(raw) {
		orig := tok
		tok = strings.ToLower(tok)

		switch tok {
		case "face", "keepface":
			args.Face = true
			continue
		case "noface":
			args.Face = false
			continue
		case "center", "centre", "center-main":
			args.Layout = "center-main"
			continue
		case "side", "side-by-side":
			args.Layout = "side-by-side"
			continue
		case "free", "freeform":
			args.Layout = "freeform"
			continue
		}

		if q, ok := ParseQuality(tok); ok {
			args.Quality = q
			continue
		}
		if strings.HasPrefix(tok, "light=") || strings.HasPrefix(tok, "lighting=") {
			key := strings.TrimPrefix(strings.TrimPrefix(tok, "lighting="), "light=")
			if o, ok := lookup(lightingOptions, key); ok {
				args.Lighting = o.Key
				continue
			}
		}
		if strings.HasPrefix(tok, "mood=") || strings.HasPrefix(tok, "atmosphere=") {
			key := strings.TrimPrefix(strings.TrimPrefix(tok, "atmosphere="), "mood=")
			if o, ok := lookup(atmosphereOptions, key); ok {
				args.Atmosphere = o.Key
				continue
			}
		}
		if strings.HasPrefix(tok, "ar=") || strings.HasPrefix(tok, "aspect=") {
			tok = strings.TrimPrefix(strings.TrimPrefix(tok, "aspect="), "ar=")
		}
		if norm := normalizeAspectRatio(tok); norm != "" {
			args.AspectRatio = norm
			continue
		}

		custom = append(custom, orig)
	}

	args.Supplement = strings.TrimSpace(strings.Join(custom, " "))
	return args
}

func normalizeAspectRatio(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", a, b)
}
