package handlers

import (
	"fmt"
	"strings"

	"poster-studio/internal/gemini"
	"poster-studio/internal/poster"
	"poster-studio/internal/studio"
)

const helpText = "🖼 Poster Studio\n\n" +
	"Send photos to build a poster. The caption picks where a photo goes:\n" +
	"  (none) product layer, \"logo\", \"background\" or \"face\".\n\n" +
	"Commands:\n" +
	"/poster - options panel\n" +
	"/text <text> | <style> - add a text layer (headline, elegant, minimal, vivid)\n" +
	"/layout free|center|side - arrange the layers\n" +
	"/layers - list layers, /delete <n>, /main <n>\n" +
	"/background <scene> | <stage> - generate a background\n" +
	"/suggest - scene and stage ideas\n" +
	"/preview - the flat layout\n" +
	"/prompt - the generation prompt\n" +
	"/generate [ultra 1:1 light=neon ...] - generate the poster\n" +
	"/video <description> - generate a short video\n" +
	"/poses - pose ideas, /translate <en|vi|uz|ru> <text>\n" +
	"/clear - start over"

// roleFromCaption maps the first word of a photo caption to an upload role.
// Anything unrecognised is a product.
func roleFromCaption(caption string) studio.Role {
	fields := strings.Fields(strings.ToLower(caption))
	if len(fields) == 0 {
		return studio.RoleProduct
	}
	switch strings.Trim(fields[0], "#/:.,!") {
	case "logo", "brand":
		return studio.RoleLogo
	case "background", "bg", "fon":
		return studio.RoleBackground
	case "face", "model":
		return studio.RoleFace
	}
	return studio.RoleProduct
}

func layoutFromArg(arg string) (poster.Layout, bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "free", "freeform":
		return poster.LayoutFreeform, true
	case "center", "centre", "center-main":
		return poster.LayoutCenterMain, true
	case "side", "side-by-side":
		return poster.LayoutSideBySide, true
	}
	return "", false
}

// splitPipe splits "a | b" into trimmed halves.
func splitPipe(value string) (string, string) {
	left, right, _ := strings.Cut(value, "|")
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

func uploadReply(role studio.Role, n int, view studio.View) string {
	var what string
	switch role {
	case studio.RoleLogo:
		what = "logo"
	case studio.RoleBackground:
		what = "background"
	case studio.RoleFace:
		what = "face reference"
	default:
		what = "product"
	}
	if n > 1 && role != studio.RoleBackground && role != studio.RoleFace {
		what = fmt.Sprintf("%d %ss", n, what)
	}

	next := "Send more photos or /generate."
	if !view.HasBackground {
		next = "Send a photo captioned \"background\" or use /background before /generate."
	}
	return fmt.Sprintf("✅ Added %s (%d layers).\n%s", what, len(view.Layers), next)
}

func describeLayers(view studio.View) string {
	if len(view.Layers) == 0 {
		return "The poster is empty. Send a photo to start."
	}
	var b strings.Builder
	for i, l := range view.Layers {
		label := "image"
		if tp, ok := l.Text(); ok {
			label = fmt.Sprintf("text %q", truncateLine(tp.Content, 30))
		}
		var flags []string
		if l.MainProduct {
			flags = append(flags, "main")
		}
		if !l.Visible {
			flags = append(flags, "hidden")
		}
		if l.Locked {
			flags = append(flags, "locked")
		}
		fmt.Fprintf(&b, "%d) %s z=%d", i+1, label, l.ZIndex)
		if len(flags) > 0 {
			b.WriteString(" [" + strings.Join(flags, ", ") + "]")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func describeSuggestions(sug gemini.SceneSuggestions) string {
	var b strings.Builder
	b.WriteString("💡 Scenes:\n")
	b.WriteString(bulletList(sug.Scenes))
	b.WriteString("\nStages:\n")
	b.WriteString(bulletList(sug.Stages))
	b.WriteString("\nUse one with /background <scene> | <stage>")
	return b.String()
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, s := range items {
		b.WriteString("• " + s + "\n")
	}
	return b.String()
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
