package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
	"poster-studio/internal/studio"
	"poster-studio/internal/telegram"
)

const panelCallbackPrefix = "ps"

// panel is the chat-side state of the options message.
type panel struct {
	messageID    int
	menu         string
	awaitingNote bool
}

func (h *Handler) updatePanel(id string, fn func(*panel)) panel {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panels[id]
	if !ok {
		p = &panel{menu: "main"}
		h.panels[id] = p
	}
	fn(p)
	return *p
}

// takeNote reports whether a note was awaited and clears the flag.
func (h *Handler) takeNote(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.panels[id]
	if !ok || !p.awaitingNote {
		return false
	}
	p.awaitingNote = false
	return true
}

func (h *Handler) openPanel(chatID, userID int64) error {
	h.updatePanel(sessionKey(chatID, userID), func(p *panel) {
		p.menu = "main"
		p.messageID = 0
	})
	return h.renderPanel(chatID, userID, false)
}

func (h *Handler) renderPanel(chatID, userID int64, edit bool) error {
	id := h.session(chatID, userID)
	view, err := h.studio.Sessions().View(id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	p := h.updatePanel(id, func(*panel) {})

	text := panelText(view, p)
	kb := panelKeyboard(userID, view, p)

	if edit && p.messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, p.messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.updatePanel(id, func(p *panel) { p.messageID = msgID })
	return nil
}

// callback is a parsed "ps:<owner>:<action>[:<arg>...]" payload.
type callback struct {
	owner  int64
	action string
	args   []string
}

func parseCallback(data string) (callback, bool) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) < 3 || parts[0] != panelCallbackPrefix {
		return callback{}, false
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return callback{}, false
	}
	return callback{owner: owner, action: parts[2], args: parts[3:]}, true
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", panelCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	c, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if c.owner != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This panel belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	id := h.session(chatID, c.owner)
	h.updatePanel(id, func(p *panel) { p.messageID = q.Message.MessageID })

	arg := ""
	if len(c.args) > 0 {
		arg = c.args[0]
	}

	var patch studio.OptionsPatch
	switch c.action {
	case "menu":
		h.updatePanel(id, func(p *panel) { p.menu = arg })
	case "aspect":
		ar := strings.ReplaceAll(arg, "x", ":")
		patch.AspectRatio = &ar
	case "quality":
		patch.Quality = &arg
	case "light":
		patch.Lighting = &arg
	case "mood":
		patch.Atmosphere = &arg
	case "vars":
		if n, err := strconv.Atoi(arg); err == nil {
			patch.Variations = &n
		}
	case "face":
		view, err := h.studio.Sessions().View(id)
		if err != nil {
			return h.replyError(chatID, err)
		}
		on := !view.Options.PreserveFace
		patch.PreserveFace = &on
	case "layout":
		if layout, ok := layoutFromArg(arg); ok {
			_ = h.studio.Sessions().Update(id, func(sess *studio.Session) error {
				sess.Poster.ApplyLayout(layout)
				return nil
			})
		}
	case "note":
		h.updatePanel(id, func(p *panel) { p.awaitingNote = true })
		_ = h.tg.AnswerCallback(q.ID, "Send the note as a message (/cancel to stop).", false)
		return h.tg.SendText(chatID, "📝 Send extra instructions for the poster (/cancel to stop).")
	case "prompt":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		text, err := h.studio.PosterPrompt(id)
		if err != nil {
			return h.replyError(chatID, err)
		}
		return h.tg.SendText(chatID, text)
	case "preview":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.sendPreview(chatID, id)
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.generate(ctx, chatID, id, ""); err != nil {
			return err
		}
		return h.renderPanel(chatID, c.owner, true)
	case "close":
		h.updatePanel(id, func(p *panel) {
			p.menu = "main"
			p.awaitingNote = false
		})
		return h.tg.AnswerCallback(q.ID, "Closed", false)
	}

	if patch != (studio.OptionsPatch{}) {
		err := h.studio.Sessions().Update(id, func(sess *studio.Session) error {
			return sess.Apply(patch)
		})
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, "Not available", true)
			return h.replyError(chatID, err)
		}
		h.updatePanel(id, func(p *panel) { p.menu = "main" })
	}
	_ = h.tg.AnswerCallback(q.ID, "OK", false)
	return h.renderPanel(chatID, c.owner, true)
}

func panelText(view studio.View, p panel) string {
	o := view.Options

	var b strings.Builder
	b.WriteString("🖼 Poster options\n\n")
	fmt.Fprintf(&b, "Layers: %d, background: %s, face: %s\n", len(view.Layers), yesNo(view.HasBackground), yesNo(view.HasFace))
	fmt.Fprintf(&b, "Aspect: %s, quality: %s, variations: %d\n", o.AspectRatio, o.Quality, o.Variations)
	fmt.Fprintf(&b, "Lighting: %s\n", orDefault(prompt.LightingName(o.Lighting)))
	fmt.Fprintf(&b, "Atmosphere: %s\n", orDefault(prompt.AtmosphereName(o.Atmosphere)))
	fmt.Fprintf(&b, "Keep face: %s\n", onOff(o.PreserveFace))
	if strings.TrimSpace(o.Supplement) != "" {
		b.WriteString("Note: " + truncateLine(o.Supplement, 80) + "\n")
	}
	if len(view.Pending) > 0 {
		b.WriteString("\n⏳ Running: " + strings.Join(view.Pending, ", ") + "\n")
	}
	if view.Error != "" {
		b.WriteString("\n⚠️ " + view.Error + "\n")
	}
	if p.awaitingNote {
		b.WriteString("\n📝 Send the note now (/cancel to stop).\n")
	}
	return strings.TrimSpace(b.String())
}

func panelKeyboard(ownerID int64, view studio.View, p panel) telegram.Keyboard {
	switch p.menu {
	case "aspect":
		var row []telegram.Button
		for _, ar := range poster.AspectRatios() {
			row = append(row, telegram.NewButton(mark(string(ar), ar == view.Options.AspectRatio),
				cb(ownerID, "aspect", strings.ReplaceAll(string(ar), ":", "x"))))
		}
		return telegram.NewKeyboard(row, backRow(ownerID))
	case "quality":
		var row []telegram.Button
		for _, q := range prompt.Qualities() {
			row = append(row, telegram.NewButton(mark(string(q), q == view.Options.Quality), cb(ownerID, "quality", string(q))))
		}
		return telegram.NewKeyboard(row, backRow(ownerID))
	case "light":
		return optionKeyboard(ownerID, "light", prompt.LightingOptions(), view.Options.Lighting)
	case "mood":
		return optionKeyboard(ownerID, "mood", prompt.AtmosphereOptions(), view.Options.Atmosphere)
	case "layout":
		return telegram.NewKeyboard(
			[]telegram.Button{
				telegram.NewButton("Free", cb(ownerID, "layout", "free")),
				telegram.NewButton("Center", cb(ownerID, "layout", "center")),
				telegram.NewButton("Side by side", cb(ownerID, "layout", "side")),
			},
			backRow(ownerID),
		)
	case "vars":
		var row []telegram.Button
		for n := 1; n <= 4; n++ {
			row = append(row, telegram.NewButton(mark(strconv.Itoa(n), n == view.Options.Variations), cb(ownerID, "vars", strconv.Itoa(n))))
		}
		return telegram.NewKeyboard(row, backRow(ownerID))
	}

	return telegram.NewKeyboard(
		[]telegram.Button{
			telegram.NewButton("Aspect "+string(view.Options.AspectRatio), cb(ownerID, "menu", "aspect")),
			telegram.NewButton("Quality", cb(ownerID, "menu", "quality")),
		},
		[]telegram.Button{
			telegram.NewButton("Lighting", cb(ownerID, "menu", "light")),
			telegram.NewButton("Atmosphere", cb(ownerID, "menu", "mood")),
		},
		[]telegram.Button{
			telegram.NewButton("Layout", cb(ownerID, "menu", "layout")),
			telegram.NewButton(fmt.Sprintf("Variations (%d)", view.Options.Variations), cb(ownerID, "menu", "vars")),
		},
		[]telegram.Button{
			telegram.NewButton("Face: "+onOff(view.Options.PreserveFace), cb(ownerID, "face")),
			telegram.NewButton("Note", cb(ownerID, "note")),
		},
		[]telegram.Button{
			telegram.NewButton("👁 Preview", cb(ownerID, "preview")),
			telegram.NewButton("📄 Prompt", cb(ownerID, "prompt")),
		},
		[]telegram.Button{
			telegram.NewButton("🎨 Generate", cb(ownerID, "generate")),
			telegram.NewButton("Close", cb(ownerID, "close")),
		},
	)
}

func optionKeyboard(ownerID int64, action string, opts []prompt.NamedOption, current string) telegram.Keyboard {
	var rows [][]telegram.Button
	var row []telegram.Button
	for _, o := range opts {
		row = append(row, telegram.NewButton(mark(o.Key, o.Key == current), cb(ownerID, action, o.Key)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, backRow(ownerID))
	return telegram.NewKeyboard(rows...)
}

func backRow(ownerID int64) []telegram.Button {
	return []telegram.Button{telegram.NewButton("⬅ Back", cb(ownerID, "menu", "main"))}
}

func mark(label string, on bool) string {
	if on {
		return "✅ " + label
	}
	return label
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
