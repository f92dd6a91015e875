// Package handlers turns Telegram updates into poster studio operations.
// Every chat member gets their own studio session; photos become layers and
// commands drive layout, prompt options and generation.
package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"poster-studio/internal/apperr"
	"poster-studio/internal/media"
	"poster-studio/internal/mediagroup"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
	"poster-studio/internal/studio"
	"poster-studio/internal/telegram"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendTyping(chatID int64)
	SendPhotos(chatID int64, imgs []media.Image, caption string) error
	SendVideo(chatID int64, video media.Image, caption string) error
	DownloadFile(ctx context.Context, fileID string) (media.Image, error)
}

type Options struct {
	Telegram Messenger
	Studio   *studio.Service
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	studio     *studio.Service
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator

	mu     sync.Mutex
	panels map[string]*panel
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Handler{
		tg:     opts.Telegram,
		studio: opts.Studio,
		logger: logger,
		panels: make(map[string]*panel),
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("tg-%d-%d", chatID, userID)
}

// session returns the studio session id for a chat member, creating it on
// first use.
func (h *Handler) session(chatID, userID int64) string {
	id := sessionKey(chatID, userID)
	h.studio.Sessions().Ensure(id)
	return id
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}
	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}
	if msg.Text != "" {
		return h.handleText(chatID, userID, msg.Text)
	}
	return nil
}

// HandleAlbum uploads every photo of an album with the role named by the
// album caption.
func (h *Handler) HandleAlbum(ctx context.Context, up mediagroup.Upload) {
	if err := h.processPhotos(ctx, up.ChatID, up.UserID, up.Caption, up.FileIDs); err != nil {
		h.logger.Error("album upload failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *telegram.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	id := h.session(chatID, userID)

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "poster", "panel":
		return h.openPanel(chatID, userID)
	case "text":
		return h.addText(chatID, id, args)
	case "layout":
		layout, ok := layoutFromArg(args)
		if !ok {
			return h.tg.SendText(chatID, "❌ Layout must be one of: free, center, side.")
		}
		if err := h.studio.Sessions().Update(id, func(sess *studio.Session) error {
			sess.Poster.ApplyLayout(layout)
			return nil
		}); err != nil {
			return h.replyError(chatID, err)
		}
		return h.tg.SendText(chatID, "✅ Layout: "+string(layout))
	case "layers":
		return h.listLayers(chatID, id)
	case "delete":
		return h.layerByIndex(chatID, id, args, func(ps *poster.Store, l poster.Layer) string {
			ps.DeleteLayer(l.ID)
			return "🗑 Layer removed."
		})
	case "main":
		return h.layerByIndex(chatID, id, args, func(ps *poster.Store, l poster.Layer) string {
			on := true
			ps.UpdateLayer(l.ID, poster.Patch{MainProduct: &on})
			return "⭐ Main product set."
		})
	case "generate":
		return h.generate(ctx, chatID, id, args)
	case "prompt":
		text, err := h.studio.PosterPrompt(id)
		if err != nil {
			return h.replyError(chatID, err)
		}
		return h.tg.SendText(chatID, text)
	case "preview":
		return h.sendPreview(chatID, id)
	case "background":
		return h.generateBackground(ctx, chatID, id, args)
	case "suggest":
		return h.suggest(ctx, chatID, id)
	case "video":
		return h.video(ctx, chatID, args)
	case "poses":
		h.tg.SendTyping(chatID)
		ideas, err := h.studio.PoseIdeas(ctx)
		if err != nil {
			return h.replyError(chatID, err)
		}
		return h.tg.SendText(chatID, "🧍 Pose ideas:\n"+bulletList(ideas))
	case "translate":
		return h.translate(ctx, chatID, args)
	case "cancel":
		h.updatePanel(id, func(p *panel) { p.awaitingNote = false })
		return h.tg.SendText(chatID, "OK")
	case "clear":
		h.studio.Sessions().Delete(id)
		h.mu.Lock()
		delete(h.panels, id)
		h.mu.Unlock()
		return h.tg.SendText(chatID, "✅ Poster cleared.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

// handleText stores a pending panel note as the prompt supplement.
func (h *Handler) handleText(chatID, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	id := sessionKey(chatID, userID)
	if !h.takeNote(id) {
		return h.tg.SendText(chatID, "Send photos to build a poster, or /help for commands.")
	}
	h.studio.Sessions().Ensure(id)
	if err := h.studio.Sessions().Update(id, func(sess *studio.Session) error {
		return sess.Apply(studio.OptionsPatch{Supplement: &text})
	}); err != nil {
		return h.replyError(chatID, err)
	}
	_ = h.tg.SendText(chatID, "📝 Note saved.")
	return h.renderPanel(chatID, userID, false)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, msg *telegram.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Photo{
			ChatID:       chatID,
			UserID:       userID,
			MessageID:    msg.MessageID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}
	return h.processPhotos(ctx, chatID, userID, msg.Caption, []string{fileID})
}

func (h *Handler) processPhotos(ctx context.Context, chatID, userID int64, caption string, fileIDs []string) error {
	h.tg.SendTyping(chatID)

	images := make([]media.Image, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i, fileID := i, fileID
		eg.Go(func() error {
			img, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please send it again.")
	}

	role := roleFromCaption(caption)
	id := h.session(chatID, userID)
	for _, img := range images {
		if _, err := h.studio.Upload(id, role, img); err != nil {
			return h.replyError(chatID, err)
		}
	}

	view, err := h.studio.Sessions().View(id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, uploadReply(role, len(images), view))
}

func (h *Handler) addText(chatID int64, id, args string) error {
	content, preset := splitPipe(args)
	if content == "" {
		return h.tg.SendText(chatID, "❌ Usage: /text SUMMER SALE | headline")
	}
	if preset != "" {
		if _, ok := poster.LookupTextPreset(preset); !ok {
			return h.tg.SendText(chatID, fmt.Sprintf("❌ Unknown text style %q.", preset))
		}
	}
	err := h.studio.Sessions().Update(id, func(sess *studio.Session) error {
		layerID := sess.Poster.AddTextLayer()
		sess.Poster.UpdateLayer(layerID, poster.Patch{Content: &content})
		if preset != "" {
			sess.Poster.ApplyTextPreset(layerID, preset)
		}
		return nil
	})
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, "✅ Text added.")
}

func (h *Handler) listLayers(chatID int64, id string) error {
	view, err := h.studio.Sessions().View(id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, describeLayers(view))
}

// layerByIndex resolves a 1-based position from /layers and runs fn on it.
func (h *Handler) layerByIndex(chatID int64, id, arg string, fn func(*poster.Store, poster.Layer) string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return h.tg.SendText(chatID, "❌ Give the layer number from /layers.")
	}
	var reply string
	err = h.studio.Sessions().Update(id, func(sess *studio.Session) error {
		layers := sess.Poster.Layers()
		if n > len(layers) {
			return apperr.New(apperr.CodeNotFound, "there is no layer %d", n)
		}
		reply = fn(sess.Poster, layers[n-1])
		return nil
	})
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, reply)
}

func (h *Handler) generate(ctx context.Context, chatID int64, id, raw string) error {
	if raw != "" {
		if err := h.applyArgs(id, raw); err != nil {
			return h.replyError(chatID, err)
		}
	}

	view, err := h.studio.Sessions().View(id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, fmt.Sprintf("🎨 Generating %d variations, please wait...", view.Options.Variations))

	res, err := h.studio.GeneratePoster(ctx, id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	caption := fmt.Sprintf("✅ Done: layout + %d variations", len(res.Images)-1)
	return h.tg.SendPhotos(chatID, res.Images, caption)
}

// applyArgs applies /generate shorthand over the session options.
func (h *Handler) applyArgs(id, raw string) error {
	return h.studio.Sessions().Update(id, func(sess *studio.Session) error {
		args := prompt.ParseArgs(raw, prompt.Args{
			Quality:    sess.Options.Quality,
			Lighting:   sess.Options.Lighting,
			Atmosphere: sess.Options.Atmosphere,
			Face:       sess.Options.PreserveFace,
		})
		quality := string(args.Quality)
		patch := studio.OptionsPatch{
			Quality:      &quality,
			Lighting:     &args.Lighting,
			Atmosphere:   &args.Atmosphere,
			PreserveFace: &args.Face,
		}
		if args.Supplement != "" {
			patch.Supplement = &args.Supplement
		}
		if args.AspectRatio != "" {
			patch.AspectRatio = &args.AspectRatio
		}
		if err := sess.Apply(patch); err != nil {
			return err
		}
		if args.Layout != "" {
			if layout, err := poster.ParseLayout(args.Layout); err == nil {
				sess.Poster.ApplyLayout(layout)
			}
		}
		return nil
	})
}

func (h *Handler) sendPreview(chatID int64, id string) error {
	img, err := h.studio.Composite(id, media.JPEG)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendPhotos(chatID, []media.Image{img}, "Layout preview")
}

func (h *Handler) generateBackground(ctx context.Context, chatID int64, id, args string) error {
	scene, stage := splitPipe(args)
	if scene != "" || stage != "" {
		if err := h.studio.Sessions().Update(id, func(sess *studio.Session) error {
			return sess.Apply(studio.OptionsPatch{Scene: &scene, Stage: &stage})
		}); err != nil {
			return h.replyError(chatID, err)
		}
	}

	h.tg.SendTyping(chatID)
	img, err := h.studio.GenerateBackground(ctx, id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendPhotos(chatID, []media.Image{img}, "✅ Background set")
}

func (h *Handler) suggest(ctx context.Context, chatID int64, id string) error {
	h.tg.SendTyping(chatID)
	sug, err := h.studio.SuggestScenes(ctx, id)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, describeSuggestions(sug))
}

func (h *Handler) video(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return h.tg.SendText(chatID, "❌ Usage: /video a slow pan over the product")
	}
	_ = h.tg.SendText(chatID, "🎬 Generating the video, this can take a few minutes...")
	item, err := h.studio.GenerateVideo(ctx, studio.VideoRequest{Prompt: text, AspectRatio: "9:16"})
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendVideo(chatID, item.Media, "✅ "+text)
}

// translate handles "/translate <lang> <text>".
func (h *Handler) translate(ctx context.Context, chatID int64, args string) error {
	lang, text, _ := strings.Cut(args, " ")
	if strings.TrimSpace(text) == "" {
		return h.tg.SendText(chatID, "❌ Usage: /translate en <text>")
	}
	out, err := h.studio.Translate(ctx, text, lang)
	if err != nil {
		return h.replyError(chatID, err)
	}
	return h.tg.SendText(chatID, out)
}

func (h *Handler) replyError(chatID int64, err error) error {
	if apperr.HTTPStatus(err) >= 500 {
		h.logger.Error("bot request failed", "chat", chatID, "err", err)
	} else {
		h.logger.Warn("bot request rejected", "chat", chatID, "err", err)
	}
	return h.tg.SendText(chatID, "❌ "+apperr.UserMessage(err))
}
