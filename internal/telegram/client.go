// Package telegram wraps the Bot API calls the poster bot needs.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"poster-studio/internal/media"
)

// Telegram limits.
const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
	maxAlbumSize    = 10
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:        bot,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type (
	Update        = tgbotapi.Update
	Message       = tgbotapi.Message
	CallbackQuery = tgbotapi.CallbackQuery
	Keyboard      = tgbotapi.InlineKeyboardMarkup
	Button        = tgbotapi.InlineKeyboardButton
)

// NewKeyboard builds an inline keyboard from rows of buttons.
func NewKeyboard(rows ...[]Button) Keyboard {
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// NewButton is a callback button.
func NewButton(label, data string) Button {
	return tgbotapi.NewInlineKeyboardButtonData(label, data)
}

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

func (c *Client) SendUploadingPhoto(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

func (c *Client) SendText(chatID int64, text string) error {
	for _, p := range splitByBytes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, p)); err != nil {
			return err
		}
	}
	return nil
}

// SendTextWithKeyboard sends a single message with an inline keyboard and
// returns its message id.
func (c *Client) SendTextWithKeyboard(chatID int64, text string, kb Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, maxMessageBytes))
	msg.ReplyMarkup = kb
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditTextWithKeyboard(chatID int64, messageID int, text string, kb Keyboard) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, truncateByBytes(text, maxMessageBytes), kb)
	_, err := c.bot.Send(edit)
	return err
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	_, err := c.bot.Request(cfg)
	return err
}

// SendPhotos sends images as a single photo or as albums of up to ten. The
// caption goes on the first image.
func (c *Client) SendPhotos(chatID int64, imgs []media.Image, caption string) error {
	caption = truncateByBytes(caption, maxCaptionBytes)
	if len(imgs) == 1 {
		photo := tgbotapi.NewPhoto(chatID, fileBytes("image", imgs[0]))
		photo.Caption = caption
		_, err := c.bot.Send(photo)
		return err
	}

	for start := 0; start < len(imgs); start += maxAlbumSize {
		end := min(start+maxAlbumSize, len(imgs))
		files := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			item := tgbotapi.NewInputMediaPhoto(fileBytes(fmt.Sprintf("image%d", i), imgs[i]))
			if i == 0 {
				item.Caption = caption
			}
			files = append(files, item)
		}
		if len(files) == 1 {
			photo := tgbotapi.NewPhoto(chatID, fileBytes("image", imgs[start]))
			if _, err := c.bot.Send(photo); err != nil {
				return err
			}
			continue
		}
		if _, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, files)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SendVideo(chatID int64, video media.Image, caption string) error {
	msg := tgbotapi.NewVideo(chatID, fileBytes("video", video))
	msg.Caption = truncateByBytes(caption, maxCaptionBytes)
	_, err := c.bot.Send(msg)
	return err
}

// DownloadFile fetches a file the user sent.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (media.Image, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return media.Image{}, err
	}
	return c.fetch(ctx, fileURL)
}

func (c *Client) fetch(ctx context.Context, fileURL string) (media.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return media.Image{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return media.Image{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return media.Image{}, fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return media.Read(resp.Body, resp.Header.Get("Content-Type"))
}

func fileBytes(stem string, img media.Image) tgbotapi.FileBytes {
	return tgbotapi.FileBytes{Name: stem + extension(img.MimeType), Bytes: img.Data}
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	}
	return ".jpg"
}

func splitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}
		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
