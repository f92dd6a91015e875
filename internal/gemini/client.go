package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"poster-studio/internal/apperr"
	"poster-studio/internal/media"
)

const (
	modelImage = "gemini-2.5-flash-image"
	modelText  = "gemini-2.5-flash"
	modelVideo = "veo-3.1-fast-generate-preview"
)

const removeBackgroundPrompt = "Perfectly remove the background of this image. The output should be only the main subject(s) " +
	"with a transparent background. The output image must be a PNG."

type Options struct {
	APIKey       string
	BaseURL      string
	APIVersion   string
	HTTPClient   *http.Client
	Logger       *slog.Logger
	PollInterval time.Duration
}

type Client struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 10 * time.Second
	}

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		apiVersion:   apiVersion,
		httpClient:   opts.HTTPClient,
		logger:       logger,
		pollInterval: poll,
	}
}

// GenerateImage asks the image model for one image. References are sent
// before the prompt, in order.
func (c *Client) GenerateImage(ctx context.Context, prompt string, refs []media.Image, opts ImageOptions) (media.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return media.Image{}, apperr.New(apperr.CodeInvalidInput, "prompt is empty")
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(prompt, refs)}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}
	if opts.AspectRatio != "" {
		req.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: opts.AspectRatio}
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.GenerationConfig.Seed = &seed
	}

	resp, err := c.generateContent(ctx, modelImage, req)
	if err != nil && req.GenerationConfig.ImageConfig != nil && isUnknownFieldError(err, "imageConfig") {
		req.GenerationConfig.ImageConfig = nil
		resp, err = c.generateContent(ctx, modelImage, req)
	}
	if err != nil {
		return media.Image{}, err
	}
	if err := blocked(resp); err != nil {
		return media.Image{}, err
	}

	_, images := extractParts(resp)
	if len(images) == 0 {
		return media.Image{}, apperr.New(apperr.CodeExternal, "no image found in the API response")
	}
	return images[0], nil
}

// GenerateImages issues n generations in parallel. Results keep request
// order; the first failure cancels the rest and is returned.
func (c *Client) GenerateImages(ctx context.Context, prompt string, refs []media.Image, n int, opts ImageOptions) ([]media.Image, error) {
	if n < 1 {
		n = 1
	}

	results := make([]media.Image, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		reqOpts := opts
		if opts.Seed != 0 {
			reqOpts.Seed = opts.Seed + int64(i)
		}
		g.Go(func() error {
			img, err := c.GenerateImage(gctx, prompt, refs, reqOpts)
			if err != nil {
				return err
			}
			results[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RemoveBackground returns the subject of img on a transparent background.
func (c *Client) RemoveBackground(ctx context.Context, img media.Image) (media.Image, error) {
	out, err := c.GenerateImage(ctx, removeBackgroundPrompt, []media.Image{img}, ImageOptions{})
	if err != nil {
		return media.Image{}, fmt.Errorf("remove background: %w", err)
	}
	return out, nil
}

// Describe runs a text-only analysis of imgs with instruction.
func (c *Client) Describe(ctx context.Context, instruction string, imgs []media.Image) (string, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(instruction, imgs)}},
	}
	resp, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return "", err
	}
	if err := blocked(resp); err != nil {
		return "", err
	}
	text, _ := extractParts(resp)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.CodeExternal, "the model returned an empty description")
	}
	return text, nil
}

var sceneSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"scenes": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"stages": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
	},
	"required": []string{"scenes", "stages"},
}

// SuggestScenes asks for scene and stage ideas. A response that does not
// match the schema is a parse error; nothing is guessed.
func (c *Client) SuggestScenes(ctx context.Context, instruction string, imgs []media.Image) (SceneSuggestions, error) {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(instruction, imgs)}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   sceneSchema,
		},
	}
	resp, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return SceneSuggestions{}, err
	}
	if err := blocked(resp); err != nil {
		return SceneSuggestions{}, err
	}

	raw, _ := extractParts(resp)
	var out SceneSuggestions
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		c.logger.Warn("scene suggestions not parseable", "raw", raw, "err", err)
		return SceneSuggestions{}, apperr.Wrap(apperr.CodeParse, err, "scene suggestions")
	}
	if out.Scenes == nil || out.Stages == nil {
		c.logger.Warn("scene suggestions missing fields", "raw", raw)
		return SceneSuggestions{}, apperr.New(apperr.CodeParse, "scene suggestions")
	}
	return out, nil
}

var listSchema = map[string]any{
	"type":  "ARRAY",
	"items": map[string]any{"type": "STRING"},
}

// SuggestList asks for a flat list of short ideas. Anything but a JSON array
// of strings is a parse error.
func (c *Client) SuggestList(ctx context.Context, instruction string, imgs []media.Image) ([]string, error) {
	var out []string
	if err := c.generateJSON(ctx, instruction, imgs, listSchema, &out); err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	if out == nil {
		return nil, apperr.New(apperr.CodeParse, "suggestions")
	}
	return out, nil
}

var reviewSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"analysis":       map[string]any{"type": "STRING"},
		"improvedPrompt": map[string]any{"type": "STRING"},
	},
	"required": []string{"analysis", "improvedPrompt"},
}

// ReviewPrompt asks for a critique and a rewrite of a prompt. Both fields
// must come back non-empty.
func (c *Client) ReviewPrompt(ctx context.Context, instruction string, imgs []media.Image) (PromptReview, error) {
	var out PromptReview
	if err := c.generateJSON(ctx, instruction, imgs, reviewSchema, &out); err != nil {
		return PromptReview{}, fmt.Errorf("prompt review: %w", err)
	}
	if strings.TrimSpace(out.Analysis) == "" || strings.TrimSpace(out.ImprovedPrompt) == "" {
		return PromptReview{}, apperr.New(apperr.CodeParse, "prompt review")
	}
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, instruction string, imgs []media.Image, schema any, out any) error {
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(instruction, imgs)}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	resp, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return err
	}
	if err := blocked(resp); err != nil {
		return err
	}
	raw, _ := extractParts(resp)
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), out); err != nil {
		c.logger.Warn("structured response not parseable", "raw", raw, "err", err)
		return apperr.Wrap(apperr.CodeParse, err, "structured response")
	}
	return nil
}

// GenerateVideo starts a long-running video generation, polls it until done
// and downloads the result.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, img *media.Image, opts VideoOptions) (media.Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return media.Image{}, apperr.New(apperr.CodeInvalidInput, "prompt is empty")
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = "9:16"
	}
	if opts.Resolution == "" {
		opts.Resolution = "720p"
	}

	inst := videoInstance{Prompt: prompt}
	if img != nil && !img.IsZero() {
		inst.Image = &videoImage{BytesBase64Encoded: img.Base64(), MimeType: img.MimeType}
	}
	payload := predictRequest{
		Instances:  []videoInstance{inst},
		Parameters: videoParameters{AspectRatio: opts.AspectRatio, Resolution: opts.Resolution, SampleCount: 1},
	}

	var op operation
	url := fmt.Sprintf("%s/%s/models/%s:predictLongRunning", c.baseURL, c.apiVersion, modelVideo)
	if err := c.doJSON(ctx, http.MethodPost, url, payload, &op); err != nil {
		return media.Image{}, err
	}
	c.logger.Info("video operation started", "operation", op.Name)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return media.Image{}, callError(ctx, ctx.Err(), "video generation")
		case <-ticker.C:
		}
		name := op.Name
		if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, name), nil, &op); err != nil {
			return media.Image{}, err
		}
		if op.Name == "" {
			op.Name = name
		}
	}

	if op.Error != nil {
		msg := op.Error.Message
		if msg == "" {
			msg = "video generation failed during polling"
		}
		return media.Image{}, apperr.New(apperr.CodeExternal, "%s", msg)
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 ||
		op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI == "" {
		return media.Image{}, apperr.New(apperr.CodeExternal, "video generation finished but no video URI was found")
	}

	return c.download(ctx, op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI)
}

func (c *Client) download(ctx context.Context, uri string) (media.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return media.Image{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return media.Image{}, callError(ctx, err, "fetch video")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return media.Image{}, callError(ctx, err, "read video")
	}
	if resp.StatusCode >= 400 {
		return media.Image{}, apperr.New(apperr.CodeExternal, "failed to fetch video: %s", resp.Status)
	}
	mimeType := media.DetectMIME(resp.Header.Get("content-type"), data)
	if !strings.HasPrefix(mimeType, "video/") {
		mimeType = "video/mp4"
	}
	return media.Image{MimeType: mimeType, Data: data}, nil
}

func buildParts(prompt string, refs []media.Image) []part {
	parts := make([]part, 0, len(refs)+1)
	for _, img := range refs {
		if img.IsZero() {
			continue
		}
		parts = append(parts, part{InlineData: &blob{Data: img.Base64(), MimeType: img.MimeType}})
	}
	return append(parts, part{Text: prompt})
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	var decoded generateContentResponse
	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	if err := c.doJSON(ctx, http.MethodPost, url, payload, &decoded); err != nil {
		return generateContentResponse{}, err
	}
	return decoded, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload, out any) error {
	if c.httpClient == nil {
		return errors.New("http client is nil")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return callError(ctx, err, "gemini request")
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return callError(ctx, err, "read response")
	}
	c.logger.Debug("gemini", "method", method, "url", url, "status", httpResp.StatusCode, "dur_ms", time.Since(start).Milliseconds())

	if httpResp.StatusCode >= 400 {
		return apperr.New(apperr.CodeExternal, "gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return apperr.Wrap(apperr.CodeExternal, err, "malformed API response")
	}
	return nil
}

// callError classifies a transport failure. Deadline expiry is a timeout;
// everything else is an external failure.
func callError(ctx context.Context, err error, what string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTimeout, err, "%s", what)
	}
	return apperr.Wrap(apperr.CodeExternal, err, "%s", what)
}

func blocked(resp generateContentResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return apperr.New(apperr.CodeExternal, "the request was blocked by the safety filter (%s)", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return apperr.New(apperr.CodeExternal, "the API response was blocked or did not contain any content")
	}
	return nil
}

func extractParts(resp generateContentResponse) (string, []media.Image) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []media.Image

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" && strings.HasPrefix(p.InlineData.MimeType, "image/") {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			images = append(images, media.Image{MimeType: p.InlineData.MimeType, Data: data})
		}
	}

	return textBuilder.String(), images
}

func stripCodeFence(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "```") {
		return value
	}
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value)
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}
