package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio/internal/apperr"
	"poster-studio/internal/gemini"
	"poster-studio/internal/library"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
	"poster-studio/internal/stores/memory"
)

func pngImage(t *testing.T, w, h int) media.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return media.New(buf.Bytes(), "image/png")
}

type fakeGen struct {
	mu sync.Mutex

	image    media.Image
	err      error
	wait     bool
	describe map[string]string
	descErr  map[string]error
	scenes   gemini.SceneSuggestions
	list     []string
	review   gemini.PromptReview

	prompts []string
	refs    [][]media.Image
	counts  []int
}

func (f *fakeGen) record(prompt string, refs []media.Image, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.refs = append(f.refs, refs)
	f.counts = append(f.counts, n)
}

func (f *fakeGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGen) block(ctx context.Context) error {
	if !f.wait {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeGen) GenerateImage(ctx context.Context, prompt string, refs []media.Image, _ gemini.ImageOptions) (media.Image, error) {
	f.record(prompt, refs, 1)
	if err := f.block(ctx); err != nil {
		return media.Image{}, err
	}
	return f.image, nil
}

func (f *fakeGen) GenerateImages(ctx context.Context, prompt string, refs []media.Image, n int, _ gemini.ImageOptions) ([]media.Image, error) {
	f.record(prompt, refs, n)
	if err := f.block(ctx); err != nil {
		return nil, err
	}
	out := make([]media.Image, n)
	for i := range out {
		out[i] = f.image
	}
	return out, nil
}

func (f *fakeGen) RemoveBackground(ctx context.Context, img media.Image) (media.Image, error) {
	f.record("remove", []media.Image{img}, 1)
	if err := f.block(ctx); err != nil {
		return media.Image{}, err
	}
	return f.image, nil
}

func (f *fakeGen) Describe(ctx context.Context, instruction string, imgs []media.Image) (string, error) {
	f.record(instruction, imgs, 1)
	for prefix, err := range f.descErr {
		if strings.HasPrefix(instruction, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.describe {
		if strings.HasPrefix(instruction, prefix) {
			return out, nil
		}
	}
	return "", errors.New("unexpected instruction")
}

func (f *fakeGen) SuggestScenes(ctx context.Context, instruction string, imgs []media.Image) (gemini.SceneSuggestions, error) {
	f.record(instruction, imgs, 1)
	if err := f.block(ctx); err != nil {
		return gemini.SceneSuggestions{}, err
	}
	return f.scenes, nil
}

func (f *fakeGen) SuggestList(ctx context.Context, instruction string, imgs []media.Image) ([]string, error) {
	f.record(instruction, imgs, 1)
	if err := f.block(ctx); err != nil {
		return nil, err
	}
	return f.list, nil
}

func (f *fakeGen) ReviewPrompt(ctx context.Context, instruction string, imgs []media.Image) (gemini.PromptReview, error) {
	f.record(instruction, imgs, 1)
	if err := f.block(ctx); err != nil {
		return gemini.PromptReview{}, err
	}
	return f.review, nil
}

func (f *fakeGen) GenerateVideo(ctx context.Context, prompt string, img *media.Image, _ gemini.VideoOptions) (media.Image, error) {
	var refs []media.Image
	if img != nil {
		refs = append(refs, *img)
	}
	f.record(prompt, refs, 1)
	if err := f.block(ctx); err != nil {
		return media.Image{}, err
	}
	return media.Image{MimeType: "video/mp4", Data: []byte("mp4")}, nil
}

func newService(t *testing.T, gen *fakeGen) (*Service, string) {
	t.Helper()
	svc := NewService(ServiceOptions{
		Generator: gen,
		Library:   library.New(0),
		Timeouts:  Timeouts{Generate: time.Second, Analyze: time.Second, Video: time.Second},
	})
	return svc, svc.Sessions().Create()
}

func TestGeneratePosterRequiresBackground(t *testing.T) {
	gen := &fakeGen{}
	svc, id := newService(t, gen)

	_, err := svc.GeneratePoster(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	assert.Equal(t, 0, gen.calls())

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Error)
	assert.Empty(t, v.Pending)
}

func TestGeneratePoster(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 4, 4)}
	svc, id := newService(t, gen)

	_, err := svc.Upload(id, RoleBackground, pngImage(t, 30, 60))
	require.NoError(t, err)
	_, err = svc.Upload(id, RoleFace, pngImage(t, 10, 10))
	require.NoError(t, err)
	layerID, err := svc.Upload(id, RoleProduct, pngImage(t, 20, 10))
	require.NoError(t, err)

	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		sess.Poster.UpdateLayer(layerID, poster.Patch{MainProduct: ptr(true)})
		return sess.Apply(OptionsPatch{
			Variations:   ptr(2),
			PreserveFace: ptr(true),
			Lighting:     ptr("neon"),
			Supplement:   ptr("summer sale"),
		})
	}))

	res, err := svc.GeneratePoster(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, res.Images, 3)
	assert.Equal(t, res.Composite, res.Images[0])
	assert.Equal(t, "image/jpeg", res.Composite.MimeType)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(res.Composite.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 1820, cfg.Height)

	require.Equal(t, 1, gen.calls())
	assert.Equal(t, 2, gen.counts[0])
	require.Len(t, gen.refs[0], 2)
	assert.Equal(t, res.Composite, gen.refs[0][0])
	assert.Contains(t, res.Prompt, "recreate it as 2")
	assert.Contains(t, res.Prompt, "MAIN PRODUCT")
	assert.True(t, strings.HasSuffix(res.Prompt, "summer sale"))

	items := svc.Library().List()
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, SourcePoster, it.Source)
		assert.Equal(t, res.Prompt, it.Prompt)
	}

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	assert.Len(t, v.Results, 3)
	assert.Empty(t, v.Pending)
	assert.Empty(t, v.Error)
}

func TestGeneratePosterFailureKeepsLayers(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGen
		code apperr.Code
	}{
		{"external", &fakeGen{err: apperr.New(apperr.CodeExternal, "image generation was blocked: SAFETY")}, apperr.CodeExternal},
		{"uncoded", &fakeGen{err: errors.New("connection reset")}, apperr.CodeExternal},
		{"timeout", &fakeGen{wait: true}, apperr.CodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, id := newService(t, tt.gen)
			svc.timeouts.Generate = 20 * time.Millisecond

			_, err := svc.Upload(id, RoleBackground, pngImage(t, 8, 8))
			require.NoError(t, err)
			_, err = svc.Upload(id, RoleProduct, pngImage(t, 8, 8))
			require.NoError(t, err)

			_, err = svc.GeneratePoster(context.Background(), id)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))

			v, err := svc.Sessions().View(id)
			require.NoError(t, err)
			assert.Len(t, v.Layers, 1)
			assert.Empty(t, v.Results)
			assert.Empty(t, v.Pending)
			assert.NotEmpty(t, v.Error)
			assert.Equal(t, 0, svc.Library().Len())
		})
	}
}

func TestGeneratePosterCompositeFailure(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 4, 4)}
	svc, id := newService(t, gen)

	_, err := svc.Upload(id, RoleBackground, pngImage(t, 8, 8))
	require.NoError(t, err)
	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		sess.Poster.AddImageLayer(media.Image{MimeType: "image/png", Data: []byte("broken")}, 1)
		return nil
	}))

	_, err = svc.GeneratePoster(context.Background(), id)
	assert.True(t, apperr.Is(err, apperr.CodeComposite))
	assert.Equal(t, 0, gen.calls())
}

func TestUploadRejectsNonImage(t *testing.T) {
	svc, id := newService(t, &fakeGen{})

	_, err := svc.Upload(id, RoleProduct, media.Image{MimeType: "application/pdf", Data: []byte("%PDF")})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	assert.Empty(t, v.Layers)
}

func TestUploadRoles(t *testing.T) {
	svc, id := newService(t, &fakeGen{})

	productID, err := svc.Upload(id, RoleProduct, pngImage(t, 40, 20))
	require.NoError(t, err)
	logoID, err := svc.Upload(id, RoleLogo, pngImage(t, 10, 10))
	require.NoError(t, err)
	_, err = svc.Upload(id, RoleGallery, pngImage(t, 10, 10))
	require.NoError(t, err)

	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		product, ok := sess.Poster.Layer(productID)
		require.True(t, ok)
		assert.InDelta(t, product.Width/2, product.Height, 1e-9)

		logo, ok := sess.Poster.Layer(logoID)
		require.True(t, ok)
		assert.Equal(t, 100.0, logo.Width)
		assert.Equal(t, product.ZIndex+10, logo.ZIndex)
		assert.Len(t, sess.Gallery, 1)
		return nil
	}))

	fromGallery, err := svc.AddGalleryImage(id, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, fromGallery)

	_, err = svc.AddGalleryImage(id, 3)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestApplyOptions(t *testing.T) {
	sess := newSession("s", DefaultVariations)

	require.NoError(t, sess.Apply(OptionsPatch{AspectRatio: ptr("16:9"), Quality: ptr("ultra")}))
	assert.Equal(t, poster.Ratio16x9, sess.Poster.Canvas().AspectRatio)
	assert.Equal(t, poster.Ratio16x9, sess.Options.AspectRatio)

	tests := []struct {
		name  string
		patch OptionsPatch
	}{
		{"aspect", OptionsPatch{AspectRatio: ptr("3:2")}},
		{"quality", OptionsPatch{Quality: ptr("cinematic")}},
		{"variations", OptionsPatch{Variations: ptr(9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := sess.Options
			err := sess.Apply(tt.patch)
			assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
			assert.Equal(t, before, sess.Options)
		})
	}
}

func TestRemoveLayerBackground(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 100, 50)}
	svc, id := newService(t, gen)

	layerID, err := svc.Upload(id, RoleProduct, pngImage(t, 10, 10))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveLayerBackground(context.Background(), id, layerID))

	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		l, ok := sess.Poster.Layer(layerID)
		require.True(t, ok)
		ip, _ := l.Image()
		assert.Equal(t, gen.image, ip.Image)
		assert.Equal(t, 2.0, ip.AspectRatio)
		assert.InDelta(t, l.Width/2, l.Height, 1e-9)
		return nil
	}))

	err = svc.RemoveLayerBackground(context.Background(), id, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRemoveGalleryBackground(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 6, 6)}
	svc, id := newService(t, gen)

	_, err := svc.Upload(id, RoleGallery, pngImage(t, 10, 10))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveGalleryBackground(context.Background(), id, 0))

	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		assert.Equal(t, gen.image, sess.Gallery[0])
		return nil
	}))
}

func TestGenerateBackground(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 8, 8)}
	svc, id := newService(t, gen)

	_, err := svc.GenerateBackground(context.Background(), id)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	assert.Equal(t, 0, gen.calls())

	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		return sess.Apply(OptionsPatch{Scene: ptr("a rooftop at dusk")})
	}))
	_, err = svc.GenerateBackground(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, gen.prompts[0], "a rooftop at dusk")
	assert.Contains(t, gen.prompts[0], "a simple surface")

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	assert.True(t, v.HasBackground)
}

func TestSuggestScenes(t *testing.T) {
	gen := &fakeGen{scenes: gemini.SceneSuggestions{Scenes: []string{"beach"}, Stages: []string{"rock"}}}
	svc, id := newService(t, gen)

	_, err := svc.SuggestScenes(context.Background(), id)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	var hidden string
	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		sess.Poster.AddTextLayer()
		hidden = sess.Poster.AddTextLayer()
		sess.Poster.UpdateLayer(hidden, poster.Patch{Content: ptr("SECRET")})
		sess.Poster.SetVisible(hidden, false)
		return nil
	}))
	_, err = svc.Upload(id, RoleProduct, pngImage(t, 8, 8))
	require.NoError(t, err)

	got, err := svc.SuggestScenes(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"beach"}, got.Scenes)
	assert.Contains(t, gen.prompts[0], "Your text here")
	assert.NotContains(t, gen.prompts[0], "SECRET")
	assert.Len(t, gen.refs[0], 1)

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	require.NotNil(t, v.Suggestions)
	assert.Equal(t, []string{"rock"}, v.Suggestions.Stages)
}

func TestAnalyzeScene(t *testing.T) {
	const (
		contextPrefix = "Describe the SETTING"
		stylePrefix   = "Analyze the STYLE"
		optimizePref  = "Rewrite"
	)

	t.Run("later failure keeps earlier results", func(t *testing.T) {
		gen := &fakeGen{
			describe: map[string]string{contextPrefix: "a misty forest", optimizePref: "misty pine forest at dawn"},
			descErr:  map[string]error{stylePrefix: apperr.New(apperr.CodeExternal, "blocked")},
		}
		svc, id := newService(t, gen)

		reports, err := svc.AnalyzeScene(context.Background(), id, pngImage(t, 4, 4), true)
		require.NoError(t, err)
		require.Len(t, reports, 4)
		assert.Equal(t, StageOK, reports[0].Status)
		assert.Equal(t, StageOK, reports[1].Status)
		assert.Equal(t, StageFailed, reports[2].Status)
		assert.Equal(t, StageOK, reports[3].Status)

		v, err := svc.Sessions().View(id)
		require.NoError(t, err)
		assert.Equal(t, "misty pine forest at dawn", v.Options.Scene)
		assert.Empty(t, v.Options.Supplement)
	})

	t.Run("failed context skips optimize", func(t *testing.T) {
		gen := &fakeGen{
			describe: map[string]string{stylePrefix: "moody film"},
			descErr:  map[string]error{contextPrefix: errors.New("reset")},
		}
		svc, id := newService(t, gen)

		reports, err := svc.AnalyzeScene(context.Background(), id, pngImage(t, 4, 4), true)
		require.NoError(t, err)
		assert.Equal(t, StageFailed, reports[1].Status)
		assert.Equal(t, StageOK, reports[2].Status)
		assert.Equal(t, StageSkipped, reports[3].Status)

		v, err := svc.Sessions().View(id)
		require.NoError(t, err)
		assert.Empty(t, v.Options.Scene)
		assert.Equal(t, "Style: moody film", v.Options.Supplement)
	})

	t.Run("bad upload stops everything", func(t *testing.T) {
		svc, id := newService(t, &fakeGen{})
		reports, err := svc.AnalyzeScene(context.Background(), id, media.Image{MimeType: "text/plain", Data: []byte("x")}, false)
		require.NoError(t, err)
		require.Len(t, reports, 3)
		assert.Equal(t, StageFailed, reports[0].Status)
		assert.Equal(t, StageSkipped, reports[1].Status)
		assert.Equal(t, StageSkipped, reports[2].Status)
	})
}

func TestPipelineRetry(t *testing.T) {
	attempts := 0
	p := NewPipeline(time.Second, nil,
		Stage{Name: "a", Run: func(context.Context, map[string]string) (string, error) { return "A", nil }},
		Stage{Name: "b", Needs: []string{"a"}, Run: func(_ context.Context, out map[string]string) (string, error) {
			attempts++
			if attempts == 1 {
				return "", errors.New("flaky")
			}
			return out["a"] + "B", nil
		}},
	)

	reports := p.Run(context.Background())
	assert.Equal(t, StageOK, reports[0].Status)
	assert.Equal(t, StageFailed, reports[1].Status)
	assert.Equal(t, "A", p.Outputs()["a"])

	rep, err := p.Retry(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, StageOK, rep.Status)
	assert.Equal(t, "AB", rep.Output)

	_, err = p.Retry(context.Background(), "c")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestBeginRejectsDuplicateOperation(t *testing.T) {
	svc, id := newService(t, &fakeGen{})

	require.NoError(t, svc.begin(id, OpGenerate, nil))
	err := svc.begin(id, OpGenerate, nil)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	require.NoError(t, svc.begin(id, OpSuggest, nil))

	v, err := svc.Sessions().View(id)
	require.NoError(t, err)
	assert.Equal(t, []string{OpGenerate, OpSuggest}, v.Pending)

	svc.finish(id, OpGenerate, nil)
	svc.finish(id, OpSuggest, nil)
	v, err = svc.Sessions().View(id)
	require.NoError(t, err)
	assert.Empty(t, v.Pending)
}

func TestGenerateVideo(t *testing.T) {
	gen := &fakeGen{}
	svc, _ := newService(t, gen)

	_, err := svc.GenerateVideo(context.Background(), VideoRequest{Prompt: "  "})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	item, err := svc.GenerateVideo(context.Background(), VideoRequest{Prompt: "a slow pan over the product"})
	require.NoError(t, err)
	assert.Equal(t, library.KindVideo, item.Kind)
	assert.Equal(t, SourceVideo, item.Source)
	assert.Equal(t, "video/mp4", item.Media.MimeType)
}

func TestGenerateProductShot(t *testing.T) {
	gen := &fakeGen{image: pngImage(t, 4, 4)}
	svc, _ := newService(t, gen)

	_, err := svc.GenerateProductShot(context.Background(), ProductShotRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	product := pngImage(t, 8, 8)
	out, err := svc.GenerateProductShot(context.Background(), ProductShotRequest{
		Product: &product,
		Details: []media.Image{pngImage(t, 4, 4)},
		Context: "a sunny beach",
		Count:   2,
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, gen.refs[0], 2)
	assert.Contains(t, gen.prompts[0], "a sunny beach")
	assert.Equal(t, 2, svc.Library().Len())
}

func TestSaveAndOpenPoster(t *testing.T) {
	svc, id := newService(t, &fakeGen{})
	docs := memory.NewStore()
	ctx := context.Background()

	_, err := svc.Upload(id, RoleProduct, pngImage(t, 8, 8))
	require.NoError(t, err)
	require.NoError(t, svc.Sessions().Update(id, func(sess *Session) error {
		sess.Poster.AddTextLayer()
		return sess.Apply(OptionsPatch{AspectRatio: ptr("4:5")})
	}))

	docID, err := svc.SavePoster(ctx, docs, id, "", "")
	require.NoError(t, err)
	saved, err := docs.Find(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "Untitled poster", saved.Name)

	reopened, err := svc.OpenPoster(ctx, docs, docID)
	require.NoError(t, err)
	assert.NotEqual(t, id, reopened)

	orig, err := svc.Sessions().View(id)
	require.NoError(t, err)
	got, err := svc.Sessions().View(reopened)
	require.NoError(t, err)
	assert.Equal(t, orig.Layers, got.Layers)
	assert.Equal(t, poster.Ratio4x5, got.Options.AspectRatio)

	_, err = svc.OpenPoster(ctx, docs, "nope")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func ptr[T any](v T) *T { return &v }
