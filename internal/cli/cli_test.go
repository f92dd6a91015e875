package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio/internal/config"
	"poster-studio/internal/gemini"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
)

const testScene = `
aspect_ratio = "1:1"
background = "bg.png"

[prompt]
quality = "high"
lighting = "soft"
variations = 2

[[layer]]
kind = "image"
path = "product.png"
main_product = true

[[layer]]
kind = "text"
content = "NEW"
preset = "headline"
`

func writePNG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 90, G: 160, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bg.png"), 12, 12)
	writePNG(t, filepath.Join(dir, "product.png"), 20, 10)
	path := filepath.Join(dir, "poster.toml")
	require.NoError(t, os.WriteFile(path, []byte(testScene), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(io.Discard)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRender(t *testing.T) {
	path := writeScene(t)
	dest := filepath.Join(filepath.Dir(path), "out.png")

	_, err := execute(t, "render", path, "-o", dest, "--width", "200")
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestRenderDefaultOutput(t *testing.T) {
	path := writeScene(t)
	_, err := execute(t, "render", path)
	require.NoError(t, err)
	_, err = os.Stat(withExt(path, ".jpg"))
	assert.NoError(t, err)
}

func TestRenderMissingScene(t *testing.T) {
	_, err := execute(t, "render", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	path := writeScene(t)

	out, err := execute(t, "prompt", path)
	require.NoError(t, err)
	assert.Contains(t, out, "MAIN PRODUCT")
	assert.Contains(t, out, "2 cohesive")

	out, err = execute(t, "prompt", path, "--args", "neon glow")
	require.NoError(t, err)
	assert.Contains(t, out, "neon glow")
}

func TestExport(t *testing.T) {
	path := writeScene(t)
	out, err := execute(t, "export", path)
	require.NoError(t, err)

	doc, err := poster.DecodeDocument([]byte(out))
	require.NoError(t, err)
	assert.Len(t, doc.Layers, 2)
	assert.Equal(t, poster.Ratio1x1, doc.Canvas.AspectRatio)
}

type stubGen struct {
	image media.Image
	n     int
}

func (g *stubGen) GenerateImage(context.Context, string, []media.Image, gemini.ImageOptions) (media.Image, error) {
	return g.image, nil
}

func (g *stubGen) GenerateImages(_ context.Context, _ string, _ []media.Image, n int, _ gemini.ImageOptions) ([]media.Image, error) {
	g.n = n
	out := make([]media.Image, n)
	for i := range out {
		out[i] = g.image
	}
	return out, nil
}

func (g *stubGen) RemoveBackground(context.Context, media.Image) (media.Image, error) {
	return g.image, nil
}

func (g *stubGen) Describe(context.Context, string, []media.Image) (string, error) { return "", nil }

func (g *stubGen) SuggestScenes(context.Context, string, []media.Image) (gemini.SceneSuggestions, error) {
	return gemini.SceneSuggestions{}, nil
}

func (g *stubGen) SuggestList(context.Context, string, []media.Image) ([]string, error) {
	return nil, nil
}

func (g *stubGen) ReviewPrompt(context.Context, string, []media.Image) (gemini.PromptReview, error) {
	return gemini.PromptReview{}, nil
}

func (g *stubGen) GenerateVideo(context.Context, string, *media.Image, gemini.VideoOptions) (media.Image, error) {
	return media.Image{}, nil
}

func TestGenerateWritesImages(t *testing.T) {
	path := writeScene(t)
	data := writePNG(t, filepath.Join(t.TempDir(), "v.png"), 4, 4)
	gen := &stubGen{image: media.New(data, "image/png")}
	out := t.TempDir()

	opts := generateOpts{outDir: out}
	ctx := withLogger(context.Background(), newLogger(io.Discard, charmlog.InfoLevel))
	require.NoError(t, runGenerate(ctx, path, &opts, gen, config.Config{OutputWidth: 100}))

	assert.Equal(t, 2, gen.n)
	for _, name := range []string{"poster-composite.jpg", "poster-1.png", "poster-2.png"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}
