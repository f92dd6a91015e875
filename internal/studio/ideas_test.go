package studio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio/internal/apperr"
	"poster-studio/internal/gemini"
	"poster-studio/internal/media"
	"poster-studio/internal/prompt"
)

func TestFieldIdeas(t *testing.T) {
	gen := &fakeGen{list: []string{"a red fox", "an astronaut"}}
	svc, _ := newService(t, gen)

	out, err := svc.FieldIdeas(context.Background(), prompt.FieldSubject, map[prompt.Field]string{prompt.FieldSetting: "snowy forest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a red fox", "an astronaut"}, out)
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "Setting: snowy forest")
	assert.Empty(t, gen.refs[0])
}

func TestProductScenesAndActions(t *testing.T) {
	gen := &fakeGen{list: []string{"marble counter"}}
	svc, _ := newService(t, gen)
	product := pngImage(t, 4, 4)

	out, err := svc.ProductScenes(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, []string{"marble counter"}, out)
	assert.Equal(t, prompt.ProductSceneIdeas, gen.prompts[0])
	assert.Equal(t, []media.Image{product}, gen.refs[0])

	_, err = svc.ProductScenes(context.Background(), media.Image{MimeType: "text/plain", Data: []byte("x")})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = svc.ActionIdeas(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = svc.ActionIdeas(context.Background(), []media.Image{product, product})
	require.NoError(t, err)
	assert.Len(t, gen.refs[1], 2)
}

func TestPoseFlow(t *testing.T) {
	gen := &fakeGen{
		list: []string{"hand on hip"},
		describe: map[string]string{
			prompt.PoseAnalysis: "weight on left leg, head tilted right",
			"You write precise": "weight on left leg, right hand resting on the hip",
		},
	}
	svc, _ := newService(t, gen)
	ref := pngImage(t, 4, 4)

	ideas, err := svc.PoseIdeas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hand on hip"}, ideas)

	desc, err := svc.DescribePose(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "weight on left leg, head tilted right", desc)

	better, err := svc.OptimizePose(context.Background(), desc, ref)
	require.NoError(t, err)
	assert.Equal(t, "weight on left leg, right hand resting on the hip", better)
	assert.Contains(t, gen.prompts[2], desc)

	_, err = svc.OptimizePose(context.Background(), " ", ref)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	assert.Equal(t, 3, gen.calls())
}

func TestTranslate(t *testing.T) {
	gen := &fakeGen{describe: map[string]string{"Translate the following text to English": "a cat on the roof"}}
	svc, _ := newService(t, gen)

	out, err := svc.Translate(context.Background(), "con mèo trên mái nhà", "en")
	require.NoError(t, err)
	assert.Equal(t, "a cat on the roof", out)

	out, err = svc.Translate(context.Background(), "   ", "en")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, gen.calls())

	_, err = svc.Translate(context.Background(), "hi", "xx")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestReviewPromptSendsReferencesInOrder(t *testing.T) {
	review := gemini.PromptReview{Analysis: "vague", ImprovedPrompt: "precise"}
	gen := &fakeGen{review: review}
	svc, _ := newService(t, gen)
	model, pose, outfit := pngImage(t, 2, 2), pngImage(t, 3, 3), pngImage(t, 4, 4)

	out, err := svc.ReviewPrompt(context.Background(), ReviewRequest{Prompt: "swap the jacket", Model: model, Pose: &pose, Outfit: &outfit})
	require.NoError(t, err)
	assert.Equal(t, review, out)
	assert.Equal(t, []media.Image{model, pose, outfit}, gen.refs[0])
	assert.Contains(t, gen.prompts[0], "Image 2 is the pose reference")

	_, err = svc.ReviewPrompt(context.Background(), ReviewRequest{Prompt: "swap", Model: media.Image{}})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = svc.ReviewPrompt(context.Background(), ReviewRequest{Model: model})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
	assert.Equal(t, 1, gen.calls())
}
