package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio/internal/apperr"
)

func TestParseField(t *testing.T) {
	f, err := ParseField(" setting ")
	require.NoError(t, err)
	assert.Equal(t, FieldSetting, f)

	_, err = ParseField("style")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestFieldIdeas(t *testing.T) {
	out := FieldIdeas(FieldAction, map[Field]string{
		FieldAction:   "ignored",
		FieldLighting: "neon",
		FieldSubject:  " a cat ",
		FieldSetting:  " ",
	})
	assert.Contains(t, out, "Known elements: Subject: a cat, Lighting: neon.")
	assert.Contains(t, out, `"Action"`)
	assert.NotContains(t, out, "ignored")

	assert.Contains(t, FieldIdeas(FieldSubject, nil), "Known elements: none.")
}

func TestOptimizePose(t *testing.T) {
	_, err := OptimizePose("  ")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	out, err := OptimizePose("arms crossed")
	require.NoError(t, err)
	assert.Contains(t, out, `"arms crossed"`)
	assert.Contains(t, out, "Describe the pose only.")
}

func TestImprovePrompt(t *testing.T) {
	_, err := ImprovePrompt("", false)
	require.Error(t, err)

	out, err := ImprovePrompt("wear the jacket", true)
	require.NoError(t, err)
	assert.Contains(t, out, "Image 2 is the pose reference")
	assert.Contains(t, out, `"wear the jacket"`)

	out, err = ImprovePrompt("wear the jacket", false)
	require.NoError(t, err)
	assert.NotContains(t, out, "pose reference")
}

func TestTranslate(t *testing.T) {
	out, err := Translate("xin chào", "EN")
	require.NoError(t, err)
	assert.Contains(t, out, "to English")
	assert.Contains(t, out, `"xin chào"`)

	out, err = Translate("  ", "vi")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = Translate("hi", "klingon")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}
