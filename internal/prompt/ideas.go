package prompt

import (
	"fmt"
	"strings"

	"poster-studio/internal/apperr"
)

// Field is one part of a structured image prompt.
type Field string

const (
	FieldSubject  Field = "subject"
	FieldAction   Field = "action"
	FieldSetting  Field = "setting"
	FieldLighting Field = "lighting"
	FieldStyle    Field = "style"
	FieldShotType Field = "shotType"
)

var fieldOrder = []Field{FieldSubject, FieldAction, FieldSetting, FieldStyle, FieldShotType, FieldLighting}

var fieldLabels = map[Field]string{
	FieldSubject:  "Subject",
	FieldAction:   "Action",
	FieldSetting:  "Setting",
	FieldStyle:    "Style",
	FieldShotType: "Shot type",
	FieldLighting: "Lighting",
}

// ParseField accepts only the fields ideas can be asked for.
func ParseField(value string) (Field, error) {
	switch f := Field(strings.TrimSpace(value)); f {
	case FieldSubject, FieldAction, FieldSetting, FieldLighting:
		return f, nil
	}
	return "", apperr.New(apperr.CodeInvalidInput, "ideas are available for subject, action, setting or lighting, not %q", value)
}

// FieldIdeas asks for five short ideas for field, given the other parts of
// the prompt the user already filled in.
func FieldIdeas(field Field, current map[Field]string) string {
	var known []string
	for _, f := range fieldOrder {
		if f == field {
			continue
		}
		if v := strings.TrimSpace(current[f]); v != "" {
			known = append(known, fieldLabels[f]+": "+v)
		}
	}
	listed := "none"
	if len(known) > 0 {
		listed = strings.Join(known, ", ")
	}

	var b strings.Builder
	b.WriteString("You are a creative assistant for AI image generation.\n")
	b.WriteString("Known elements: " + listed + ".\n")
	fmt.Fprintf(&b, "Suggest 5 creative ideas for the %q part of the prompt, each at most 15 words.\n", fieldLabels[field])
	b.WriteString("Return a JSON array of 5 strings only, without explanations or markdown.")
	return b.String()
}

// Fixed instructions for list and pose calls.
const (
	ProductSceneIdeas = "You are the creative director of a product photo shoot. Analyze the product in the image " +
		"and suggest 5 creative, varied scenes to photograph it in, mixing styles such as modern, classic, retro, " +
		"romantic and minimalist. Consider colors, lighting and space that suit the product. " +
		"Return a JSON array of 5 strings only, without explanations or markdown."

	ActionIdeas = "You are the creative director of an advertising photo shoot. Based on the reference images " +
		"(character, product and setting), suggest 5 short actions that bring these elements together naturally. " +
		"Return a JSON array of 5 strings only, without explanations or markdown."

	PoseIdeas = "You are the creative director of a fashion shoot. Suggest 5 creative, professional poses for a model. " +
		"Each must state the standing or sitting posture, arm and leg placement and expression. " +
		"Return a JSON array of 5 strings only."

	PoseAnalysis = "Analyze the POSE of the person in this image. Describe only posture, arm and leg placement, " +
		"head tilt and gaze direction. Never describe the face, clothing, setting or anything that identifies the person. " +
		"Return only the description, detailed enough to reproduce the pose."
)

// OptimizePose asks for a sharper version of a pose description, checked
// against the attached pose reference.
func OptimizePose(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "describe the pose to optimize")
	}
	return Assemble(Config{
		Intro: "You write precise pose instructions for an image generation model.",
		Clauses: []Clause{
			Describe(`Starting description: "%s".`, description),
			Fixed("Using the reference image, rewrite it with exact placement of hands, fingers, arms and legs, head tilt, gaze, back curve and shoulders."),
			Fixed("Describe the pose only. Never mention clothing, face, hair, setting or identifying details."),
			Fixed("Return only the rewritten prompt, without explanations or markdown."),
		},
	}), nil
}

// ImprovePrompt asks for a critique and a rewrite of a product-shot prompt
// that uses the attached references: the model first, then an optional pose
// reference, then the outfit.
func ImprovePrompt(current string, hasPose bool) (string, error) {
	current = strings.TrimSpace(current)
	if current == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "write a prompt to improve")
	}
	refs := "Image 1 is the model; keep their face and hair. The last image is the outfit to dress them in."
	if hasPose {
		refs = "Image 1 is the model; keep their face and hair. Image 2 is the pose reference; take only its pose and setting. " +
			"Image 3 is the outfit to dress them in."
	}
	return Assemble(Config{
		Intro: "You are an expert at prompts for outfit and pose changes in AI image generation.",
		Clauses: []Clause{
			Fixed(refs),
			Describe(`Current prompt: "%s".`, current),
			Fixed(`1. In "analysis", judge how well the prompt uses the references, especially whether the pose part avoids describing the pose reference's clothing or face.`),
			Fixed(`2. In "improvedPrompt", write a better prompt that keeps the face and hair, applies the pose and setting, dresses the model in the outfit and blends everything into one realistic photo.`),
			Fixed("Return a single JSON object only."),
		},
	}), nil
}

var languages = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
	"uz": "Uzbek",
	"ru": "Russian",
}

// Translate builds the translation instruction for text. An empty text needs
// no call and yields an empty instruction.
func Translate(text, lang string) (string, error) {
	name, ok := languages[strings.ToLower(strings.TrimSpace(lang))]
	if !ok {
		return "", apperr.New(apperr.CodeInvalidInput, "unsupported language %q", lang)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	return fmt.Sprintf("Translate the following text to %s. Return only the translation, without explanations or markdown.\n\nText:\n%q", name, text), nil
}
