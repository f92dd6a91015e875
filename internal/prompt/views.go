package prompt

import (
	"fmt"
	"strings"

	"poster-studio/internal/apperr"
)

// PosterOptions are the poster view selections.
type PosterOptions struct {
	PreserveFace       bool
	MainProductFlagged bool
	Lighting           string
	Atmosphere         string
	Quality            Quality
	Supplement         string
	Variations         int
}

// Poster builds the instruction sent with the flattened poster composite.
func Poster(o PosterOptions) string {
	n := o.Variations
	if n <= 0 {
		n = 3
	}
	return Assemble(Config{
		PreserveFace: o.PreserveFace,
		Intro: fmt.Sprintf("Using the supplied poster layout (the first reference image), recreate it as %d cohesive, "+
			"professional, photorealistic advertising images.", n),
		Clauses: []Clause{
			Toggle(o.MainProductFlagged, "- MAIN PRODUCT: pay special attention to the layer marked as the main product; "+
				"make it as attractive as possible and integrate it seamlessly into the scene."),
			Describe("- LIGHTING: apply a '%s' lighting style.", LightingName(o.Lighting)),
			Describe("- ATMOSPHERE: create a '%s' atmosphere.", AtmosphereName(o.Atmosphere)),
			Fixed("- GENERAL REQUIREMENT: the final result must look like a professional photograph, not a collage. " +
				"Blend every element naturally."),
		},
		Quality:    o.Quality,
		Supplement: o.Supplement,
	})
}

// ProductShotOptions are the product editor selections.
type ProductShotOptions struct {
	PreserveFace bool
	HasCharacter bool
	HasProduct   bool
	DetailImages int
	Context      string
	Style        string
	Quality      Quality
	Supplement   string
}

// ProductShot builds the editor prompt for a character holding or presenting
// a product.
func ProductShot(o ProductShotOptions) string {
	details := Clause{}
	if o.DetailImages > 0 {
		details = Fixed(fmt.Sprintf("SECONDARY DETAILS: combine elements from the %d detail reference images.", o.DetailImages))
	}
	return Assemble(Config{
		PreserveFace: o.PreserveFace && o.HasCharacter,
		Intro:        "Create a professional, photorealistic product showcase image.",
		Clauses: []Clause{
			Toggle(o.HasCharacter, "CHARACTER: use the person from the character reference image."),
			Toggle(o.HasProduct, "MAIN PRODUCT: feature the product from the main product reference image."),
			details,
			Describe(`CONTEXT: place the character and product in the following setting: "%s".`, o.Context),
			Describe(`STYLE: the image must have this artistic style: "%s".`, o.Style),
		},
		Quality:    o.Quality,
		Supplement: o.Supplement,
	})
}

// Background builds the prompt for a generated poster background. At least
// one of scene or stage must be given.
func Background(scene, stage string) (string, error) {
	scene = strings.TrimSpace(scene)
	stage = strings.TrimSpace(stage)
	if scene == "" && stage == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "describe a scene or a stage to generate a background")
	}
	if scene == "" {
		scene = "a clean studio space"
	}
	if stage == "" {
		stage = "a simple surface"
	}
	return Assemble(Config{
		Intro: "Create a high-quality photorealistic background image for product photography.",
		Clauses: []Clause{
			Describe(`- The main setting is: "%s".`, scene),
			Describe(`- Within that setting there is a stage or prominent area to place the product, described as: "%s".`, stage),
			Fixed("- The image must contain no products, people or text. Leave the stage empty."),
		},
	}), nil
}

// Fixed instructions for the analysis calls.
const (
	StyleAnalysis = "Analyze the STYLE of this image. Focus on abstract elements such as design trend " +
		"(for example minimalist, vintage, futuristic), dominant color palette, lighting quality " +
		"(for example soft, dramatic, natural) and photographic genre. Do NOT describe people or specific objects. " +
		"Return only a text description of the artistic style."

	ContextAnalysis = "Describe the SETTING of this image in detail: location, background elements, time of day, " +
		"lighting and mood. Do NOT describe people or products in the foreground. " +
		"Return only the description, suitable for reuse as a scene description."

	OptimizeDescription = "Rewrite the following scene description as a concise, vivid instruction for an image " +
		"generation model. Keep every concrete detail. Return only the rewritten text.\n\n"
)

// SceneSuggestion asks for five scene and five stage ideas for a poster made
// of the given text elements plus the attached images.
func SceneSuggestion(texts []string) string {
	var kept []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	listed := "none"
	if len(kept) > 0 {
		listed = strings.Join(kept, ", ")
	}

	var b strings.Builder
	b.WriteString("You are the creative director for an advertising poster.\n")
	b.WriteString("Based on the supplied elements (product images, logo and text), do the following:\n")
	b.WriteString("1. Suggest 5 ideas for the overall \"scene\" of the poster.\n")
	b.WriteString("2. Suggest 5 ideas for the \"stage\", the spot where the main products are showcased.\n")
	b.WriteString("Suggestions must be short, creative and varied in style.\n")
	b.WriteString("Return a single JSON object only.\n\n")
	b.WriteString("Text elements on the poster: " + listed)
	return b.String()
}
