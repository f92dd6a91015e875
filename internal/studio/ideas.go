package studio

import (
	"context"

	"poster-studio/internal/apperr"
	"poster-studio/internal/gemini"
	"poster-studio/internal/media"
	"poster-studio/internal/prompt"
)

// FieldIdeas suggests values for one part of a structured prompt.
func (s *Service) FieldIdeas(ctx context.Context, field prompt.Field, current map[prompt.Field]string) ([]string, error) {
	return s.list(ctx, prompt.FieldIdeas(field, current), nil)
}

// ProductScenes suggests scenes to shoot a product in.
func (s *Service) ProductScenes(ctx context.Context, product media.Image) ([]string, error) {
	if err := media.Validate(product); err != nil {
		return nil, err
	}
	return s.list(ctx, prompt.ProductSceneIdeas, []media.Image{product})
}

// ActionIdeas suggests what the character does with the product and setting.
func (s *Service) ActionIdeas(ctx context.Context, refs []media.Image) ([]string, error) {
	if len(refs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "add at least one reference image")
	}
	for _, img := range refs {
		if err := media.Validate(img); err != nil {
			return nil, err
		}
	}
	return s.list(ctx, prompt.ActionIdeas, refs)
}

// PoseIdeas suggests model poses.
func (s *Service) PoseIdeas(ctx context.Context) ([]string, error) {
	return s.list(ctx, prompt.PoseIdeas, nil)
}

func (s *Service) list(ctx context.Context, instruction string, imgs []media.Image) ([]string, error) {
	var out []string
	err := s.call(ctx, s.timeouts.Analyze, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.gen.SuggestList(ctx, instruction, imgs)
		return callErr
	})
	return out, err
}

// DescribePose describes the pose in img without identifying the person.
func (s *Service) DescribePose(ctx context.Context, img media.Image) (string, error) {
	if err := media.Validate(img); err != nil {
		return "", err
	}
	return s.describe(ctx, prompt.PoseAnalysis, []media.Image{img})
}

// OptimizePose sharpens a pose description against its reference image.
func (s *Service) OptimizePose(ctx context.Context, description string, img media.Image) (string, error) {
	text, err := prompt.OptimizePose(description)
	if err != nil {
		return "", err
	}
	if err := media.Validate(img); err != nil {
		return "", err
	}
	return s.describe(ctx, text, []media.Image{img})
}

// Translate returns text in lang. Blank text is returned as "" without a call.
func (s *Service) Translate(ctx context.Context, text, lang string) (string, error) {
	instruction, err := prompt.Translate(text, lang)
	if err != nil || instruction == "" {
		return "", err
	}
	return s.describe(ctx, instruction, nil)
}

func (s *Service) describe(ctx context.Context, instruction string, imgs []media.Image) (string, error) {
	var out string
	err := s.call(ctx, s.timeouts.Analyze, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.gen.Describe(ctx, instruction, imgs)
		return callErr
	})
	return out, err
}

// ReviewRequest is a product-shot prompt with the references it combines.
type ReviewRequest struct {
	Prompt string
	Model  media.Image
	Pose   *media.Image
	Outfit *media.Image
}

// ReviewPrompt critiques req.Prompt and proposes a rewrite. References go
// out as model, pose, outfit.
func (s *Service) ReviewPrompt(ctx context.Context, req ReviewRequest) (gemini.PromptReview, error) {
	text, err := prompt.ImprovePrompt(req.Prompt, req.Pose != nil)
	if err != nil {
		return gemini.PromptReview{}, err
	}
	refs := []media.Image{req.Model}
	for _, img := range []*media.Image{req.Pose, req.Outfit} {
		if img != nil {
			refs = append(refs, *img)
		}
	}
	for _, img := range refs {
		if err := media.Validate(img); err != nil {
			return gemini.PromptReview{}, err
		}
	}

	var out gemini.PromptReview
	err = s.call(ctx, s.timeouts.Analyze, func(ctx context.Context) error {
		var callErr error
		out, callErr = s.gen.ReviewPrompt(ctx, text, refs)
		return callErr
	})
	return out, err
}
