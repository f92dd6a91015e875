package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"poster-studio/internal/config"
	"poster-studio/internal/gemini"
	"poster-studio/internal/httpclient"
	"poster-studio/internal/library"
	"poster-studio/internal/studio"
)

type generateOpts struct {
	scene      sceneOpts
	outDir     string
	variations int
}

func newGenerateCmd() *cobra.Command {
	var opts generateOpts
	cmd := &cobra.Command{
		Use:   "generate [scene.toml]",
		Short: "Composite a scene and generate poster variations with the image model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadCLI()
			if cfg.GeminiAPIKey == "" {
				return errors.New("GEMINI_API_KEY is required for generate")
			}
			gen := gemini.New(gemini.Options{
				APIKey:     cfg.GeminiAPIKey,
				BaseURL:    cfg.GeminiBaseURL,
				APIVersion: cfg.GeminiAPIVersion,
				HTTPClient: httpclient.New(httpclient.Options{
					PreferIPv4: cfg.PreferIPv4,
					Timeout:    cfg.HTTPTimeout,
				}),
				Logger: slogFromContext(cmd.Context()),
			})
			return runGenerate(cmd.Context(), args[0], &opts, gen, cfg)
		},
	}
	opts.scene.register(cmd)
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default: next to the scene file)")
	cmd.Flags().IntVarP(&opts.variations, "variations", "n", 0, "number of variations (default: scene or VARIATIONS)")
	return cmd
}

// runGenerate drives the same flow as the web studio for a single scene.
func runGenerate(ctx context.Context, path string, opts *generateOpts, gen studio.Generator, cfg config.Config) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	sc, err := opts.scene.load(ctx, path)
	if err != nil {
		return err
	}

	svc := studio.NewService(studio.ServiceOptions{
		Sessions:  studio.NewStore(studio.StoreOptions{Variations: cfg.Variations}),
		Generator: gen,
		Library:   library.New(0),
		Timeouts: studio.Timeouts{
			Generate: cfg.GenerateTimeout,
			Analyze:  cfg.AnalyzeTimeout,
			Video:    cfg.VideoTimeout,
		},
		OutputWidth: cfg.OutputWidth,
		Logger:      slogFromContext(ctx),
	})

	id := svc.Sessions().Create()
	if err := svc.Sessions().Replace(id, sc.Poster); err != nil {
		return err
	}
	err = svc.Sessions().Update(id, func(sess *studio.Session) error {
		sess.Face = sc.Face
		sess.Options.Quality = sc.Options.Quality
		sess.Options.Lighting = sc.Options.Lighting
		sess.Options.Atmosphere = sc.Options.Atmosphere
		sess.Options.Supplement = sc.Options.Supplement
		sess.Options.PreserveFace = sc.Options.PreserveFace
		n := opts.variations
		if n <= 0 {
			n = sc.Options.Variations
		}
		if n > 0 {
			return sess.Apply(studio.OptionsPatch{Variations: &n})
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("generating", "scene", path)
	res, err := svc.GeneratePoster(ctx, id)
	if err != nil {
		return err
	}

	dir := opts.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, img := range res.Images {
		name := fmt.Sprintf("%s-%d%s", base, i, extFor(img.MimeType))
		if i == 0 {
			name = base + "-composite" + extFor(img.MimeType)
		}
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, img.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		logger.Debug("wrote image", "file", dest)
	}
	prog.done("generated", "images", len(res.Images), "dir", dir)
	return nil
}
