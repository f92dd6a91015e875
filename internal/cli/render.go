package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"poster-studio/internal/compositor"
	"poster-studio/internal/media"
	"poster-studio/internal/poster"
	"poster-studio/internal/prompt"
	"poster-studio/internal/scenefile"
)

// sceneOpts are the flags shared by every command that reads a scene.
type sceneOpts struct {
	layout string // overrides the scene file layout
	args   string // prompt shorthand, e.g. "ultra light=neon"
}

func (o *sceneOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.layout, "layout", "", "layout override: freeform, center-main, side-by-side")
	cmd.Flags().StringVar(&o.args, "args", "", `prompt shorthand applied over the scene, e.g. "ultra light=neon"`)
}

// load reads the scene at path and applies the overrides.
func (o *sceneOpts) load(ctx context.Context, path string) (scenefile.Scene, error) {
	logger := loggerFromContext(ctx)

	sc, err := scenefile.Load(path)
	if err != nil {
		return scenefile.Scene{}, err
	}
	if o.layout != "" {
		layout, err := poster.ParseLayout(o.layout)
		if err != nil {
			return scenefile.Scene{}, err
		}
		sc.Poster.ApplyLayout(layout)
		sc.Layout = layout
	}
	if strings.TrimSpace(o.args) != "" {
		args := prompt.ParseArgs(o.args, prompt.Args{
			Quality:    sc.Options.Quality,
			Lighting:   sc.Options.Lighting,
			Atmosphere: sc.Options.Atmosphere,
			Face:       sc.Options.PreserveFace,
			Supplement: sc.Options.Supplement,
		})
		sc.Options.Quality = args.Quality
		sc.Options.Lighting = args.Lighting
		sc.Options.Atmosphere = args.Atmosphere
		sc.Options.PreserveFace = args.Face
		if args.Supplement != "" {
			sc.Options.Supplement = args.Supplement
		}
		if args.AspectRatio != "" {
			ar, err := poster.ParseAspectRatio(args.AspectRatio)
			if err != nil {
				return scenefile.Scene{}, err
			}
			canvas := sc.Poster.Canvas()
			canvas.AspectRatio = ar
			sc.Poster.SetCanvas(canvas)
		}
		if args.Layout != "" {
			layout, err := poster.ParseLayout(args.Layout)
			if err == nil {
				sc.Poster.ApplyLayout(layout)
				sc.Layout = layout
			}
		}
	}

	logger.Debug("scene loaded", "path", path, "layers", sc.Poster.Len(), "layout", sc.Layout)
	return sc, nil
}

type renderOpts struct {
	scene   sceneOpts
	output  string
	width   int
	format  string
	quality int
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{width: compositor.DefaultWidth, quality: 90}

	cmd := &cobra.Command{
		Use:   "render [scene.toml]",
		Short: "Flatten a scene into a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	opts.scene.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: scene name with the format extension)")
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "output width in pixels")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: jpeg (default), png; inferred from --output when unset")
	cmd.Flags().IntVar(&opts.quality, "quality", opts.quality, "JPEG quality")
	return cmd
}

func runRender(ctx context.Context, path string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	sc, err := opts.scene.load(ctx, path)
	if err != nil {
		return err
	}

	format := media.ParseFormat(opts.format)
	if opts.format == "" && opts.output != "" {
		format = media.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.output), "."))
	}
	out, err := compositor.Compose(sc.Poster.Snapshot(), compositor.Options{
		Width:   opts.width,
		Format:  format,
		Quality: opts.quality,
	})
	if err != nil {
		return err
	}

	dest := opts.output
	if dest == "" {
		dest = withExt(path, extFor(out.MimeType))
	}
	if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	prog.done("rendered", "file", dest, "bytes", len(out.Data))
	return nil
}

func newPromptCmd() *cobra.Command {
	var opts sceneOpts
	cmd := &cobra.Command{
		Use:   "prompt [scene.toml]",
		Short: "Print the generation prompt for a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt.Poster(sc.Options))
			return err
		},
	}
	opts.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		opts   sceneOpts
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [scene.toml]",
		Short: "Write the scene as a poster document (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := poster.EncodeDocument(sc.Poster.Export())
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func extFor(mimeType string) string {
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
