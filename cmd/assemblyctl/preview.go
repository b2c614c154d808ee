package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/assembly-factory/pkg/catalog"
	"github.com/ekaya-inc/assembly-factory/pkg/editor"
	"github.com/ekaya-inc/assembly-factory/pkg/render"
	"github.com/ekaya-inc/assembly-factory/pkg/staging"
)

// assemblyDocument is the file format accepted by preview.
type assemblyDocument struct {
	Name       string `yaml:"name"`
	TargetRole string `yaml:"target_role"`
	Parts      []struct {
		PartCode string         `yaml:"part_code"`
		Config   map[string]any `yaml:"config"`
	} `yaml:"parts"`
}

func previewCmd() *cobra.Command {
	var (
		manifests string
		width     int
	)

	cmd := &cobra.Command{
		Use:   "preview <assembly.yaml>",
		Short: "Render an assembly document in the terminal",
		Long: `Compose the parts listed in an assembly document in order, apply
each part's config, and draw the result with the built-in renderers.
Parts whose config cannot be applied fail the preview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var doc assemblyDocument
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			bundle, registry, err := loadBundle(ctx, manifests)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			parts := catalog.New(bundle, logger)
			configEditor := editor.New(registry, nil)
			composer := staging.NewComposer(configEditor)

			for i, p := range doc.Parts {
				part, err := parts.Find(ctx, p.PartCode)
				if err != nil {
					return fmt.Errorf("parts[%d]: %w", i, err)
				}
				inst, added := composer.Add(part)
				if !added {
					return fmt.Errorf("parts[%d]: part %q appears more than once", i, p.PartCode)
				}
				if len(p.Config) > 0 {
					if _, err := composer.UpdateConfig(ctx, inst.InstanceID, p.Config); err != nil {
						return fmt.Errorf("parts[%d] (%s): %w", i, p.PartCode, err)
					}
				}
			}

			resolver := render.NewResolver(parts, configEditor, logger, nil)
			blocks := resolver.RenderComposition(ctx, composer.Instances())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s for %s (%s)\n", doc.Name, doc.TargetRole, countOf(len(blocks), "part"))
			fmt.Fprintln(out, render.Terminal(blocks, width))
			return nil
		},
	}

	cmd.Flags().StringVar(&manifests, "manifests", "./parts", "Manifest file or directory")
	cmd.Flags().IntVar(&width, "width", 60, "Preview box width")
	return cmd
}
