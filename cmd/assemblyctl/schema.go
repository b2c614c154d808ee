package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func schemaCmd() *cobra.Command {
	var (
		manifests string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "schema <part-code>",
		Short: "Print the effective props schema of a part",
		Long: `Print the props schema a part exposes, with the common fields
(visible, style_class) appended after the part's own fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			bundle, registry, err := loadBundle(cmd.Context(), manifests)
			if err != nil {
				return err
			}

			declared := false
			for _, p := range bundle.Descriptors() {
				if p.Code == code {
					declared = true
					break
				}
			}
			if !declared {
				return fmt.Errorf("part %q is not declared in %s", code, manifests)
			}

			s := registry.Get(code)
			out := cmd.OutOrStdout()
			switch output {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(s); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			default:
				return fmt.Errorf("unknown output format %q: use yaml or json", output)
			}
		},
	}

	cmd.Flags().StringVar(&manifests, "manifests", "./parts", "Manifest file or directory")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml or json)")
	return cmd
}
