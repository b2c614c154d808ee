// Command assemblyctl is the operator tool for part manifests: it validates
// them, prints the merged props schema of a part and previews an assembly
// document in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/jinzhu/inflection"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assemblyctl",
		Short: "Operator tool for the assembly factory",
		Long: `assemblyctl works with part manifests offline.

Validate manifest files before a rollout, inspect the props a part
exposes, and preview how an assembly document renders.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		manifestsCmd(),
		schemaCmd(),
		previewCmd(),
	)
	return rootCmd
}

// countOf formats n with the noun pluralized when needed.
func countOf(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}
