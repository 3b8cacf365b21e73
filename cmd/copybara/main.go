// Copybara migrates source trees between a checkout fetched from an
// origin and a destination, applying a manifest of glob-scoped,
// reversible transformations in between. It is intended to mirror
// projects residing in a private monorepo to an external
// project-specific destination, the same role grit played for
// straight commit-copying, generalized to arbitrary tree rewrites.
//
// Usage:
//
//	copybara run --manifest workflow.yaml --checkout /path/to/checkout
//	copybara run --dump --manifest workflow.yaml --checkout /path/to/checkout
//	copybara reverse --manifest workflow.yaml --checkout /path/to/checkout
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grailbio/base/log"
)

func main() {
	log.SetPrefix("")
	log.AddFlags()

	rootCmd := &cobra.Command{
		Use:           "copybara",
		Short:         "Copybara moves and rewrites source trees between an origin and a destination",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newReverseCommand())
	rootCmd.AddCommand(newConsistencyCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "copybara: %v\n", err)
		os.Exit(1)
	}
}
