package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grailbio/base/log"
	"github.com/grailbio/copybara/console"
)

func newReverseCommand() *cobra.Command {
	var manifestPath, checkoutDir string

	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Run a workflow manifest's transformations in reverse against a checkout",
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			pipeline, err := m.Build()
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			if !pipeline.CanReverse() {
				return fmt.Errorf("manifest %s is not reversible", manifestPath)
			}
			reversed, err := pipeline.Reverse()
			if err != nil {
				return fmt.Errorf("reverse pipeline: %w", err)
			}
			sink := console.New(nil)
			if _, err := reversed.Run(checkoutDir, sink); err != nil {
				return fmt.Errorf("run reversed pipeline: %w", err)
			}
			log.Printf("reverse applied successfully to %s", checkoutDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the workflow manifest (required)")
	cmd.Flags().StringVar(&checkoutDir, "checkout", "", "path to the checkout directory to transform (required)")
	cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagRequired("checkout")
	return cmd
}
