package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grailbio/base/log"
	"github.com/grailbio/copybara/console"
	"github.com/grailbio/copybara/transform"
)

func newRunCommand() *cobra.Command {
	var manifestPath, checkoutDir string
	var dump bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply a workflow manifest's transformations to a checkout",
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			pipeline, err := m.Build()
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			if dump {
				fmt.Println(describePipeline(pipeline))
				return nil
			}
			sink := console.New(nil)
			outcome, err := pipeline.Run(checkoutDir, sink)
			if err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}
			if outcome.Status == transform.StatusNoop {
				log.Printf("pipeline was a no-op: %s", outcome.Reason)
				return nil
			}
			log.Printf("pipeline applied successfully to %s", checkoutDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the workflow manifest (required)")
	cmd.Flags().StringVar(&checkoutDir, "checkout", "", "path to the checkout directory to transform (required)")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the pipeline's description instead of running it")
	cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagRequired("checkout")
	return cmd
}

func describePipeline(p *transform.Pipeline) string {
	var out string
	for _, t := range p.Transformations {
		out += t.Describe() + "\n"
	}
	return out
}
