package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grailbio/base/log"
	"github.com/grailbio/copybara/merge"
)

func newConsistencyCommand() *cobra.Command {
	var baseline, destination, out string

	cmd := &cobra.Command{
		Use:   "consistency-file",
		Short: "Generate a consistency file recording a destination's state against its baseline",
		RunE: func(_ *cobra.Command, _ []string) error {
			cf, err := merge.Generate(baseline, destination, merge.HashSHA256, os.Environ(), func(string) bool { return true })
			if err != nil {
				return fmt.Errorf("generate consistency file: %w", err)
			}
			if err := os.WriteFile(out, cf.Marshal(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			log.Printf("wrote consistency file with %d entries to %s", len(cf.Entries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseline, "baseline", "", "path to the baseline tree (required)")
	cmd.Flags().StringVar(&destination, "destination", "", "path to the destination tree (required)")
	cmd.Flags().StringVar(&out, "out", "consistency.txt", "path to write the consistency file")
	cmd.MarkFlagRequired("baseline")
	cmd.MarkFlagRequired("destination")
	return cmd
}
