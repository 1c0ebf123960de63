package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/metrics"
)

type statsFlags struct {
	input string
}

func newStatsCmd() *cobra.Command {
	flags := &statsFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a metrics CSV written with --metrics-csv",
		Example: `  cipwire stats --input run_metrics.csv
  cipwire stats run_metrics.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.input == "" && len(args) > 0 {
				flags.input = args[0]
			}
			if flags.input == "" {
				return missingFlagError(cmd, "--input")
			}
			records, err := metrics.ReadMetricsCSV(flags.input)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("%s contains no metrics", flags.input)
			}
			fmt.Fprint(cmd.OutOrStdout(), metrics.FormatSummary(metrics.Summarize(records)))
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.input, "input", "", "Metrics CSV file (required)")
	return cmd
}
