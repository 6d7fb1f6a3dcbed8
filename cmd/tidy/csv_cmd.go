package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/logging"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

func newCSVCmd(a *app) *cobra.Command {
	var input, output, inDelim, outDelim, encoding, rules string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Normalize a delimited CSV export",
		Long: `Parses the input, skips malformed rows, canonicalizes column names,
replaces missing-value tokens with nulls, converts typed columns, drops
empty rows and writes the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			csvCfg := &a.cfg.CSV
			flags := cmd.Flags()
			if flags.Changed("input") {
				csvCfg.Input = input
			}
			if flags.Changed("output") {
				csvCfg.Output = output
			}
			if flags.Changed("in-delim") {
				csvCfg.InputDelimiter = inDelim
			}
			if flags.Changed("out-delim") {
				csvCfg.OutputDelimiter = outDelim
			}
			if flags.Changed("encoding") {
				csvCfg.Encoding = encoding
			}
			if flags.Changed("rules") {
				csvCfg.RulesFile = rules
			}

			opts, err := a.cfg.NormalizerOptions()
			if err != nil {
				return err
			}
			n, err := tabular.NewNormalizer(opts)
			if err != nil {
				return err
			}

			runID := logging.NewRunID()
			ctx := logging.WithRunID(cmd.Context(), runID)
			started := time.Now()

			stats, err := n.NormalizeFile(ctx, effects.OS{}, csvCfg.Input, csvCfg.Output)
			if err != nil {
				return err
			}

			run := history.NormalizeRun(csvCfg.Input, csvCfg.Output, started, stats)
			run.ID = runID
			a.record(ctx, run)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows read:      %d\n", stats.RowsRead)
			fmt.Fprintf(out, "Rows malformed: %d\n", stats.RowsMalformed)
			fmt.Fprintf(out, "Rows dropped:   %d\n", stats.RowsDropped)
			fmt.Fprintf(out, "Rows written:   %d\n", stats.RowsWritten)
			fmt.Fprintf(out, "Output:         %s\n", csvCfg.Output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&input, "input", "", "input CSV file (CSV_INPUT)")
	f.StringVar(&output, "output", "", "output CSV file (CSV_OUTPUT)")
	f.StringVar(&inDelim, "in-delim", "", "input delimiter, a single character or tab (CSV_INPUT_DELIMITER)")
	f.StringVar(&outDelim, "out-delim", "", "output delimiter (CSV_OUTPUT_DELIMITER)")
	f.StringVar(&encoding, "encoding", "", "input encoding label (CSV_ENCODING)")
	f.StringVar(&rules, "rules", "", "YAML or TOML rule table (CSV_RULES_FILE)")
	return cmd
}
