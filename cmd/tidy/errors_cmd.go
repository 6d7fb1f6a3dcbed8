package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tidy/internal/effects"
	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/logging"
	"github.com/JonMunkholm/tidy/internal/logscan"
)

func newErrorsCmd(a *app) *cobra.Command {
	var (
		input, output, archive string
		marker, pattern        string
		onUnreadable           string
		onCollision            string
	)

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Extract error lines from a log directory",
		Long: `Reads every matching file of the input directory, writes the lines that
contain the marker to output/errors_<YYYYMMDD-HHMMSS>.log as
"[file] line", and moves the files it read into the archive directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.cfg.ScanOptions()
			flags := cmd.Flags()
			if flags.Changed("input") {
				opts.InputDir = input
			}
			if flags.Changed("output") {
				opts.OutputDir = output
			}
			if flags.Changed("archive") {
				opts.ArchiveDir = archive
			}
			if flags.Changed("marker") {
				opts.Marker = marker
			}
			if flags.Changed("pattern") {
				opts.Pattern = pattern
			}
			if flags.Changed("on-unreadable") {
				opts.OnUnreadable = logscan.UnreadablePolicy(onUnreadable)
			}
			if flags.Changed("on-collision") {
				opts.OnCollision = effects.CollisionPolicy(onCollision)
			}

			runID := logging.NewRunID()
			ctx := logging.WithRunID(cmd.Context(), runID)
			started := time.Now()

			res, err := logscan.Run(ctx, effects.OS{}, opts, started)
			if err != nil {
				return err
			}

			run := history.ScanRun(opts.InputDir, started, res)
			run.ID = runID
			a.record(ctx, run)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d file(s), extracted %d error line(s)\n", res.Files, res.Entries)
			fmt.Fprintf(out, "Report:   %s\n", res.ReportPath)
			fmt.Fprintf(out, "Archived: %s\n", res.ArchiveDir)
			for _, w := range res.Skipped {
				fmt.Fprintf(out, "Skipped:  %s (%v)\n", w.File, w.Err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&input, "input", "", "log directory (SCAN_INPUT_DIR)")
	f.StringVar(&output, "output", "", "report directory (SCAN_OUTPUT_DIR)")
	f.StringVar(&archive, "archive", "", "archive directory (SCAN_ARCHIVE_DIR)")
	f.StringVar(&marker, "marker", "", "case-sensitive error marker (SCAN_MARKER)")
	f.StringVar(&pattern, "pattern", "", "file name glob (SCAN_PATTERN)")
	f.StringVar(&onUnreadable, "on-unreadable", "", "fail or skip (SCAN_ON_UNREADABLE)")
	f.StringVar(&onCollision, "on-collision", "", "rename, overwrite or fail (SCAN_ON_COLLISION)")
	return cmd
}
