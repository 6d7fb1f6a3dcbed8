package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return apperr.ErrHistoryDisabled
			}
			defer store.Close()

			runs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKIND\tSOURCE\tTARGET\tIN\tOUT\tMALFORMED\tDROPPED\tFILES\tENTRIES\tWARNINGS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					r.StartedAt.Format(time.DateTime), r.Kind, r.Source, r.Target,
					r.RowsIn, r.RowsOut, r.RowsMalformed, r.RowsDropped, r.Files, r.Entries, len(r.Warnings))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "maximum number of runs to show")
	return cmd
}
