package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fact layer row counts and the latest run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		counts, err := st.FactCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "fact counts")
		}

		streams := make([]string, 0, len(counts))
		for s := range counts {
			streams = append(streams, s)
		}
		sort.Strings(streams)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "STREAM\tROWS")
		for _, s := range streams {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
		}
		_ = w.Flush()

		runs, err := st.ListRuns(ctx, 1)
		if err != nil {
			return eris.Wrap(err, "latest run")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stdout, "\nNo runs yet.")
			return nil
		}

		r := runs[0]
		fmt.Fprintf(os.Stdout, "\nLatest run: %s (%s, started %s)\n",
			r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
