package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List reconciliation run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("runs: store.driver is none, no history is kept")
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSNAPSHOT\tNAMES\tMATCHED\tEXCELLENT\tGOOD\tOKAY\tPOOR\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----\t-------\t---------\t----\t----\t----\t-------")

	for _, r := range runs {
		tiers := [4]string{missing, missing, missing, missing}
		var q reconcile.QualityReport
		if len(r.Quality) > 0 && json.Unmarshal(r.Quality, &q) == nil {
			for i, t := range reconcile.Tiers {
				tiers[i] = fmt.Sprintf("%.1f%%", q.Percent(t))
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), shortID(r.SnapshotVersion), r.Names, r.Matched,
			tiers[0], tiers[1], tiers[2], tiers[3],
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}
