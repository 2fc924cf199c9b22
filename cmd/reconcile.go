package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/hitrate-cli/internal/reconcile"
)

// missing marks an unknown or unmatched value in tables.
const missing = "—"

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Map inventory company names onto CRM accounts",
	Long:  "Loads the configured sources, matches every distinct inventory company name against the CRM account names and prints the mapping with its tier statistics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "reconcile")
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Service.Reload(ctx)
		if err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		tier, _ := cmd.Flags().GetString("tier")
		matches := filterMatches(st.Result.Matches, status, tier)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"run_id":   st.RunID,
				"version":  st.Snapshot.Version,
				"matches":  matches,
				"quality":  st.Quality,
				"warnings": len(st.Report.Issues),
			})
		}

		formatMappings(os.Stdout, matches)
		fmt.Fprintln(os.Stdout)
		formatQuality(os.Stdout, st.Quality)
		if n := len(st.Report.Issues); n > 0 {
			fmt.Fprintf(os.Stderr, "%d ingest issues (see `hitrate score --issues`)\n", n)
		}
		return nil
	},
}

func filterMatches(matches []reconcile.Match, status, tier string) []reconcile.Match {
	out := make([]reconcile.Match, 0, len(matches))
	for _, m := range matches {
		if status != "" && !strings.EqualFold(string(m.Status), status) {
			continue
		}
		if tier != "" && !strings.EqualFold(string(m.Tier), tier) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func formatMappings(out io.Writer, matches []reconcile.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INVENTORY NAME\tCRM NAME\tSCORE\tTIER\tSTATUS\tADJUDICATION")
	_, _ = fmt.Fprintln(w, "--------------\t--------\t-----\t----\t------\t------------")

	for _, m := range matches {
		crm := m.SourceB
		if crm == "" {
			crm = missing
			if m.Candidate != "" {
				crm = fmt.Sprintf("%s (%s)", missing, m.Candidate)
			}
		}
		tier := string(m.Tier)
		if tier == "" {
			tier = missing
		}
		status := string(m.Status)
		if m.Reason != "" {
			status += ": " + m.Reason
		}
		adj := string(m.Adjudication)
		if adj == string(reconcile.OutcomeNotEscalated) || adj == "" {
			adj = missing
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\t%s\n",
			nameOrMissing(m.SourceA), crm, m.Score, tier, status, adj)
	}
	_ = w.Flush()
}

func formatQuality(out io.Writer, q reconcile.QualityReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Names:\t%d\n", q.Total)
	_, _ = fmt.Fprintf(w, "Compared:\t%d\n", q.Attempted)
	_, _ = fmt.Fprintf(w, "Not compared:\t%d\n", q.NotAttempted)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", q.Matched)
	if q.Rejected > 0 {
		_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", q.Rejected)
	}
	for _, t := range q.Tiers {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\t%.1f%%\n", t.Tier, t.Count, t.Percent)
	}
	for _, o := range []reconcile.Outcome{reconcile.OutcomeConfirmed, reconcile.OutcomeRejected, reconcile.OutcomeUnavailable} {
		if n := q.Adjudication[o]; n > 0 {
			_, _ = fmt.Fprintf(w, "Adjudication %s:\t%d\n", o, n)
		}
	}
	_ = w.Flush()
}

func nameOrMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}

func init() {
	reconcileCmd.Flags().Bool("json", false, "print the mapping and statistics as JSON")
	reconcileCmd.Flags().String("status", "", "only show names with this status (matched, unmatched, rejected)")
	reconcileCmd.Flags().String("tier", "", "only show names in this tier (Excellent, Good, Okay, Poor)")
	rootCmd.AddCommand(reconcileCmd)
}
