package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/hitrate-cli/internal/dashboard"
	"github.com/sells-group/hitrate-cli/internal/ingest"
	"github.com/sells-group/hitrate-cli/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score installed equipment by hit-rate potential",
	Long:  "Loads and reconciles the configured sources, scores every equipment unit and prints the filtered rows, highest score first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "score")
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Service.Reload(ctx)
		if err != nil {
			return err
		}

		if issues, _ := cmd.Flags().GetBool("issues"); issues {
			formatIssues(os.Stdout, st.Report)
			return nil
		}

		f := scoreFilter(cmd)
		rows := st.Rows(f, env.Service.Now())
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			return writeIndented(os.Stdout, rows)
		case "geojson":
			return writeIndented(os.Stdout, dashboard.GeoJSON(rows))
		case "companies":
			formatCompanies(os.Stdout, dashboard.Companies(rows))
		case "table":
			formatRows(os.Stdout, rows)
			fmt.Fprintln(os.Stdout)
			formatSummary(os.Stdout, dashboard.Summarize(rows))
		default:
			return fmt.Errorf("unknown format %q (table, json, geojson, companies)", format)
		}
		return nil
	},
}

func scoreFilter(cmd *cobra.Command) dashboard.Filter {
	var f dashboard.Filter
	f.Country, _ = cmd.Flags().GetString("country")
	f.Region, _ = cmd.Flags().GetString("region")
	f.Type, _ = cmd.Flags().GetString("type")
	f.Company, _ = cmd.Flags().GetString("company")
	f.MinScore, _ = cmd.Flags().GetFloat64("min-score")
	f.MatchedOnly, _ = cmd.Flags().GetBool("matched")
	return f
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRows(out io.Writer, rows []dashboard.Row) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tTYPE\tCOUNTRY\tAGE\tCUSTOMER\tRATING\tSCORE\tTOP DRIVER")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t-------\t---\t--------\t------\t-----\t----------")

	for _, r := range rows {
		age := missing
		if r.Age != nil {
			age = strconv.Itoa(*r.Age)
		}
		customer, rating := missing, missing
		if r.Customer != nil {
			customer = r.Customer.Name
			if r.Customer.Rating != "" {
				rating = string(r.Customer.Rating)
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			r.Equipment.ID, r.Equipment.Company, r.Equipment.DisplayType(),
			nameOrMissing(r.Equipment.Country), age, customer, rating, r.Score, topDriver(r.Drivers))
	}
	_ = w.Flush()
}

// topDriver returns the adjustment with the largest magnitude.
func topDriver(drivers []scoring.Driver) string {
	var best *scoring.Driver
	for i := range drivers {
		d := &drivers[i]
		if best == nil || abs(d.Points) > abs(best.Points) {
			best = d
		}
	}
	if best == nil {
		return missing
	}
	return best.Description
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func formatSummary(out io.Writer, s dashboard.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Equipment:\t%d\n", s.Count)
	_, _ = fmt.Fprintf(w, "With customer:\t%d\n", s.Matched)
	_, _ = fmt.Fprintf(w, "Average score:\t%.2f\n", s.Average)
	_, _ = fmt.Fprintf(w, "High (>= %.0f):\t%d\n", dashboard.HighScore, s.High)
	_, _ = fmt.Fprintf(w, "Medium (%.0f-%.0f):\t%d\n", dashboard.MediumScore, dashboard.HighScore, s.Medium)
	_, _ = fmt.Fprintf(w, "Low (< %.0f):\t%d\n", dashboard.MediumScore, s.Low)
	_ = w.Flush()
}

func formatCompanies(out io.Writer, companies []dashboard.Company) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tCUSTOMER\tRATING\tUNITS\tOLDEST\tNEWEST\tBEST\tAVERAGE")
	_, _ = fmt.Fprintln(w, "-------\t--------\t------\t-----\t------\t------\t----\t-------")
	for _, c := range companies {
		rating := string(c.Rating)
		if rating == "" {
			rating = missing
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%.2f\t%.2f\n",
			c.Company, nameOrMissing(c.Customer), rating, c.Equipment,
			intOrMissing(c.OldestAge), intOrMissing(c.NewestAge), c.BestScore, c.AverageScore)
	}
	_ = w.Flush()
}

func formatIssues(out io.Writer, rep *ingest.Report) {
	if rep == nil || len(rep.Issues) == 0 {
		_, _ = fmt.Fprintln(out, "No ingest issues.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSHEET\tROW\tFIELD\tREASON\tVALUE")
	_, _ = fmt.Fprintln(w, "------\t-----\t---\t-----\t------\t-----")
	for _, is := range rep.Issues {
		row := missing
		if is.Row > 0 {
			row = strconv.Itoa(is.Row)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			is.Source, nameOrMissing(is.Sheet), row, nameOrMissing(string(is.Field)), is.Reason, is.Value)
	}
	_ = w.Flush()
}

func intOrMissing(v *int) string {
	if v == nil {
		return missing
	}
	return strconv.Itoa(*v)
}

func init() {
	f := scoreCmd.Flags()
	f.String("country", "", "only equipment in this country")
	f.String("region", "", "only equipment in this region")
	f.String("type", "", "only equipment of this type or type label")
	f.String("company", "", "only equipment of this company")
	f.Float64("min-score", 0, "drop rows scoring below this value")
	f.Bool("matched", false, "only equipment whose company matched a CRM account")
	f.Int("limit", 0, "max number of rows (0 = all)")
	f.String("format", "table", "output format: table, json, geojson, companies")
	f.Bool("issues", false, "print the ingest issues instead of scores")
	rootCmd.AddCommand(scoreCmd)
}
