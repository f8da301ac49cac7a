package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
	"github.com/ntewolde/local-buyer-intelligence/pkg/report"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate, list and export intelligence reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new intelligence report",
	Long: `Requests a report for a geography, a comma-separated ZIP set and a
service category. Generation is synchronous: the command blocks until the
server responds. Note that a report generated while an import for the same
geography is still running may be based on partial data; check
'lbi import runs' first when freshness matters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")
		zips, _ := cmd.Flags().GetString("zips")
		category, _ := cmd.Flags().GetString("category")
		name, _ := cmd.Flags().GetString("name")

		client, err := authedClient()
		if err != nil {
			return err
		}
		fmt.Println("Generating report...")
		rep, err := report.NewOrchestrator(client).Generate(cmd.Context(), report.GenerateParams{
			GeographyID:     geographyID,
			ZipCodes:        zips,
			ServiceCategory: intel.ParseServiceCategory(category),
			ReportName:      name,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Report %d generated (%s)\n", rep.ID, rep.ServiceCategory)
		if rep.AverageDemandScore != nil {
			fmt.Printf("Average demand score: %.1f\n", *rep.AverageDemandScore)
		}
		if rep.TotalHouseholds != nil && rep.TargetHouseholds != nil {
			fmt.Printf("Target households: %d of %d\n", *rep.TargetHouseholds, *rep.TotalHouseholds)
		}

		// Inline export: the freshly generated payload is already in hand,
		// no list re-fetch needed.
		if outDir, _ := cmd.Flags().GetString("export-json"); outDir != "" {
			exp, err := report.ExportJSON(rep)
			if err != nil {
				return err
			}
			return writeExport(exp, outDir)
		}
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated reports, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := authedClient()
		if err != nil {
			return err
		}
		reports, err := report.NewOrchestrator(client).List(cmd.Context(), report.ListFilter{
			GeographyID:     geographyID,
			ServiceCategory: intel.ServiceCategory(category),
			Limit:           limit,
		})
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No reports yet. Generate one with 'lbi report generate'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tGENERATED\tCATEGORY\tNAME\tAVG SCORE\t")
		for _, r := range reports {
			score := "-"
			if r.AverageDemandScore != nil {
				score = fmt.Sprintf("%.1f", *r.AverageDemandScore)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", r.ID, r.GeneratedAt.Format("2006-01-02 15:04"), r.ServiceCategory, r.ReportName, score)
		}
		return w.Flush()
	},
}

var reportExportCmd = &cobra.Command{
	Use:   "export <report-id>",
	Short: "Export a report to a local file (json or csv)",
	Long: `Exports a previously generated report. json is the full report,
pretty-printed; csv is the per-ZIP demand scores. A report without ZIP
demand scores exports nothing in csv format, which is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad report id %q", args[0])
		}
		format, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")

		client, err := authedClient()
		if err != nil {
			return err
		}
		reports, err := report.NewOrchestrator(client).List(cmd.Context(), report.ListFilter{})
		if err != nil {
			return err
		}
		var target *intel.IntelligenceReport
		for i := range reports {
			if reports[i].ID == reportID {
				target = &reports[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("report %d not found", reportID)
		}

		switch format {
		case "json":
			exp, err := report.ExportJSON(*target)
			if err != nil {
				return err
			}
			return writeExport(exp, outDir)
		case "csv":
			exp, ok := report.ExportCSV(*target)
			if !ok {
				fmt.Println("Report has no ZIP demand scores, nothing to export.")
				return nil
			}
			return writeExport(exp, outDir)
		default:
			return fmt.Errorf("unknown format %q (want json or csv)", format)
		}
	},
}

// writeExport delivers export bytes to the filesystem; the export layer only
// produces content and a suggested filename.
func writeExport(exp report.Export, outDir string) error {
	path := filepath.Join(outDir, exp.Filename)
	if err := os.WriteFile(path, exp.Content, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportExportCmd)

	reportGenerateCmd.Flags().IntP("geography", "g", 0, "Target geography ID")
	reportGenerateCmd.Flags().StringP("zips", "z", "", "Comma-separated ZIP codes")
	reportGenerateCmd.Flags().StringP("category", "c", "general", "Service category (lawn_care, security, it_services, fireworks, home_improvement, general)")
	reportGenerateCmd.Flags().StringP("name", "n", "", "Report name (optional)")
	reportGenerateCmd.Flags().String("export-json", "", "Also export the fresh report as JSON into this directory")

	reportListCmd.Flags().IntP("geography", "g", 0, "Filter by geography ID")
	reportListCmd.Flags().StringP("category", "c", "", "Filter by service category")
	reportListCmd.Flags().Int("limit", 0, "Maximum number of reports to fetch")

	reportExportCmd.Flags().StringP("format", "f", "json", "Export format: json or csv")
	reportExportCmd.Flags().StringP("out", "o", ".", "Output directory")
}
