package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/powerosm/powerosm/pkg/units"
	"github.com/powerosm/powerosm/pkg/workflow"
)

const keywordsPerReason = 5

func newReportCommand(app *kingpin.Application) (*kingpin.CmdClause, *string, *string) {
	cmd := app.Command("report", "Run the pipeline and print a data-quality / coverage report.")
	countries := cmd.Arg("countries", "Comma-separated ISO alpha-2 codes or country names to report on.").Required().String()
	format := cmd.Flag("format", "Report rendering: table, csv, or markdown.").Default("table").String()

	return cmd, countries, format
}

func runReport(ctx context.Context, wf *workflow.Workflow, countriesFlag, format string) error {
	resolved, err := workflow.ValidateCountries(splitComma(countriesFlag))
	if err != nil {
		return err
	}

	reports := make([]workflow.CoverageReport, 0, len(resolved))

	for _, country := range resolved {
		result, err := wf.RunCountry(ctx, country)
		if err != nil {
			return fmt.Errorf("processing %s: %w", country, err)
		}

		report, err := wf.CoverageReport(ctx, country, len(result.Units))
		if err != nil {
			return fmt.Errorf("computing coverage for %s: %w", country, err)
		}

		reports = append(reports, report)
	}

	renderCoverage(reports, format)
	renderRejectionReasons(wf.Tracker(), format)

	return nil
}

func renderCoverage(reports []workflow.CoverageReport, format string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Coverage")
	t.AppendHeader(table.Row{"Country", "Fetched", "Parsed", "Rejected", "Coverage"})

	for _, r := range reports {
		t.AppendRow(table.Row{r.Country, r.Fetched, r.Parsed, r.Rejected, fmt.Sprintf("%.1f%%", r.CoverageRatio*100)})
	}

	renderTable(t, format)
}

func renderRejectionReasons(tracker *units.Tracker, format string) {
	byReason := tracker.CountByReason()
	if len(byReason) == 0 {
		return
	}

	reasons := make([]units.Reason, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}

	sort.Slice(reasons, func(i, j int) bool { return byReason[reasons[i]] > byReason[reasons[j]] })

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Rejections by reason")
	t.AppendHeader(table.Row{"Reason", "Count", "Top keywords"})

	for _, reason := range reasons {
		keywords := tracker.GetUniqueKeyword(reason)
		if len(keywords) > keywordsPerReason {
			keywords = keywords[:keywordsPerReason]
		}

		t.AppendRow(table.Row{string(reason), byReason[reason], formatKeywords(keywords)})
	}

	renderTable(t, format)
}

func formatKeywords(keywords []units.KeywordCount) string {
	if len(keywords) == 0 {
		return ""
	}

	out := ""

	for i, k := range keywords {
		if i > 0 {
			out += ", "
		}

		out += fmt.Sprintf("%s (%d)", k.Keyword, k.Count)
	}

	return out
}

func renderTable(t table.Writer, format string) {
	switch format {
	case "csv":
		t.RenderCSV()
	case "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
	}
}
