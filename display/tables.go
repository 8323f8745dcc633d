package display

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/strata/ai/discovery"
	"github.com/teranos/strata/ai/tracker"
	"github.com/teranos/strata/finalize"
)

// ModelsTable renders discovery results
func ModelsTable(w io.Writer, results []discovery.ModelResult) error {
	data := pterm.TableData{{"model_id", "discovery_method", "status", "details"}}
	for _, r := range results {
		data = append(data, []string{r.ModelID, r.Method, statusColor(r.Status), r.Details})
	}
	return renderTable(w, "Discovered Models", data)
}

func statusColor(status string) string {
	switch status {
	case discovery.StatusAvailable:
		return pterm.Green(status)
	case discovery.StatusUnavailable:
		return pterm.Yellow(status)
	default:
		return pterm.Red(status)
	}
}

// UsageTables renders usage totals and the per-model breakdown
func UsageTables(w io.Writer, stats *tracker.UsageStats, breakdown []tracker.ModelBreakdown) error {
	summary := pterm.TableData{
		{"requests", "successful", "success_rate", "tokens", "models"},
		{
			fmt.Sprint(stats.TotalRequests),
			fmt.Sprint(stats.SuccessfulRequests),
			fmt.Sprintf("%.1f%%", stats.SuccessRate*100),
			fmt.Sprint(stats.TotalTokens),
			fmt.Sprint(stats.UniqueModels),
		},
	}
	if err := renderTable(w, "Usage", summary); err != nil {
		return err
	}
	if len(breakdown) == 0 {
		return nil
	}

	data := pterm.TableData{{"model", "endpoint", "requests", "failed", "tokens", "avg_ms"}}
	for _, b := range breakdown {
		avg := "-"
		if b.AvgResponseTimeMs != nil {
			avg = fmt.Sprintf("%.0f", *b.AvgResponseTimeMs)
		}
		data = append(data, []string{
			b.ModelName, b.Endpoint,
			fmt.Sprint(b.RequestCount), fmt.Sprint(b.FailedCount),
			fmt.Sprint(b.TotalTokens), avg,
		})
	}
	return renderTable(w, "By model", data)
}

func renderTable(w io.Writer, title string, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, pterm.Bold.Sprint(title))
	fmt.Fprintln(w, out)
	return nil
}

// SectionPanels renders one panel per answer section in display order
func SectionPanels(w io.Writer, sections finalize.Sections) {
	for _, s := range finalize.SectionTitles {
		MarkdownPanel(w, s.Title, sections[s.Key], nil)
	}
}
