package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/hybridrag/internal/ingest"
)

// RenderReport renders an ingestion report for the terminal.
func RenderReport(r ingest.Report) string {
	s := DefaultStyles()
	var b strings.Builder

	b.WriteString(s.Title.Render("Ingestion Summary"))
	b.WriteString("\n\n")

	added, skipped, failed := r.Counts()
	b.WriteString(statsRow("Records", r.Total, lipgloss.NewStyle()))
	b.WriteString(statsRow("Added", added, lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)).Bold(true)))
	b.WriteString(statsRow("Skipped", skipped, lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray))))
	b.WriteString(statsRow("Failed", failed, lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)).Bold(true)))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("  Vector store: Loaded %d, Failed %d\n", r.VectorLoaded, r.VectorFailures))
	b.WriteString(fmt.Sprintf("  Graph store:  Loaded %d, Failed %d\n", r.GraphLoaded, r.GraphFailures))

	if len(r.Problems) > 0 {
		b.WriteString("\n")
		b.WriteString(s.Subtitle.Render("Records Requiring Attention:"))
		b.WriteString("\n\n")
		for _, p := range r.Problems {
			b.WriteString("  ")
			b.WriteString(s.StatusBadge(string(p.Status)).Render(strings.ToUpper(string(p.Status))))
			b.WriteString(" ")
			b.WriteString(p.RecordID)
			b.WriteString("\n")
			for _, e := range p.Errors {
				b.WriteString(s.Context.Render("      " + e))
				b.WriteString("\n")
			}
		}
	}
	if r.Interrupted {
		b.WriteString("\n")
		b.WriteString(s.Notice.Render("Interrupted before the batch finished."))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderLedger renders per-status counts from the ingestion ledger.
func RenderLedger(summary map[string]int) string {
	s := DefaultStyles()
	var b strings.Builder
	b.WriteString(s.Title.Render("Ingestion Ledger"))
	b.WriteString("\n\n")
	if len(summary) == 0 {
		b.WriteString(s.Help.Render("  No records ingested yet."))
		b.WriteString("\n")
		return b.String()
	}

	statuses := make([]string, 0, len(summary))
	for st := range summary {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		b.WriteString(fmt.Sprintf("  %s %d\n", s.StatusBadge(st).Render(fmt.Sprintf("%-8s", st)), summary[st]))
	}
	return b.String()
}

func statsRow(label string, n int, style lipgloss.Style) string {
	return fmt.Sprintf("  %-12s %s\n", label+":", style.Render(fmt.Sprintf("%d", n)))
}
