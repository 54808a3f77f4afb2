package tui

import (
	"fmt"
	"strings"

	"github.com/mohaanymo/initfix/internal/engine"
)

// RenderSummary formats the results of a run for printing after the TUI
// exits, or in place of it.
func RenderSummary(results []engine.Result) string {
	if len(results) == 0 {
		return dimStyle.Render("No init segments processed") + "\n"
	}

	var b strings.Builder
	for _, r := range results {
		b.WriteString(trackBadge(r.Track))
		b.WriteString(" ")
		b.WriteString(normalStyle.Render(truncate(r.Track.DisplayName(), 32)))

		if r.OutputPath == "" && r.Report != nil {
			b.WriteString("\n")
			for _, line := range strings.Split(strings.TrimRight(r.Report.String(), "\n"), "\n") {
				b.WriteString("  " + dimStyle.Render(line) + "\n")
			}
			continue
		}

		applied := "copied"
		if len(r.Applied) > 0 {
			applied = strings.Join(r.Applied, "+")
		}
		b.WriteString(" " + successStyle.Render("✓") + " ")
		b.WriteString(valueStyle.Render(applied))
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %s → %s", formatBytes(int64(r.InputSize)), formatBytes(int64(r.OutputSize)))))
		b.WriteString(labelStyle.Render("  " + r.OutputPath))
		b.WriteString("\n")
	}
	return b.String()
}
