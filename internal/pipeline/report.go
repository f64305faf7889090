package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RunReport summarizes one pipeline run for logs, the CLI, and the run
// summary event.
type RunReport struct {
	RunID              string         `json:"runId"`
	Date               string         `json:"date"`
	StartedAt          time.Time      `json:"startedAt"`
	Skipped            bool           `json:"skipped"`
	PagesSaved         int            `json:"pagesSaved"`
	QueriesSaved       int            `json:"queriesSaved"`
	AlertCount         int            `json:"alertCount"`
	AlertsBySeverity   map[string]int `json:"alertsBySeverity,omitempty"`
	Sitemaps           int            `json:"sitemaps"`
	Inspected          int            `json:"inspected"`
	IssuesFound        int            `json:"issuesFound"`
	InspectionFailures int            `json:"inspectionFailures"`
	FailedPages        []string       `json:"failedPages,omitempty"`
	InspectionsSkipped bool           `json:"inspectionsSkipped"`
	Duration           string         `json:"duration,omitempty"`
}

// String renders a human-readable summary for the CLI.
func (r RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", r.Date, r.RunID)
	if r.Skipped {
		b.WriteString("  ingest: skipped (already ingested)\n")
	} else {
		fmt.Fprintf(&b, "  ingest: %d pages, %d queries\n", r.PagesSaved, r.QueriesSaved)
	}
	fmt.Fprintf(&b, "  alerts: %d%s\n", r.AlertCount, severityBreakdown(r.AlertsBySeverity))
	fmt.Fprintf(&b, "  sitemaps: %d\n", r.Sitemaps)
	if r.InspectionsSkipped {
		b.WriteString("  inspections: skipped\n")
	} else {
		fmt.Fprintf(&b, "  inspections: %d done, %d issues, %d failed\n",
			r.Inspected, r.IssuesFound, r.InspectionFailures)
		for _, page := range r.FailedPages {
			fmt.Fprintf(&b, "    failed: %s\n", page)
		}
	}
	if r.Duration != "" {
		fmt.Fprintf(&b, "  duration: %s\n", r.Duration)
	}
	return b.String()
}

func severityBreakdown(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
