// Package report renders status snapshots for the status command.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/Zerofisher/icmpwatch/expert"
	"github.com/Zerofisher/icmpwatch/pkg/query"
	"github.com/Zerofisher/icmpwatch/stats"
)

// Data holds all data for report generation.
type Data struct {
	// Meta
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`

	// Outcome
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Snapshot *query.Snapshot  `json:"snapshot,omitempty"`
	Columns  []*ColumnSummary `json:"columns,omitempty"`
}

// ColumnSummary is one feature column of the window, for display.
type ColumnSummary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Last   float64 `json:"last"`
}

// Generate takes one snapshot and prepares it for rendering.
func Generate(ctx context.Context, agg *query.Aggregator, source string) (*Data, error) {
	res := agg.Snapshot(ctx)

	data := &Data{
		GeneratedAt: time.Now(),
		Source:      source,
		Kind:        res.Kind.String(),
		Message:     res.Message,
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	if res.Kind != query.KindReady {
		return data, nil
	}

	data.Snapshot = res.Snapshot
	data.GeneratedAt = res.Snapshot.GeneratedAt

	for _, col := range stats.Columns(res.Snapshot.Window).Named() {
		sum, err := stats.Summarize(col.Values)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", col.Name, err)
		}
		data.Columns = append(data.Columns, &ColumnSummary{
			Name:   col.Name,
			Mean:   sum.Mean,
			StdDev: sum.StdDev,
			Min:    sum.Min,
			Max:    sum.Max,
			Last:   sum.Last,
		})
	}
	return data, nil
}

// WriteText writes a plain console report.
func WriteText(w io.Writer, d *Data) error {
	if d.Snapshot == nil {
		fmt.Fprintf(w, "%s\n", d.Message)
		if d.Error != "" {
			fmt.Fprintf(w, "cause: %s\n", d.Error)
		}
		return nil
	}

	s := d.Snapshot
	fmt.Fprintf(w, "[%s] %s\n", s.Severity.Symbol(), s.Status)
	fmt.Fprintf(w, "  rule:       %s\n", s.Rule)
	fmt.Fprintf(w, "  ttl:        %s\n", s.TTLReason)
	fmt.Fprintf(w, "  anomalies:  %s\n", anomalyText(s))
	fmt.Fprintf(w, "  bandwidth:  %s\n", bandwidthText(s))
	fmt.Fprintf(w, "  window:     %d rows\n\n", s.Rows)

	return stats.PrintSummary(w, stats.Columns(s.Window))
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, d *Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteMarkdown writes the report as a Markdown document.
func WriteMarkdown(w io.Writer, d *Data) error {
	return markdownTmpl.Execute(w, d)
}

// Write dispatches on format: text, json or markdown.
func Write(w io.Writer, format string, d *Data) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, d)
	case "json":
		return WriteJSON(w, d)
	case "markdown", "md":
		return WriteMarkdown(w, d)
	default:
		return fmt.Errorf("unknown format %q (use text, json or markdown)", format)
	}
}

func anomalyText(s *query.Snapshot) string {
	if !s.AnomalyEnabled {
		return "model not loaded"
	}
	return fmt.Sprintf("%d of %d rows", s.AnomalyCount, s.Rows)
}

func bandwidthText(s *query.Snapshot) string {
	if s.DownloadMbps == 0 && s.UploadMbps == 0 {
		return "not measured"
	}
	return fmt.Sprintf("%.2f Mbps down / %.2f Mbps up", s.DownloadMbps, s.UploadMbps)
}

var markdownTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"anomalies": anomalyText,
	"bandwidth": bandwidthText,
	"alert": func(s *query.Snapshot) string {
		if s.TTLAlert {
			return "yes"
		}
		return "no"
	},
	"severity": func(s expert.Severity) string { return s.String() },
	"ts":       func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`# ICMP Network Status

Generated {{ts .GeneratedAt}} from ` + "`{{.Source}}`" + `
{{if .Snapshot}}{{with .Snapshot}}
## {{.Status}}

| Field | Value |
|---|---|
| Severity | {{severity .Severity}} |
| Rule | {{.Rule}} |
| TTL alert | {{alert .}} |
| TTL check | {{.TTLReason}} |
| Anomalies | {{anomalies .}} |
| Bandwidth | {{bandwidth .}} |
| Window | {{.Rows}} rows |
{{end}}
## Feature window

| Column | Mean | StdDev | Min | Max | Last |
|---|---:|---:|---:|---:|---:|
{{range .Columns}}| {{.Name}} | {{printf "%.2f" .Mean}} | {{printf "%.2f" .StdDev}} | {{printf "%.2f" .Min}} | {{printf "%.2f" .Max}} | {{printf "%.2f" .Last}} |
{{end}}{{else}}
**{{.Message}}**
{{if .Error}}
Cause: {{.Error}}
{{end}}{{end}}`))
