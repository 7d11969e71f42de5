package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/icmpwatch/anomaly"
	"github.com/Zerofisher/icmpwatch/internal/app"
	"github.com/Zerofisher/icmpwatch/internal/report"
	"github.com/Zerofisher/icmpwatch/pkg/query"
)

// status command flags
var (
	statusFormat string
	statusOutput string
	statusWindow int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot status snapshot from the metric log",
	Long: `Aggregate the most recent feature records, score them with the anomaly
model and print the classified network status. Throughput is reported as
unknown because no probe runs in this command.`,
	Example: `  icmpwatch status
  icmpwatch status --format json
  icmpwatch status --format markdown -o status.md`,
	Args:    cobra.NoArgs,
	GroupID: "monitor",
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text",
		"Output format: text, json, markdown")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "",
		"Output file (default: stdout)")
	statusCmd.Flags().IntVarP(&statusWindow, "window", "n", query.DefaultWindow,
		"Number of most recent records to aggregate")
}

// runStatus prints one snapshot
func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	scorer, err := anomaly.Open(cfg.Model.Path)
	if err != nil {
		return err
	}

	metricLog, err := app.OpenLog(ctx, cfg.Log, true)
	if err != nil {
		return fmt.Errorf("open metric log: %w", err)
	}
	defer metricLog.Close()

	agg := query.NewAggregator(metricLog, scorer, nil, query.WithWindow(statusWindow))
	data, err := report.Generate(ctx, agg, app.LogLocation(cfg.Log))
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if statusOutput != "" {
		f, err := os.Create(statusOutput)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return report.Write(w, statusFormat, data)
}
