package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/icmpwatch/internal/app"
	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/pkg/iforest"
)

// train command flags
var (
	trainOutput        string
	trainTrees         int
	trainSampleSize    int
	trainContamination float64
	trainSeed          int64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the anomaly model from the metric log",
	Long: `Fit an isolation forest on every record in the metric log and write the
model artifact. A running monitor picks the new model up on restart.`,
	Example: `  icmpwatch train
  icmpwatch train --trees 200 --contamination 0.02
  icmpwatch train -c icmpwatch.yaml -o model/icmp_model.json`,
	Args:    cobra.NoArgs,
	GroupID: "model",
	RunE:    runTrain,
}

func init() {
	defaults := iforest.DefaultOptions()
	trainCmd.Flags().StringVarP(&trainOutput, "output", "o", "",
		"Model artifact path (default: model.path from config)")
	trainCmd.Flags().IntVar(&trainTrees, "trees", defaults.Trees,
		"Number of trees")
	trainCmd.Flags().IntVar(&trainSampleSize, "sample-size", defaults.SampleSize,
		"Rows sampled per tree")
	trainCmd.Flags().Float64Var(&trainContamination, "contamination", defaults.Contamination,
		"Expected share of anomalies in the training data")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", defaults.Seed,
		"Random seed")
}

// runTrain fits and saves the model
func runTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logging.Component("train")

	path := cfg.Model.Path
	if trainOutput != "" {
		path = trainOutput
	}

	metricLog, err := app.OpenLog(ctx, cfg.Log, true)
	if err != nil {
		return fmt.Errorf("open metric log: %w", err)
	}
	defer metricLog.Close()

	forest, err := app.TrainModel(ctx, metricLog, path, iforest.Options{
		Trees:         trainTrees,
		SampleSize:    trainSampleSize,
		Contamination: trainContamination,
		Seed:          trainSeed,
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("rows", forest.TrainingRows).
		Int("trees", len(forest.Trees)).
		Float64("threshold", forest.Threshold).
		Str("path", path).
		Msg("model saved")
	return nil
}
