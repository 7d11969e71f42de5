// Package cmd provides the CLI commands for icmpwatch using Cobra.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/icmpwatch/internal/config"
	"github.com/Zerofisher/icmpwatch/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// cfg is loaded once before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "icmpwatch",
	Short: "ICMP traffic monitor with anomaly detection",
	Long: `icmpwatch watches ICMP traffic and classifies network health:

  - Live capture or pcap/pcapng replay of ICMP packets
  - Rolling features (inter-arrival, rate, TTL variance) in an append-only log
  - Isolation forest anomaly scoring
  - Rule-based status with TTL spoofing check and throughput probing
  - JSON status endpoint and Prometheus metrics

Examples:
  sudo icmpwatch watch en0                         # Monitor en0, API on :5000
  icmpwatch watch -r capture.pcap --realtime       # Replay a capture
  icmpwatch status --format markdown               # One-shot status report
  icmpwatch train                                  # Fit the anomaly model
  icmpwatch list interfaces                        # List network interfaces`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (console, json)")

	// Define command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: "monitor", Title: "Monitoring Commands:"},
		&cobra.Group{ID: "model", Title: "Model Commands:"},
		&cobra.Group{ID: "info", Title: "Information Commands:"},
	)

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(listCmd)
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}
	if err := config.Validate(loaded); err != nil {
		return err
	}
	cfg = loaded

	return logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}
