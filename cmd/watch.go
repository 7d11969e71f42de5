package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zerofisher/icmpwatch/anomaly"
	"github.com/Zerofisher/icmpwatch/internal/app"
	"github.com/Zerofisher/icmpwatch/internal/config"
	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/internal/probe"
)

// watch command flags
var (
	watchReadFile string
	watchBPF      string
	watchWrite    string
	watchListen   string
	watchRealtime bool
	watchNoProbe  bool
	watchExit     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [interface]",
	Short: "Monitor ICMP traffic and serve the status API",
	Long: `Capture ICMP packets, append one feature record per packet to the metric log,
probe throughput periodically and serve the classified status over HTTP.

Without an interface the first non-loopback device is used. With -r the
packets of a pcap/pcapng file are replayed instead. Live capture requires
root privileges on most systems.`,
	Example: `  sudo icmpwatch watch en0
  sudo icmpwatch watch eth0 -f "icmp or icmp6" -w icmp.pcapng
  icmpwatch watch -r capture.pcap --realtime --no-probe
  icmpwatch watch -r capture.pcap --exit --listen ""`,
	Args:    cobra.MaximumNArgs(1),
	GroupID: "monitor",
	RunE:    runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchReadFile, "read", "r", "",
		"Replay packets from a pcap/pcapng file")
	watchCmd.Flags().StringVarP(&watchBPF, "bpf", "f", "",
		"BPF filter expression (default \"icmp\")")
	watchCmd.Flags().StringVarP(&watchWrite, "write", "w", "",
		"Record captured ICMP packets to a pcapng file")
	watchCmd.Flags().StringVarP(&watchListen, "listen", "l", "",
		"API listen address, empty string disables the API (default \":5000\")")
	watchCmd.Flags().BoolVar(&watchRealtime, "realtime", false,
		"Replay files at their original packet timing")
	watchCmd.Flags().BoolVar(&watchNoProbe, "no-probe", false,
		"Disable the periodic throughput probe")
	watchCmd.Flags().BoolVar(&watchExit, "exit", false,
		"Exit when a replayed file is exhausted")
}

// applyWatchFlags overrides config values with the flags that were set.
func applyWatchFlags(cmd *cobra.Command, args []string, c *config.Config) {
	if len(args) == 1 {
		c.Capture.Interface = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("read") {
		c.Capture.PcapFile = watchReadFile
	}
	if flags.Changed("bpf") {
		c.Capture.Filter = watchBPF
	}
	if flags.Changed("write") {
		c.Capture.WritePcap = watchWrite
	}
	if flags.Changed("realtime") {
		c.Capture.Realtime = watchRealtime
	}
	if flags.Changed("listen") {
		c.API.Listen = watchListen
	}
	if watchNoProbe {
		c.Probe.Disabled = true
	}
}

// runWatch runs the monitor until interrupted
func runWatch(cmd *cobra.Command, args []string) error {
	applyWatchFlags(cmd, args, &cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	log := logging.Component("watch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scorer, err := anomaly.Open(cfg.Model.Path)
	if err != nil {
		return err
	}
	if f := scorer.Forest(); f != nil {
		log.Info().
			Time("trained_at", f.TrainedAt).
			Int("rows", f.TrainingRows).
			Float64("threshold", f.Threshold).
			Msg("anomaly model loaded")
	}

	metricLog, err := app.OpenLog(ctx, cfg.Log, false)
	if err != nil {
		return fmt.Errorf("open metric log: %w", err)
	}
	defer metricLog.Close()

	result, err := app.SetupCapturer(cfg.Capture)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Close(); err != nil {
			log.Warn().Err(err).Msg("close recorder")
		}
	}()

	opts := app.MonitorOptions{
		Source:        result.Capturer,
		Log:           metricLog,
		Scorer:        scorer,
		ProbeInterval: time.Duration(cfg.Probe.IntervalSec) * time.Second,
		Listen:        cfg.API.Listen,
		ExitOnEOF:     watchExit && !result.Capturer.IsLive(),
	}
	if !cfg.Probe.Disabled {
		opts.Prober = probe.NewSpeedtestProber()
	}

	monitor, err := app.NewMonitor(opts)
	if err != nil {
		return err
	}

	kind := "interface"
	if !result.Capturer.IsLive() {
		kind = "file"
	}
	log.Info().
		Str(kind, result.Source).
		Str("filter", cfg.Capture.Filter).
		Str("log", app.LogLocation(cfg.Log)).
		Bool("model", scorer.Enabled()).
		Bool("probe", opts.Prober != nil).
		Str("listen", cfg.API.Listen).
		Msg("starting monitor")

	if err := monitor.Run(ctx); err != nil {
		return err
	}

	if result.Recorder != nil {
		log.Info().
			Int("packets", result.Recorder.Count()).
			Str("file", result.Recorder.Filename()).
			Msg("recording saved")
	}
	return nil
}
