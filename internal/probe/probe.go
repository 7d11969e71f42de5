// Package probe measures link throughput periodically and publishes the
// latest result for the classifier.
package probe

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/showwin/speedtest-go/speedtest"

	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/internal/metrics"
	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// DefaultInterval is the time between probes.
const DefaultInterval = 300 * time.Second

// probeTimeout bounds a single measurement.
const probeTimeout = 2 * time.Minute

// Prober takes one throughput measurement.
type Prober interface {
	Probe(ctx context.Context) (model.Bandwidth, error)
}

// Holder publishes the most recent measurement. The whole value is replaced
// on each store, so readers never see a download/upload pair from different
// probes.
type Holder struct {
	v atomic.Pointer[model.Bandwidth]
}

// Latest returns the last stored measurement, or the zero value if none.
func (h *Holder) Latest() model.Bandwidth {
	if b := h.v.Load(); b != nil {
		return *b
	}
	return model.Bandwidth{}
}

// Store replaces the published measurement.
func (h *Holder) Store(b model.Bandwidth) {
	h.v.Store(&b)
}

// ────────────────────────────────────────────────────────────────────────────────
// Speedtest
// ────────────────────────────────────────────────────────────────────────────────

// SpeedtestProber measures against the closest speedtest.net server.
type SpeedtestProber struct {
	client *speedtest.Speedtest
	now    func() time.Time
}

// NewSpeedtestProber creates a prober with a default speedtest client.
func NewSpeedtestProber() *SpeedtestProber {
	return &SpeedtestProber{
		client: speedtest.New(),
		now:    time.Now,
	}
}

// Probe runs a download and upload test.
func (p *SpeedtestProber) Probe(ctx context.Context) (model.Bandwidth, error) {
	servers, err := p.client.FetchServerListContext(ctx)
	if err != nil {
		return model.Bandwidth{}, fmt.Errorf("fetch servers: %w", err)
	}
	targets, err := servers.FindServer([]int{})
	if err != nil {
		return model.Bandwidth{}, fmt.Errorf("find server: %w", err)
	}
	if len(targets) == 0 {
		return model.Bandwidth{}, fmt.Errorf("no speedtest server available")
	}

	s := targets[0]
	defer s.Context.Reset()

	if err := s.DownloadTestContext(ctx); err != nil {
		return model.Bandwidth{}, fmt.Errorf("download test: %w", err)
	}
	if err := s.UploadTestContext(ctx); err != nil {
		return model.Bandwidth{}, fmt.Errorf("upload test: %w", err)
	}

	return model.Bandwidth{
		DownloadMbps: s.DLSpeed.Mbps(),
		UploadMbps:   s.ULSpeed.Mbps(),
		MeasuredAt:   p.now(),
	}, nil
}

// ────────────────────────────────────────────────────────────────────────────────
// Runner
// ────────────────────────────────────────────────────────────────────────────────

// Runner probes once immediately and then on every interval tick.
type Runner struct {
	prober   Prober
	holder   *Holder
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRunner creates a runner. A non-positive interval uses DefaultInterval.
func NewRunner(p Prober, h *Holder, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		prober:   p,
		holder:   h,
		interval: interval,
		timeout:  probeTimeout,
		log:      logging.Component("probe"),
	}
}

// Run probes until ctx is cancelled. Failed probes are logged and leave the
// previous measurement in place.
func (r *Runner) Run(ctx context.Context) {
	r.ProbeOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce takes one measurement and publishes it on success.
func (r *Runner) ProbeOnce(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	b, err := r.prober.Probe(pctx)
	if err != nil {
		if ctx.Err() == nil {
			metrics.ProbeFailures.Inc()
			r.log.Warn().Err(err).Msg("throughput probe failed")
		}
		return false
	}

	r.holder.Store(b)
	metrics.Bandwidth.WithLabelValues("download").Set(b.DownloadMbps)
	metrics.Bandwidth.WithLabelValues("upload").Set(b.UploadMbps)
	r.log.Info().
		Float64("download_mbps", b.DownloadMbps).
		Float64("upload_mbps", b.UploadMbps).
		Dur("took", time.Since(start)).
		Msg("throughput measured")
	return true
}
