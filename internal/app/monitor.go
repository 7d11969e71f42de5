package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zerofisher/icmpwatch/anomaly"
	"github.com/Zerofisher/icmpwatch/capture"
	"github.com/Zerofisher/icmpwatch/feature"
	"github.com/Zerofisher/icmpwatch/internal/api"
	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/internal/probe"
	"github.com/Zerofisher/icmpwatch/pkg/query"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// MonitorOptions wires the monitor's collaborators.
type MonitorOptions struct {
	Source capture.Source
	Log    store.Log
	Scorer *anomaly.Scorer

	// Prober is nil when throughput probing is disabled.
	Prober        probe.Prober
	ProbeInterval time.Duration

	// Listen is the API address; empty disables the API.
	Listen string

	// ExitOnEOF makes Run return once the source is exhausted instead of
	// serving the API until cancelled.
	ExitOnEOF bool
}

// Monitor runs capture, feature extraction, probing and the API together.
type Monitor struct {
	opts      MonitorOptions
	extractor *feature.Extractor
	holder    *probe.Holder
	agg       *query.Aggregator
	log       zerolog.Logger
}

// NewMonitor creates a monitor. Source and Log are required.
func NewMonitor(opts MonitorOptions) (*Monitor, error) {
	if opts.Source == nil {
		return nil, errors.New("monitor: no packet source")
	}
	if opts.Log == nil {
		return nil, errors.New("monitor: no metric log")
	}
	holder := &probe.Holder{}
	return &Monitor{
		opts:      opts,
		extractor: feature.NewExtractor(opts.Log),
		holder:    holder,
		agg:       query.NewAggregator(opts.Log, opts.Scorer, holder),
		log:       logging.Component("monitor"),
	}, nil
}

// Aggregator returns the aggregator serving the API.
func (m *Monitor) Aggregator() *query.Aggregator {
	return m.agg
}

// Holder returns the bandwidth holder fed by the prober.
func (m *Monitor) Holder() *probe.Holder {
	return m.holder
}

// Run blocks until ctx is cancelled, or until the source is exhausted when
// ExitOnEOF is set. Append failures are logged and capture continues.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	if m.opts.Prober != nil {
		runner := probe.NewRunner(m.opts.Prober, m.holder, m.opts.ProbeInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx)
		}()
	}

	if m.opts.Listen != "" {
		srv := api.NewServer(m.opts.Listen, api.NewHandler(m.agg))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	m.runCapture(ctx)

	if !m.opts.ExitOnEOF || ctx.Err() != nil {
		<-ctx.Done()
	}
	cancel()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (m *Monitor) runCapture(ctx context.Context) {
	obsCh := m.opts.Source.Start()
	defer m.opts.Source.Stop()

	m.log.Info().Msg("monitoring ICMP traffic")

	var records int
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Int("records", records).Msg("capture stopped")
			return
		case obs, ok := <-obsCh:
			if !ok {
				m.log.Info().Int("records", records).Msg("capture source exhausted")
				return
			}
			rec, ok, err := m.extractor.Process(ctx, obs)
			if err != nil {
				m.log.Error().Err(err).Msg("feature record not logged")
				continue
			}
			if !ok {
				continue
			}
			records++
			m.log.Debug().
				Int("ttl", rec.TTL).
				Float64("rate", rec.ICMPRate).
				Msg(capture.Describe(obs))
		}
	}
}
