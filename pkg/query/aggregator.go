package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zerofisher/icmpwatch/anomaly"
	"github.com/Zerofisher/icmpwatch/expert"
	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/internal/metrics"
	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
	"github.com/Zerofisher/icmpwatch/stats"
)

// DefaultWindow is the number of most recent rows a snapshot covers.
const DefaultWindow = 50

// Aggregator reads the tail of the metric log and classifies it.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	log    store.Reader
	scorer *anomaly.Scorer
	bw     BandwidthSource
	window int
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWindow overrides the number of rows per snapshot.
func WithWindow(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator. scorer and bw may be nil: a nil scorer
// counts no anomalies and a nil source reports bandwidth as unknown.
func NewAggregator(log store.Reader, scorer *anomaly.Scorer, bw BandwidthSource, opts ...Option) *Aggregator {
	if scorer == nil {
		scorer = anomaly.New(anomaly.Disabled())
	}
	a := &Aggregator{
		log:    log,
		scorer: scorer,
		bw:     bw,
		window: DefaultWindow,
		now:    time.Now,
		logger: logging.Component("query"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot aggregates the most recent window. It never panics; any failure
// other than a missing or empty log yields KindSyncing.
func (a *Aggregator) Snapshot(ctx context.Context) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = syncing(fmt.Errorf("aggregation panic: %v", r))
		}
		if res.Kind == KindSyncing {
			a.logger.Warn().Err(res.Err).Msg("snapshot unavailable")
		}
		metrics.SnapshotsTotal.WithLabelValues(res.Kind.String()).Inc()
		metrics.SnapshotLatency.Observe(time.Since(start).Seconds())
	}()

	rows, err := a.log.Tail(ctx, a.window)
	switch {
	case errors.Is(err, store.ErrNoLog):
		return Result{Kind: KindNoData, Message: MessageNoData}
	case err != nil:
		return syncing(fmt.Errorf("read metric log: %w", err))
	case len(rows) == 0:
		return Result{Kind: KindWaiting, Message: MessageWaiting}
	}

	snap, err := a.build(rows)
	if err != nil {
		return syncing(err)
	}

	metrics.SetStatus(snap.Status, expert.Statuses)
	metrics.AnomalyCount.Set(float64(snap.AnomalyCount))

	return Result{Kind: KindReady, Snapshot: snap}
}

func (a *Aggregator) build(rows []model.FeatureRecord) (*Snapshot, error) {
	series := stats.Columns(rows)

	loss, err := stats.Summarize(series.PacketLoss)
	if err != nil {
		return nil, fmt.Errorf("packet_loss: %w", err)
	}
	rate, err := stats.Summarize(series.ICMPRate)
	if err != nil {
		return nil, fmt.Errorf("icmp_rate: %w", err)
	}
	rtt, err := stats.Summarize(series.RTT)
	if err != nil {
		return nil, fmt.Errorf("rtt: %w", err)
	}
	ttl, err := stats.Summarize(series.TTL)
	if err != nil {
		return nil, fmt.Errorf("ttl: %w", err)
	}

	var bw model.Bandwidth
	if a.bw != nil {
		bw = a.bw.Latest()
	}

	anomalies := a.scorer.Score(rows)

	v := expert.Classify(expert.Inputs{
		LossMean:     loss.Mean,
		RateMean:     rate.Mean,
		RTTMean:      rtt.Mean,
		TTLMean:      ttl.Mean,
		TTLStdDev:    ttl.StdDev,
		AnomalyCount: anomalies,
		Bandwidth:    bw,
	})

	return &Snapshot{
		Status:         v.Status,
		Severity:       v.Severity,
		Rule:           v.Rule,
		TTLAlert:       v.TTLAlert,
		TTLReason:      v.TTLReason,
		RTT:            series.RTT,
		PacketLoss:     series.PacketLoss,
		ICMPRate:       series.ICMPRate,
		TTL:            series.TTL,
		AnomalyCount:   anomalies,
		AnomalyEnabled: a.scorer.Enabled(),
		DownloadMbps:   bw.DownloadMbps,
		UploadMbps:     bw.UploadMbps,
		Rows:           len(rows),
		Window:         rows,
		GeneratedAt:    a.now().UTC(),
	}, nil
}

func syncing(err error) Result {
	return Result{Kind: KindSyncing, Message: MessageSyncing, Err: err}
}
