package feature

import (
	"context"
	"fmt"
	"time"

	"github.com/Zerofisher/icmpwatch/internal/metrics"
	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// Extractor converts observations into feature records and appends them to
// the metric log. It is not safe for concurrent use: the capture loop owns it.
type Extractor struct {
	window *Window
	log    store.Writer

	last time.Time
	seen bool
}

// NewExtractor creates an extractor writing to log.
func NewExtractor(log store.Writer) *Extractor {
	return &Extractor{
		window: NewWindow(),
		log:    log,
	}
}

// Window returns the extractor's rolling window.
func (e *Extractor) Window() *Window {
	return e.window
}

// Process handles one observation. It returns ok=false without error when the
// observation carries no TTL; such packets leave no trace in the window or log.
func (e *Extractor) Process(ctx context.Context, obs model.Observation) (model.FeatureRecord, bool, error) {
	if !obs.HasTTL {
		metrics.PacketsDropped.Inc()
		return model.FeatureRecord{}, false, nil
	}
	metrics.PacketsObserved.Inc()

	rec := e.next(obs)

	if err := e.log.Append(ctx, rec); err != nil {
		metrics.AppendErrors.Inc()
		return rec, true, fmt.Errorf("append feature: %w", err)
	}
	metrics.RecordsAppended.Inc()
	return rec, true, nil
}

// next updates the window with obs and derives its record. The rate and
// variance include obs itself.
func (e *Extractor) next(obs model.Observation) model.FeatureRecord {
	// First packet ever gets 0, a value rather than a missing marker.
	var rtt float64
	if e.seen {
		rtt = float64(obs.Timestamp.Sub(e.last)) / float64(time.Millisecond)
		if rtt < 0 {
			rtt = 0
		}
	}
	e.last = obs.Timestamp
	e.seen = true

	e.window.Push(obs.Timestamp, obs.TTL)

	return model.FeatureRecord{
		RTTProxyMs:  rtt,
		PacketLoss:  0, // one-way capture cannot observe loss
		ICMPRate:    e.window.Rate(),
		TTL:         obs.TTL,
		TTLVariance: e.window.TTLVariance(),
	}.Rounded()
}
