// Package query builds status snapshots from the metric log.
// The HTTP API and the status command read traffic state only through this
// package instead of accessing the store directly.
package query

import (
	"time"

	"github.com/Zerofisher/icmpwatch/expert"
	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// Kind tells callers which branch of a Result applies.
type Kind int

const (
	// KindReady carries a Snapshot.
	KindReady Kind = iota
	// KindNoData means the metric log has never been created.
	KindNoData
	// KindWaiting means the log exists but holds no rows yet.
	KindWaiting
	// KindSyncing means the snapshot could not be built this time.
	KindSyncing
)

// Messages reported for the non-ready kinds.
const (
	MessageNoData  = "No data found"
	MessageWaiting = "Waiting for traffic..."
	MessageSyncing = "Syncing data..."
)

// String returns the metric label for the kind.
func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindNoData:
		return "no_data"
	case KindWaiting:
		return "waiting"
	case KindSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Result is the outcome of one aggregation.
type Result struct {
	Kind     Kind
	Snapshot *Snapshot // set only for KindReady
	Message  string    // set for every other kind
	Err      error     // cause of KindSyncing
}

// Snapshot is the classified state of the most recent window.
type Snapshot struct {
	Status    string          `json:"network_status"`
	Severity  expert.Severity `json:"severity"`
	Rule      string          `json:"rule"`
	TTLAlert  bool            `json:"ttl_alert"`
	TTLReason string          `json:"ttl_reason"`

	RTT        []float64 `json:"rtt"`
	PacketLoss []float64 `json:"packet_loss"`
	ICMPRate   []float64 `json:"icmp_rate"`
	TTL        []float64 `json:"ttl"`

	AnomalyCount   int  `json:"anomalies"`
	AnomalyEnabled bool `json:"anomaly_model"`

	DownloadMbps float64 `json:"download"`
	UploadMbps   float64 `json:"upload"`

	Rows        int                   `json:"rows"`
	Window      []model.FeatureRecord `json:"-"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// BandwidthSource supplies the latest throughput measurement. A zero value
// means no probe has completed.
type BandwidthSource interface {
	Latest() model.Bandwidth
}
