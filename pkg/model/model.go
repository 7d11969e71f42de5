// Package model defines the core data records shared by the capture, storage and query layers.
// Records are storage-friendly: plain numeric columns with a fixed order.
package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ────────────────────────────────────────────────────────────────────────────────
// Observation
// ────────────────────────────────────────────────────────────────────────────────

// Observation is one captured ICMP packet, reduced to what feature extraction
// needs. It is never persisted.
type Observation struct {
	Number    int       // Capture sequence number (1-based)
	Timestamp time.Time // Arrival time
	TTL       int       // IPv4 TTL or IPv6 hop limit
	HasTTL    bool      // False when no IP header could be decoded
	SrcIP     string
	DstIP     string
	ICMPType  uint8
	ICMPCode  uint8
	V6        bool // ICMPv6 (TTL holds the hop limit)
}

// ────────────────────────────────────────────────────────────────────────────────
// Feature columns
// ────────────────────────────────────────────────────────────────────────────────

// Column names, in the order they are persisted and fed to the outlier model.
const (
	ColRTT         = "rtt"
	ColPacketLoss  = "packet_loss"
	ColICMPRate    = "icmp_rate"
	ColTTL         = "ttl"
	ColTTLVariance = "ttl_variance"
)

// MaxTTL is the largest IPv4 TTL or IPv6 hop limit.
const MaxTTL = 255

// Columns is the fixed, ordered feature set. The anomaly model must be trained
// on exactly this order.
var Columns = []string{ColRTT, ColPacketLoss, ColICMPRate, ColTTL, ColTTLVariance}

// ────────────────────────────────────────────────────────────────────────────────
// FeatureRecord
// ────────────────────────────────────────────────────────────────────────────────

// FeatureRecord is one row of the metric log. It is immutable once appended.
//
// RTTProxyMs is the inter-arrival time between two consecutive captured ICMP
// packets. It is not a round-trip time: one-way capture cannot pair echo
// requests with replies.
type FeatureRecord struct {
	RTTProxyMs  float64 `json:"rtt"`
	PacketLoss  float64 `json:"packet_loss"`
	ICMPRate    float64 `json:"icmp_rate"`
	TTL         int     `json:"ttl"`
	TTLVariance float64 `json:"ttl_variance"`
}

// Vector returns the record as a model input in Columns order.
func (r FeatureRecord) Vector() []float64 {
	return []float64{r.RTTProxyMs, r.PacketLoss, r.ICMPRate, float64(r.TTL), r.TTLVariance}
}

// Rounded returns a copy with every float column rounded to 2 decimals.
func (r FeatureRecord) Rounded() FeatureRecord {
	r.RTTProxyMs = Round2(r.RTTProxyMs)
	r.PacketLoss = Round2(r.PacketLoss)
	r.ICMPRate = Round2(r.ICMPRate)
	r.TTLVariance = Round2(r.TTLVariance)
	return r
}

// Fields encodes the record as text columns in Columns order.
func (r FeatureRecord) Fields() []string {
	return []string{
		formatFloat(r.RTTProxyMs),
		formatFloat(r.PacketLoss),
		formatFloat(r.ICMPRate),
		strconv.Itoa(r.TTL),
		formatFloat(r.TTLVariance),
	}
}

// ParseFields decodes text columns produced by Fields.
func ParseFields(fields []string) (FeatureRecord, error) {
	if len(fields) != len(Columns) {
		return FeatureRecord{}, fmt.Errorf("expected %d columns, got %d", len(Columns), len(fields))
	}

	var vals [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return FeatureRecord{}, fmt.Errorf("column %s: %w", Columns[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FeatureRecord{}, fmt.Errorf("column %s: non-finite value %q", Columns[i], f)
		}
		vals[i] = v
	}

	// TTL and hop limit are 8-bit integers.
	if ttl := vals[3]; ttl != math.Trunc(ttl) || ttl < 0 || ttl > MaxTTL {
		return FeatureRecord{}, fmt.Errorf("column %s: %q is not a TTL", ColTTL, fields[3])
	}

	return FeatureRecord{
		RTTProxyMs:  vals[0],
		PacketLoss:  vals[1],
		ICMPRate:    vals[2],
		TTL:         int(vals[3]),
		TTLVariance: vals[4],
	}, nil
}

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ────────────────────────────────────────────────────────────────────────────────
// Bandwidth
// ────────────────────────────────────────────────────────────────────────────────

// Bandwidth is the most recent link throughput measurement.
// Zero rates mean the link has not been measured yet.
type Bandwidth struct {
	DownloadMbps float64   `json:"download"`
	UploadMbps   float64   `json:"upload"`
	MeasuredAt   time.Time `json:"measured_at"`
}

// Known reports whether a measurement has been taken.
func (b Bandwidth) Known() bool {
	return !b.MeasuredAt.IsZero()
}
