// Package expert classifies a window of ICMP traffic statistics into a
// network status with a severity, by first match over an ordered rule table.
package expert

import (
	"fmt"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

// Severity represents the severity level of a verdict
type Severity int

const (
	SeverityChat    Severity = iota // Informational, normal behavior
	SeverityNote                    // Notable but not necessarily problematic
	SeverityWarning                 // Potential issue
	SeverityError                   // Definite problem
)

// String returns a human-readable string for the severity
func (s Severity) String() string {
	switch s {
	case SeverityChat:
		return "Chat"
	case SeverityNote:
		return "Note"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Symbol returns a single character symbol for the severity
func (s Severity) Symbol() string {
	switch s {
	case SeverityChat:
		return "."
	case SeverityNote:
		return "i"
	case SeverityWarning:
		return "!"
	case SeverityError:
		return "X"
	default:
		return "?"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Group represents the category of a verdict
type Group string

const (
	GroupAvailability Group = "Availability" // Host reachability
	GroupSecurity     Group = "Security"     // Floods, spoofing, outliers
	GroupPerformance  Group = "Performance"  // Latency and bandwidth
	GroupNone         Group = "None"
)

// Network status labels, exactly as reported to clients.
const (
	StatusHostUnreachable = "Host Unreachable"
	StatusICMPFlood       = "ICMP Flood Detected"
	StatusMultipleThreats = "Multiple Threats Detected"
	StatusTTLSpoofing     = "TTL-Based Spoofing Detected"
	StatusSuspicious      = "Suspicious Activity"
	StatusLowBandwidth    = "Degraded Performance: Low Bandwidth (ISP)"
	StatusCongestion      = "Degraded Performance: Network Congestion"
	StatusNormal          = "Normal"
)

// TTL check reasons.
const (
	TTLReasonSpoofing = "High variance & TTL drop → Possible spoofing"
	TTLReasonNormal   = "Normal TTL Behavior"
)

// Statuses lists every status Classify can return.
var Statuses = []string{
	StatusHostUnreachable,
	StatusICMPFlood,
	StatusMultipleThreats,
	StatusTTLSpoofing,
	StatusSuspicious,
	StatusLowBandwidth,
	StatusCongestion,
	StatusNormal,
}

// Inputs are the window statistics a verdict is computed from.
type Inputs struct {
	LossMean     float64
	RateMean     float64
	RTTMean      float64
	TTLMean      float64
	TTLStdDev    float64
	AnomalyCount int
	Bandwidth    model.Bandwidth
}

// Verdict is the outcome of Classify.
type Verdict struct {
	Status    string
	Severity  Severity
	Group     Group
	TTLAlert  bool
	TTLReason string
	Rule      string // name of the matched rule
}

// String returns a formatted string representation
func (v Verdict) String() string {
	return fmt.Sprintf("[%s] %s (%s)", v.Severity.Symbol(), v.Status, v.Rule)
}

// Env is the expression environment rule conditions are compiled against.
type Env struct {
	LossMean     float64 `expr:"loss_mean"`
	RateMean     float64 `expr:"rate_mean"`
	RTTMean      float64 `expr:"rtt_mean"`
	TTLMean      float64 `expr:"ttl_mean"`
	TTLStdDev    float64 `expr:"ttl_stddev"`
	TTLAlert     bool    `expr:"ttl_alert"`
	AnomalyCount int     `expr:"anomaly_count"`
	Download     float64 `expr:"download"` // Mbps, 0 when never measured
	Upload       float64 `expr:"upload"`
}
