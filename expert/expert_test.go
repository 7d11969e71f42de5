package expert

import (
	"testing"
	"time"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

func measured(down, up float64) model.Bandwidth {
	return model.Bandwidth{DownloadMbps: down, UploadMbps: up, MeasuredAt: time.Unix(1700000000, 0)}
}

func TestTTLCheck(t *testing.T) {
	tests := []struct {
		name       string
		stddev     float64
		mean       float64
		wantAlert  bool
		wantReason string
	}{
		{"scattered and low", 12, 40, true, TTLReasonSpoofing},
		{"scattered but high", 12, 60, false, TTLReasonNormal},
		{"low but steady", 2, 40, false, TTLReasonNormal},
		{"stddev boundary", 10, 40, false, TTLReasonNormal},
		{"mean boundary", 12, 45, false, TTLReasonNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, reason := TTLCheck(tt.stddev, tt.mean)
			if alert != tt.wantAlert || reason != tt.wantReason {
				t.Errorf("TTLCheck(%v, %v) = (%v, %q), want (%v, %q)",
					tt.stddev, tt.mean, alert, reason, tt.wantAlert, tt.wantReason)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		in       Inputs
		want     string
		severity Severity
	}{
		{
			name:     "host unreachable",
			in:       Inputs{LossMean: 85, TTLMean: 64},
			want:     StatusHostUnreachable,
			severity: SeverityError,
		},
		{
			name:     "icmp flood",
			in:       Inputs{RateMean: 120, AnomalyCount: 15, TTLMean: 64},
			want:     StatusICMPFlood,
			severity: SeverityError,
		},
		{
			name:     "flood needs anomalies",
			in:       Inputs{RateMean: 120, AnomalyCount: 10, TTLMean: 64},
			want:     StatusNormal,
			severity: SeverityChat,
		},
		{
			name:     "ttl spoofing with few anomalies",
			in:       Inputs{TTLStdDev: 12, TTLMean: 40, AnomalyCount: 3},
			want:     StatusTTLSpoofing,
			severity: SeverityWarning,
		},
		{
			name:     "multiple threats",
			in:       Inputs{TTLStdDev: 12, TTLMean: 40, AnomalyCount: 6},
			want:     StatusMultipleThreats,
			severity: SeverityError,
		},
		{
			name:     "suspicious activity",
			in:       Inputs{AnomalyCount: 11, TTLMean: 64},
			want:     StatusSuspicious,
			severity: SeverityWarning,
		},
		{
			name:     "low bandwidth",
			in:       Inputs{RTTMean: 200, TTLMean: 64, Bandwidth: measured(3.0, 1.0)},
			want:     StatusLowBandwidth,
			severity: SeverityNote,
		},
		{
			name:     "congestion with good bandwidth",
			in:       Inputs{RTTMean: 200, TTLMean: 64, Bandwidth: measured(50.0, 10.0)},
			want:     StatusCongestion,
			severity: SeverityNote,
		},
		{
			name:     "congestion with bandwidth never measured",
			in:       Inputs{RTTMean: 200, TTLMean: 64},
			want:     StatusCongestion,
			severity: SeverityNote,
		},
		{
			name:     "congestion with zero download",
			in:       Inputs{RTTMean: 200, TTLMean: 64, Bandwidth: measured(0, 0)},
			want:     StatusCongestion,
			severity: SeverityNote,
		},
		{
			name:     "normal",
			in:       Inputs{RTTMean: 100, RateMean: 10, TTLMean: 64, TTLStdDev: 1},
			want:     StatusNormal,
			severity: SeverityChat,
		},
		{
			name:     "loss outranks everything",
			in:       Inputs{LossMean: 90, TTLStdDev: 20, TTLMean: 30, AnomalyCount: 20, RateMean: 500},
			want:     StatusHostUnreachable,
			severity: SeverityError,
		},
		{
			name:     "flood outranks ttl alert",
			in:       Inputs{RateMean: 150, AnomalyCount: 20, TTLStdDev: 20, TTLMean: 30},
			want:     StatusICMPFlood,
			severity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.in)
			if v.Status != tt.want {
				t.Errorf("Status = %q, want %q (rule %s)", v.Status, tt.want, v.Rule)
			}
			if v.Severity != tt.severity {
				t.Errorf("Severity = %v, want %v", v.Severity, tt.severity)
			}
		})
	}
}

func TestClassifyReportsTTLAlertAlongsideStatus(t *testing.T) {
	v := Classify(Inputs{LossMean: 90, TTLStdDev: 15, TTLMean: 20})
	if v.Status != StatusHostUnreachable {
		t.Fatalf("Status = %q", v.Status)
	}
	if !v.TTLAlert || v.TTLReason != TTLReasonSpoofing {
		t.Errorf("ttl alert should be reported even when another rule wins, got %v %q", v.TTLAlert, v.TTLReason)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	in := Inputs{RTTMean: 180, RateMean: 40, TTLMean: 50, TTLStdDev: 3, AnomalyCount: 4, Bandwidth: measured(4.9, 1)}
	first := Classify(in)
	for i := 0; i < 100; i++ {
		if got := Classify(in); got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

func TestRulesTableCoversStatuses(t *testing.T) {
	seen := map[string]bool{StatusNormal: true}
	for _, r := range Rules() {
		if r.Name == "" || r.Condition == "" {
			t.Errorf("incomplete rule %+v", r)
		}
		seen[r.Status] = true
	}
	for _, s := range Statuses {
		if !seen[s] {
			t.Errorf("status %q has no rule", s)
		}
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		str  string
		symb string
	}{
		{SeverityChat, "Chat", "."},
		{SeverityNote, "Note", "i"},
		{SeverityWarning, "Warning", "!"},
		{SeverityError, "Error", "X"},
	}
	for _, tt := range tests {
		if tt.sev.String() != tt.str || tt.sev.Symbol() != tt.symb {
			t.Errorf("%d: got %s/%s", tt.sev, tt.sev.String(), tt.sev.Symbol())
		}
	}
}
