package stats

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Zerofisher/icmpwatch/pkg/model"
)

func TestColumns(t *testing.T) {
	rows := []model.FeatureRecord{
		{RTTProxyMs: 0, ICMPRate: 10, TTL: 64},
		{RTTProxyMs: 100, ICMPRate: 9.5, TTL: 60, TTLVariance: 8},
	}
	s := Columns(rows)

	if len(s.RTT) != 2 || s.RTT[1] != 100 {
		t.Errorf("RTT = %v", s.RTT)
	}
	if s.TTL[0] != 64 || s.TTL[1] != 60 {
		t.Errorf("TTL = %v", s.TTL)
	}
	if s.TTLVariance[1] != 8 {
		t.Errorf("TTLVariance = %v", s.TTLVariance)
	}

	named := s.Named()
	for i, col := range named {
		if col.Name != model.Columns[i] {
			t.Errorf("column %d = %s, want %s", i, col.Name, model.Columns[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{
			name:   "single value has zero stddev",
			values: []float64{64},
			want:   Summary{Mean: 64, StdDev: 0, Min: 64, Max: 64, Last: 64},
		},
		{
			name:   "sample stddev",
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   Summary{Mean: 5, StdDev: math.Sqrt(32.0 / 7), Min: 2, Max: 9, Last: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Summarize(tt.values)
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if math.Abs(got.Mean-tt.want.Mean) > 1e-9 ||
				math.Abs(got.StdDev-tt.want.StdDev) > 1e-9 ||
				got.Min != tt.want.Min || got.Max != tt.want.Max || got.Last != tt.want.Last {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarizeErrors(t *testing.T) {
	if _, err := Summarize(nil); err == nil {
		t.Error("Expected error for empty series")
	}
	if _, err := Summarize([]float64{1, math.Inf(1)}); !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite, got %v", err)
	}
	if _, err := Summarize([]float64{math.NaN()}); !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite for NaN, got %v", err)
	}
}

func TestPrintSummary(t *testing.T) {
	rows := []model.FeatureRecord{
		{RTTProxyMs: 10, ICMPRate: 10, TTL: 64},
		{RTTProxyMs: 30, ICMPRate: 12, TTL: 64},
	}
	var buf bytes.Buffer
	if err := PrintSummary(&buf, Columns(rows)); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Feature Window (2 rows)") {
		t.Errorf("missing header:\n%s", out)
	}
	for _, col := range model.Columns {
		if !strings.Contains(out, col) {
			t.Errorf("missing column %s:\n%s", col, out)
		}
	}
	if !strings.Contains(out, "20.00") {
		t.Errorf("Expected rtt mean 20.00:\n%s", out)
	}
}
