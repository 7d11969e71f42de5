package model

import (
	"testing"
)

func TestFeatureRecordRoundTrip(t *testing.T) {
	rec := FeatureRecord{
		RTTProxyMs:  12.3456,
		PacketLoss:  0,
		ICMPRate:    9.999,
		TTL:         64,
		TTLVariance: 0.005,
	}.Rounded()

	got, err := ParseFields(rec.Fields())
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	if got != rec {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, rec)
	}
	if got.RTTProxyMs != 12.35 {
		t.Errorf("Expected rtt 12.35, got %v", got.RTTProxyMs)
	}
	if got.ICMPRate != 10 {
		t.Errorf("Expected icmp_rate 10, got %v", got.ICMPRate)
	}
}

func TestParseFieldsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"short", []string{"1", "0", "2"}},
		{"text", []string{"1", "0", "abc", "64", "0"}},
		{"nan", []string{"NaN", "0", "1", "64", "0"}},
		{"inf", []string{"1", "0", "+Inf", "64", "0"}},
		{"fractional ttl", []string{"1", "0", "10", "64.5", "0"}},
		{"ttl out of range", []string{"1", "0", "10", "300", "0"}},
		{"negative ttl", []string{"1", "0", "10", "-1", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFields(tt.fields); err == nil {
				t.Errorf("Expected error for %v", tt.fields)
			}
		})
	}
}

func TestVectorOrder(t *testing.T) {
	rec := FeatureRecord{RTTProxyMs: 1, PacketLoss: 2, ICMPRate: 3, TTL: 4, TTLVariance: 5}
	v := rec.Vector()
	for i, want := range []float64{1, 2, 3, 4, 5} {
		if v[i] != want {
			t.Errorf("Vector()[%d] (%s) = %v, want %v", i, Columns[i], v[i], want)
		}
	}
}
