package csvlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

func TestAppendWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "icmp_live.csv")
	log := New(path)
	defer log.Close()

	ctx := context.Background()
	if err := log.Append(ctx, model.FeatureRecord{RTTProxyMs: 0, ICMPRate: 10, TTL: 64}); err != nil {
		t.Fatalf("Append #1: %v", err)
	}
	if err := log.Append(ctx, model.FeatureRecord{RTTProxyMs: 12.5, ICMPRate: 9.52, TTL: 64, TTLVariance: 0}); err != nil {
		t.Fatalf("Append #2: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d\n%s", len(lines), string(data))
	}
	if lines[0] != "rtt,packet_loss,icmp_rate,ttl,ttl_variance" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[2] != "12.5,0,9.52,64,0" {
		t.Fatalf("unexpected row: %q", lines[2])
	}
}

func TestAppendReopenDoesNotRepeatHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icmp_live.csv")
	ctx := context.Background()

	first := New(path)
	if err := first.Append(ctx, model.FeatureRecord{TTL: 64}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first.Close()

	second := New(path)
	defer second.Close()
	if err := second.Append(ctx, model.FeatureRecord{TTL: 128}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows, err := second.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(rows) != 2 || rows[0].TTL != 64 || rows[1].TTL != 128 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestTailMissingLog(t *testing.T) {
	t.Parallel()

	log := New(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := log.Tail(context.Background(), 50)
	if !errors.Is(err, store.ErrNoLog) {
		t.Fatalf("Expected ErrNoLog, got %v", err)
	}
}

func TestTailEmptyLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"zero bytes", ""},
		{"header only", "rtt,packet_loss,icmp_rate,ttl,ttl_variance\n"},
	}

	for _, tt := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".csv")
		if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		rows, err := New(path).Tail(context.Background(), 50)
		if err != nil {
			t.Fatalf("%s: Tail: %v", tt.name, err)
		}
		if len(rows) != 0 {
			t.Fatalf("%s: expected no rows, got %d", tt.name, len(rows))
		}
	}
}

func TestTailReturnsMostRecentOldestFirst(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icmp_live.csv")
	log := New(path)
	defer log.Close()

	ctx := context.Background()
	// Enough rows to force more than one backwards read.
	for i := 0; i < 2000; i++ {
		if err := log.Append(ctx, model.FeatureRecord{RTTProxyMs: float64(i), ICMPRate: 1.25, TTL: 64}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	rows, err := log.Tail(ctx, 50)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(rows) != 50 {
		t.Fatalf("Expected 50 rows, got %d", len(rows))
	}
	if rows[0].RTTProxyMs != 1950 || rows[49].RTTProxyMs != 1999 {
		t.Fatalf("unexpected window bounds: first=%v last=%v", rows[0].RTTProxyMs, rows[49].RTTProxyMs)
	}

	all, err := log.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail all: %v", err)
	}
	if len(all) != 2000 {
		t.Fatalf("Expected 2000 rows, got %d", len(all))
	}
}

func TestTailFewerRowsThanRequested(t *testing.T) {
	t.Parallel()

	log := New(filepath.Join(t.TempDir(), "icmp_live.csv"))
	defer log.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := log.Append(ctx, model.FeatureRecord{TTL: 60 + i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows, err := log.Tail(ctx, 50)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(rows) != 3 || rows[2].TTL != 62 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestTailSkipsInFlightRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icmp_live.csv")
	content := "rtt,packet_loss,icmp_rate,ttl,ttl_variance\n1,0,2,64,0\n3,0,4,6"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rows, err := New(path).Tail(context.Background(), 50)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(rows) != 1 || rows[0].TTL != 64 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestTailMalformedRow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "icmp_live.csv")
	content := "rtt,packet_loss,icmp_rate,ttl,ttl_variance\n1,0,2,64,0\nbad,row\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := New(path).Tail(context.Background(), 50)
	if err == nil {
		t.Fatal("Expected error for malformed row")
	}
	if errors.Is(err, store.ErrNoLog) {
		t.Fatal("malformed row must not be reported as a missing log")
	}
}
