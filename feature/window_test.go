package feature

import (
	"math"
	"testing"
	"time"
)

func TestWindowSingleEntryRate(t *testing.T) {
	w := NewWindow()
	w.Push(time.Unix(1000, 0), 64)

	rate := w.Rate()
	if math.IsInf(rate, 0) || math.IsNaN(rate) || rate < 0 {
		t.Fatalf("rate must be finite and non-negative, got %v", rate)
	}
	if math.Abs(rate-10) > 1e-9 {
		t.Errorf("Expected 1/0.1 = 10, got %v", rate)
	}
}

func TestWindowEmpty(t *testing.T) {
	w := NewWindow()
	if w.Rate() != 0 {
		t.Errorf("Expected rate 0 for empty window, got %v", w.Rate())
	}
	if w.TTLVariance() != 0 {
		t.Errorf("Expected variance 0 for empty window, got %v", w.TTLVariance())
	}
}

func TestWindowTTLVarianceNeedsTwo(t *testing.T) {
	w := NewWindow()
	w.Push(time.Unix(0, 0), 200)
	if got := w.TTLVariance(); got != 0 {
		t.Errorf("Expected 0 for one entry, got %v", got)
	}

	w.Push(time.Unix(1, 0), 100)
	// Sample variance of {200, 100}: mean 150, ((50^2)*2)/1 = 5000
	if got := w.TTLVariance(); got != 5000 {
		t.Errorf("Expected 5000, got %v", got)
	}
}

func TestWindowRate(t *testing.T) {
	w := NewWindow()
	base := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		w.Push(base.Add(time.Duration(i)*100*time.Millisecond), 64)
	}

	// 10 packets across 0.9s: 10 / (0.9 + 0.1) = 10
	if got := w.Rate(); math.Abs(got-10) > 1e-9 {
		t.Errorf("Expected rate 10, got %v", got)
	}
}

func TestWindowIdenticalTimestamps(t *testing.T) {
	w := NewWindow()
	ts := time.Unix(5, 0)
	for i := 0; i < 5; i++ {
		w.Push(ts, 64)
	}
	if got := w.Rate(); math.Abs(got-50) > 1e-9 {
		t.Errorf("Expected 5/0.1 = 50, got %v", got)
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow()
	base := time.Unix(0, 0)
	for i := 0; i < WindowSize; i++ {
		w.Push(base.Add(time.Duration(i)*time.Second), i)
	}
	if w.Len() != WindowSize {
		t.Fatalf("Expected %d entries, got %d", WindowSize, w.Len())
	}

	w.Push(base.Add(time.Duration(WindowSize)*time.Second), WindowSize)
	if w.Len() != WindowSize {
		t.Fatalf("window exceeded bound: %d", w.Len())
	}
	if w.entries[0].ttl != 1 {
		t.Errorf("Expected oldest entry (ttl 0) evicted, head ttl=%v", w.entries[0].ttl)
	}
	if w.entries[WindowSize-1].ttl != WindowSize {
		t.Errorf("Expected newest entry at tail, got ttl=%v", w.entries[WindowSize-1].ttl)
	}
}

func TestWindowNeverExceedsBound(t *testing.T) {
	w := NewWindowSize(3)
	for i := 0; i < 100; i++ {
		w.Push(time.Unix(int64(i), 0), 64)
		if w.Len() > 3 {
			t.Fatalf("window size %d exceeds bound after %d pushes", w.Len(), i+1)
		}
	}
}
