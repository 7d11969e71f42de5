package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zerofisher/icmpwatch/expert"
	"github.com/Zerofisher/icmpwatch/pkg/query"
)

type staticSnapshots struct{ res query.Result }

func (s staticSnapshots) Snapshot(context.Context) query.Result { return s.res }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestGetMetricsReady(t *testing.T) {
	snap := &query.Snapshot{
		Status:       expert.StatusTTLSpoofing,
		Severity:     expert.SeverityWarning,
		TTLAlert:     true,
		TTLReason:    expert.TTLReasonSpoofing,
		RTT:          []float64{0, 100.5},
		PacketLoss:   []float64{0, 0},
		ICMPRate:     []float64{10, 6.9},
		TTL:          []float64{60, 20},
		AnomalyCount: 3,
		DownloadMbps: 42.5,
		UploadMbps:   9.1,
	}
	h := NewHandler(staticSnapshots{query.Result{Kind: query.KindReady, Snapshot: snap}}).Routes()

	rec, body := get(t, h, PathMetrics)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["network_status"] != expert.StatusTTLSpoofing || body["severity"] != "Warning" {
		t.Errorf("body = %v", body)
	}
	if body["anomalies"] != float64(3) || body["ttl_alert"] != true {
		t.Errorf("anomalies/ttl_alert = %v/%v", body["anomalies"], body["ttl_alert"])
	}
	if body["download"] != 42.5 || body["upload"] != 9.1 {
		t.Errorf("bandwidth = %v/%v", body["download"], body["upload"])
	}
	for _, key := range []string{"rtt", "packet_loss", "icmp_rate", "ttl"} {
		if arr, ok := body[key].([]any); !ok || len(arr) != 2 {
			t.Errorf("%s = %v", key, body[key])
		}
	}
}

func TestGetMetricsNotReady(t *testing.T) {
	tests := []struct {
		name   string
		result query.Result
		code   int
		key    string
		value  string
	}{
		{"no data", query.Result{Kind: query.KindNoData, Message: query.MessageNoData}, http.StatusNotFound, "error", "No data found"},
		{"waiting", query.Result{Kind: query.KindWaiting, Message: query.MessageWaiting}, http.StatusOK, "network_status", "Waiting for traffic..."},
		{"syncing", query.Result{Kind: query.KindSyncing, Message: query.MessageSyncing, Err: errors.New("boom")}, http.StatusInternalServerError, "error", "Syncing data..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, NewHandler(staticSnapshots{tt.result}).Routes(), PathMetrics)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if body[tt.key] != tt.value {
				t.Errorf("body = %v, want %s=%q", body, tt.key, tt.value)
			}
			if len(body) != 1 {
				t.Errorf("Expected a single-field body, got %v", body)
			}
		})
	}
}

func TestGetMetricsMethodNotAllowed(t *testing.T) {
	h := NewHandler(staticSnapshots{query.Result{Kind: query.KindWaiting}}).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathMetrics, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthAndPrometheus(t *testing.T) {
	h := NewHandler(staticSnapshots{query.Result{Kind: query.KindWaiting}}).Routes()

	rec, body := get(t, h, PathHealth)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", rec.Code, body)
	}

	// Hit the API once so the request counter has a sample.
	get(t, h, PathMetrics)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathPrometheus, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "icmpwatch_http_requests_total") {
		t.Error("Prometheus exposition missing icmpwatch collectors")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(ln.Addr().String(), NewHandler(staticSnapshots{query.Result{Kind: query.KindWaiting}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + PathHealth)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
