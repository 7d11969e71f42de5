// Package api serves the status snapshot over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Zerofisher/icmpwatch/internal/logging"
	"github.com/Zerofisher/icmpwatch/internal/metrics"
	"github.com/Zerofisher/icmpwatch/pkg/query"
)

const (
	PathMetrics    = "/api/metrics"
	PathPrometheus = "/metrics"
	PathHealth     = "/healthz"
)

// Snapshotter produces one aggregation result per call.
type Snapshotter interface {
	Snapshot(ctx context.Context) query.Result
}

// MetricsResponse is the body of a ready snapshot.
type MetricsResponse struct {
	NetworkStatus string    `json:"network_status"`
	Severity      string    `json:"severity"`
	RTT           []float64 `json:"rtt"`
	PacketLoss    []float64 `json:"packet_loss"`
	ICMPRate      []float64 `json:"icmp_rate"`
	TTL           []float64 `json:"ttl"`
	Anomalies     int       `json:"anomalies"`
	TTLAlert      bool      `json:"ttl_alert"`
	TTLReason     string    `json:"ttl_reason"`
	Download      float64   `json:"download"`
	Upload        float64   `json:"upload"`
}

// Handler serves HTTP requests
type Handler struct {
	snapshots Snapshotter
	log       zerolog.Logger
}

// NewHandler creates a handler over s.
func NewHandler(s Snapshotter) *Handler {
	return &Handler{
		snapshots: s,
		log:       logging.Component("api"),
	}
}

// Routes returns the API mux, including Prometheus exposition.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathMetrics, h.GetMetrics)
	mux.HandleFunc(PathHealth, h.HealthCheck)
	mux.Handle(PathPrometheus, promhttp.Handler())
	return mux
}

// GetMetrics handles GET /api/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, PathMetrics).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		h.writeJSON(w, r, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	res := h.snapshots.Snapshot(r.Context())
	switch res.Kind {
	case query.KindReady:
		h.writeJSON(w, r, http.StatusOK, newMetricsResponse(res.Snapshot))
	case query.KindNoData:
		h.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": res.Message})
	case query.KindWaiting:
		h.writeJSON(w, r, http.StatusOK, map[string]string{"network_status": res.Message})
	default:
		h.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": query.MessageSyncing})
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func newMetricsResponse(s *query.Snapshot) MetricsResponse {
	return MetricsResponse{
		NetworkStatus: s.Status,
		Severity:      s.Severity.String(),
		RTT:           nonNil(s.RTT),
		PacketLoss:    nonNil(s.PacketLoss),
		ICMPRate:      nonNil(s.ICMPRate),
		TTL:           nonNil(s.TTL),
		Anomalies:     s.AnomalyCount,
		TTLAlert:      s.TTLAlert,
		TTLReason:     s.TTLReason,
		Download:      s.DownloadMbps,
		Upload:        s.UploadMbps,
	}
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug().Err(err).Str("path", r.URL.Path).Msg("write response")
	}
}

// ────────────────────────────────────────────────────────────────────────────────
// Server
// ────────────────────────────────────────────────────────────────────────────────

// Server runs the API until its context is cancelled.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, h *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      h.Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logging.Component("api"),
	}
}

// Run listens and serves, shutting down gracefully when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("API listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("API stopped")
	return nil
}
