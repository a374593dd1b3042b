package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
// The refresher is ready once one refresh has completed.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SummaryProvider exposes the most recent refresh result.
type SummaryProvider interface {
	LastSummary() (domain.Summary, bool)
}

// Server exposes health, readiness, metrics, and summary HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /summary routes.
func NewServer(addr string, ready ReadinessChecker, summaries SummaryProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /summary", handleSummary(summaries))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// summaryResponse is the JSON shape of the /summary endpoint. It mirrors
// the derived table rather than the internal Summary type so the HTTP
// contract stays stable if internals move.
type summaryResponse struct {
	AsOf        string               `json:"as_of"`
	RefreshedAt time.Time            `json:"refreshed_at"`
	Rows        []summaryResponseRow `json:"rows"`
}

type summaryResponseRow struct {
	RegionName              string   `json:"region_name"`
	Population              *int64   `json:"population"`
	RiskLevel               *string  `json:"risk_level"`
	ActiveAlertsCount       int64    `json:"active_alerts_count"`
	HighestActiveSeverity   *string  `json:"highest_active_severity"`
	TotalResourcesAvailable int64    `json:"total_resources_available"`
	DistributionsLast7d     int64    `json:"distributions_last_7d"`
	LatestRainfallMM        *float64 `json:"latest_rainfall_mm"`
	AvgRainfall7d           *float64 `json:"avg_rainfall_7d"`
}

func handleSummary(summaries SummaryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sum, ok := summaries.LastSummary()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "no refresh has completed yet",
			})
			return
		}

		resp := summaryResponse{
			AsOf:        sum.AsOf.Format(time.DateOnly),
			RefreshedAt: sum.RefreshedAt,
			Rows:        make([]summaryResponseRow, 0, len(sum.Rows)),
		}
		for _, row := range sum.Rows {
			resp.Rows = append(resp.Rows, summaryResponseRow{
				RegionName:              row.RegionName,
				Population:              row.Population,
				RiskLevel:               row.RiskLevel,
				ActiveAlertsCount:       row.ActiveAlertsCount,
				HighestActiveSeverity:   row.HighestActiveSeverity,
				TotalResourcesAvailable: row.TotalResourcesAvailable,
				DistributionsLast7d:     row.DistributionsLast7d,
				LatestRainfallMM:        row.LatestRainfallMM,
				AvgRainfall7d:           row.AvgRainfall7d,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
