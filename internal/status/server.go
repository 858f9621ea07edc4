package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"selfmend/internal/core/domain"
)

// StrategyRank is one entry of the per-kind strategy ranking.
type StrategyRank struct {
	StrategyID string  `json:"strategy_id"`
	Score      float64 `json:"score"`
	Learned    bool    `json:"learned"`
	Attempts   int     `json:"attempts"`
}

// Report is the point-in-time status snapshot.
type Report struct {
	Health           *domain.HealthSnapshot    `json:"health"`
	OpenEvents       int                       `json:"open_events"`
	EscalatedEvents  int                       `json:"escalated_events"`
	SucceededEvents  int                       `json:"succeeded_events"`
	LedgerRecords    int                       `json:"ledger_records"`
	DegradedLearning bool                      `json:"degraded_learning"`
	TopStrategies    map[string][]StrategyRank `json:"top_strategies"`
}

// Source produces status reports. Satisfied by the orchestrator.
type Source interface {
	StatusReport(ctx context.Context) Report
}

// Server provides HTTP endpoints for status and metrics.
type Server struct {
	source Source
	server *http.Server
}

// NewServer creates a new status server.
func NewServer(source Source, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.source.StatusReport(r.Context())

	status := domain.StatusHealthy
	if report.Health != nil {
		status = report.Health.Worst()
	}

	w.Header().Set("Content-Type", "application/json")
	if status == domain.StatusFailed {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.source.StatusReport(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
