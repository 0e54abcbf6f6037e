package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"xetra/internal/bucket"
	"xetra/internal/domain"
	"xetra/internal/util"
)

// Runner runs the pipeline for a business date; an empty date means the
// configured default.
type Runner interface {
	Run(ctx context.Context, date string) ([]domain.SummaryRow, error)
}

// Server serves the daily summary API.
type Server struct {
	runner     Runner
	target     bucket.TargetConfig
	dateFormat string
	log        *slog.Logger
}

// NewServer creates a Server. dateFormat is the source date format that
// request dates are normalised to.
func NewServer(runner Runner, target bucket.TargetConfig, dateFormat string, log *slog.Logger) *Server {
	return &Server{runner: runner, target: target, dateFormat: dateFormat, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /daily", s.handleDaily)
	mux.HandleFunc("GET /daily/{date}", s.handleDaily)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleDaily runs the pipeline for the requested date. A date that cannot
// be read falls back to the configured default date.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := ""
	if raw := r.PathValue("date"); raw != "" {
		if d, ok := util.NormalizeDate(raw, s.dateFormat); ok {
			date = d
		} else {
			s.log.Info("unrecognised date, using default", "date", raw)
		}
	}

	s.log.Info("xetra job started", "date", date)
	rows, err := s.runner.Run(r.Context(), date)
	if err != nil {
		var dfe *util.DateFormatError
		if errors.As(err, &dfe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("xetra job failed", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("xetra job finished", "date", date, "rows", len(rows))

	s.writeJSON(w, toRecords(rows, s.target))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}
