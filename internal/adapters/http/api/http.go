// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
)

// Default request limits.
const (
	defaultMaxUploadBytes = 32 << 20
	maxJSONBodyBytes      = 1 << 20
	defaultHistoryLimit   = 20
	maxHistoryLimit       = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PredictDependencies
	EncodeDependencies
	EvaluateDependencies
	HistoryDependencies
	SkinsDependencies
}

// PredictDependencies scores one record.
type PredictDependencies interface {
	Predict(ctx context.Context, r model.EmployeeRecord) (model.Assessment, error)
}

// EncodeDependencies maps category labels to codes.
type EncodeDependencies interface {
	Encode(ctx context.Context, skin string, selections map[string]string) (map[string]int, error)
}

// EvaluateDependencies scores a labelled CSV dataset.
type EvaluateDependencies interface {
	EvaluateCSV(ctx context.Context, r io.Reader, opts ...service.EvalOption) (service.Report, error)
}

// HistoryDependencies lists past evaluation runs.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]model.EvaluationRun, error)
	Evaluation(ctx context.Context, id string) (model.EvaluationRun, error)
}

// SkinsDependencies exposes the loaded form variants.
type SkinsDependencies interface {
	Skins() *encoding.Registry
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	dashboardHandler *dashboardHandler
	predictHandler   *PredictHandler
	encodeHandler    *EncodeHandler
	evaluateHandler  *EvaluateHandler
	historyHandler   *HistoryHandler
	skinsHandler     *SkinsHandler
}

// NewServer creates a new API server with all handlers. A non-positive
// maxUploadBytes falls back to 32 MiB.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		dashboardHandler: newDashboardHandler(),
		predictHandler:   NewPredictHandler(deps),
		encodeHandler:    NewEncodeHandler(deps),
		evaluateHandler:  NewEvaluateHandler(deps, maxUploadBytes),
		historyHandler:   NewHistoryHandler(deps, maxHistoryLimit),
		skinsHandler:     NewSkinsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/api/encode", MetricsMiddleware(s.encodeHandler.HandleEncode, "encode"))
	mux.HandleFunc("/api/evaluate", MetricsMiddleware(s.evaluateHandler.HandleEvaluate, "evaluate"))
	mux.HandleFunc("/api/evaluations", MetricsMiddleware(s.historyHandler.HandleList, "evaluations"))
	mux.HandleFunc("/api/evaluations/{id}", MetricsMiddleware(s.historyHandler.HandleGet, "evaluation"))
	mux.HandleFunc("/api/skins", MetricsMiddleware(s.skinsHandler.HandleList, "skins"))
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status from err and adds the offending fields of
// record and label errors.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Code: code, Message: err.Error()}
	resp.Fields = failedFields(err)
	writeJSON(w, status, resp)
}
