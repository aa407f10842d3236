package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/app"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/ingest"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
)

const (
	maxBatchSize = 100
	maxBodyBytes = 8 << 20
)

// Answerer is the query side of a RetrievalContext.
type Answerer interface {
	Answer(ctx context.Context, question string) (app.Answer, error)
	Retrieve(ctx context.Context, question string) domain.Bundle
}

// Ingester is the write side. ingest.Coordinator satisfies it.
type Ingester interface {
	IngestAll(ctx context.Context, recs []domain.Record) ingest.Report
}

// API serves the question and ingestion endpoints.
type API struct {
	answerer Answerer
	ingester Ingester
	health   *HealthServer
	logger   *zap.Logger
}

// NewAPI creates the API. A nil health server disables the health routes.
func NewAPI(answerer Answerer, ingester Ingester, health *HealthServer, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{answerer: answerer, ingester: ingester, health: health, logger: logger}
}

// Router builds the chi router with logging, recovery and metrics
// middleware.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(a.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(a.logger))
	r.Use(metrics.Middleware())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/answer", a.handleAnswer)
		r.Post("/retrieve", a.handleRetrieve)
		r.Post("/ingest", a.handleIngest)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if a.health != nil {
		a.health.Mount(r)
	}
	return r
}

type questionRequest struct {
	Question string `json:"question"`
}

type contextResponse struct {
	Passages     []domain.Passage  `json:"passages"`
	Degraded     bool              `json:"degraded"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

type answerResponse struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Model    string          `json:"model"`
	Context  contextResponse `json:"context"`
}

type ingestRequest struct {
	Records []struct {
		ID       string            `json:"id"`
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata,omitempty"`
	} `json:"records"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toContext(b domain.Bundle) contextResponse {
	return contextResponse{Passages: b.Passages, Degraded: b.Degraded(), SourceErrors: b.ErrorStrings()}
}

func (a *API) handleAnswer(w http.ResponseWriter, r *http.Request) {
	q, ok := a.decodeQuestion(w, r)
	if !ok {
		return
	}
	ans, err := a.answerer.Answer(r.Context(), q)
	if err != nil {
		a.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Question: ans.Question,
		Answer:   ans.Text,
		Model:    ans.Model,
		Context:  toContext(ans.Bundle),
	})
}

func (a *API) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q, ok := a.decodeQuestion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toContext(a.answerer.Retrieve(r.Context(), q)))
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "records must not be empty")
		return
	}
	if len(req.Records) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("at most %d records per request", maxBatchSize))
		return
	}

	recs := make([]domain.Record, len(req.Records))
	for i, rr := range req.Records {
		recs[i] = domain.NewRecord(rr.ID, rr.Text, rr.Metadata)
	}
	writeJSON(w, http.StatusOK, a.ingester.IngestAll(r.Context(), recs))
}

func (a *API) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req questionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return "", false
	}
	return q, true
}

func (a *API) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNoAnswer):
		a.logger.Warn("model returned no answer", zap.Error(err))
		writeError(w, http.StatusBadGateway, "no_answer", "the model returned no answer")
	case errors.Is(err, domain.ErrModelUnavailable):
		a.logger.Warn("model unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		a.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
