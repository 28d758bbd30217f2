package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/adfatigue-monitor/internal/creative"
	"github.com/ignite/adfatigue-monitor/internal/fatigue"
	"github.com/ignite/adfatigue-monitor/internal/pkg/logger"
	"github.com/ignite/adfatigue-monitor/internal/repository/postgres"
	"github.com/ignite/adfatigue-monitor/internal/worker"
)

// AnalysisReader reads stored analysis records for the dashboard views.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, accountID, adID string) (*postgres.AnalysisRecord, error)
}

// BatchRunner triggers batch evaluation runs.
type BatchRunner interface {
	RunAccountScan(ctx context.Context, accountID string) (worker.Summary, []fatigue.UrgentAlert, error)
	RunBatch(ctx context.Context, accountID string, adIDs []string) (worker.Summary, []fatigue.UrgentAlert, error)
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	reader    AnalysisReader
	batch     BatchRunner
	db        *sql.DB
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(reader AnalysisReader, batch BatchRunner, db *sql.DB) *Handlers {
	return &Handlers{
		reader:    reader,
		batch:     batch,
		db:        db,
		startTime: time.Now(),
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}

// errorBody is the structured failure payload. The presentation layer never
// sees a raw error string without a machine-readable discriminant.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	DataPoints *int   `json:"data_points,omitempty"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: code, Message: message})
}

// HealthCheck reports daemon liveness and database reachability.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "up"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			dbStatus = "down"
		}
	} else {
		dbStatus = "not_configured"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"uptime":   time.Since(h.startTime).Round(time.Second).String(),
	})
}

// scoreRequest is the on-demand composite scoring payload.
type scoreRequest struct {
	Samples           []fatigue.MetricSample     `json:"samples"`
	Context           *fatigue.AdjustmentContext `json:"context,omitempty"`
	VideoFatigueScore float64                    `json:"video_fatigue_score,omitempty"`
	ContentValueScore float64                    `json:"content_value_score,omitempty"`
}

// ComputeScore runs the composite scorer on caller-supplied samples.
//
//	POST /api/fatigue/score
func (h *Handlers) ComputeScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	score, err := fatigue.ComputeFatigueScore(req.Samples, fatigue.ScoreOptions{
		Context:           req.Context,
		VideoFatigueScore: req.VideoFatigueScore,
		ContentValueScore: req.ContentValueScore,
	})
	if err != nil {
		var insufficient *fatigue.InsufficientDataError
		if errors.As(err, &insufficient) {
			n := insufficient.DataPoints
			code := "insufficient_data"
			if n == 0 {
				code = "no_data"
			}
			respondJSON(w, http.StatusUnprocessableEntity, errorBody{
				Error:      code,
				Message:    insufficient.Error(),
				DataPoints: &n,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, score)
}

// AnalyzeCreative runs the decay analyzer on a creative's series.
//
//	POST /api/fatigue/creative
func (h *Handlers) AnalyzeCreative(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Samples []creative.Sample `json:"samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	respondJSON(w, http.StatusOK, creative.Analyze(req.Samples))
}

// GetThresholds returns the context-adjusted catalog plus its audit trail.
//
//	GET /api/fatigue/thresholds?industry=&product_price=&campaign_goal=&season=
func (h *Handlers) GetThresholds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := fatigue.AdjustmentContext{
		Industry:     q.Get("industry"),
		CampaignGoal: q.Get("campaign_goal"),
		Season:       q.Get("season"),
	}
	if raw := q.Get("product_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "product_price must be a non-negative number")
			return
		}
		ctx.ProductPrice = price
	}

	respondJSON(w, http.StatusOK, fatigue.GetContextualThresholds(ctx))
}

// scanResponse is the batch-run result payload.
type scanResponse struct {
	worker.Summary
	UrgentAlerts []fatigue.UrgentAlert `json:"urgent_alerts"`
}

// ScanAccount runs the full-account batch analysis synchronously.
//
//	POST /api/fatigue/accounts/{accountID}/scan
func (h *Handlers) ScanAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	summary, alerts, err := h.batch.RunAccountScan(r.Context(), accountID)
	if err != nil {
		logger.Error("account scan failed", "account", accountID, "error", err)
		respondError(w, http.StatusInternalServerError, "scan_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, scanResponse{Summary: summary, UrgentAlerts: alerts})
}

// RunBatch analyzes an explicit list of ads.
//
//	POST /api/fatigue/accounts/{accountID}/batch
func (h *Handlers) RunBatch(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		AdIDs []string `json:"ad_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.AdIDs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "ad_ids must not be empty")
		return
	}

	summary, alerts, err := h.batch.RunBatch(r.Context(), accountID, req.AdIDs)
	if err != nil {
		logger.Error("batch run failed", "account", accountID, "error", err)
		respondError(w, http.StatusInternalServerError, "batch_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, scanResponse{Summary: summary, UrgentAlerts: alerts})
}

// adAnalysisView is the dashboard projection of a stored analysis record.
// The score fields pass through unchanged so a stored record renders exactly
// the values that were computed.
type adAnalysisView struct {
	AccountID      string                 `json:"account_id"`
	AdID           string                 `json:"ad_id"`
	Score          fatigue.FatigueScore   `json:"score"`
	Metrics        fatigue.DerivedMetrics `json:"metrics"`
	Recommendation string                 `json:"recommendation"`
	WindowStart    time.Time              `json:"window_start"`
	WindowEnd      time.Time              `json:"window_end"`
	AnalyzedAt     time.Time              `json:"analyzed_at"`
}

func recordToView(rec *postgres.AnalysisRecord) adAnalysisView {
	return adAnalysisView{
		AccountID:      rec.AccountID,
		AdID:           rec.AdID,
		Score:          rec.Score,
		Metrics:        rec.Derived,
		Recommendation: rec.Recommendation,
		WindowStart:    rec.WindowStart,
		WindowEnd:      rec.WindowEnd,
		AnalyzedAt:     rec.AnalyzedAt,
	}
}

// GetAdAnalysis returns the latest stored assessment for one ad.
//
//	GET /api/fatigue/accounts/{accountID}/ads/{adID}
func (h *Handlers) GetAdAnalysis(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	adID := chi.URLParam(r, "adID")

	rec, err := h.reader.GetAnalysis(r.Context(), accountID, adID)
	if err != nil {
		logger.Error("read analysis failed", "account", accountID, "ad", adID, "error", err)
		respondError(w, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "not_found", "ad has not been analyzed yet")
		return
	}
	respondJSON(w, http.StatusOK, recordToView(rec))
}
