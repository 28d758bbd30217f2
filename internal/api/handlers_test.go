package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/adfatigue-monitor/internal/config"
	"github.com/ignite/adfatigue-monitor/internal/fatigue"
	"github.com/ignite/adfatigue-monitor/internal/repository/postgres"
	"github.com/ignite/adfatigue-monitor/internal/worker"
)

type stubReader struct {
	rec *postgres.AnalysisRecord
	err error
}

func (s *stubReader) GetAnalysis(context.Context, string, string) (*postgres.AnalysisRecord, error) {
	return s.rec, s.err
}

type stubBatch struct {
	summary   worker.Summary
	alerts    []fatigue.UrgentAlert
	err       error
	gotAdIDs  []string
	gotScan   string
	batchRuns int
}

func (s *stubBatch) RunAccountScan(_ context.Context, accountID string) (worker.Summary, []fatigue.UrgentAlert, error) {
	s.gotScan = accountID
	return s.summary, s.alerts, s.err
}

func (s *stubBatch) RunBatch(_ context.Context, _ string, adIDs []string) (worker.Summary, []fatigue.UrgentAlert, error) {
	s.batchRuns++
	s.gotAdIDs = adIDs
	return s.summary, s.alerts, s.err
}

func newTestRouter(reader AnalysisReader, batch BatchRunner) http.Handler {
	return NewServer(config.ServerConfig{}, NewHandlers(reader, batch, nil)).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func scoringSamples(n int) []fatigue.MetricSample {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]fatigue.MetricSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, fatigue.MetricSample{
			Date:        base.AddDate(0, 0, i),
			Impressions: 10000,
			Clicks:      int64(250 - i*20),
			Reach:       int64(8000 + i*200),
			Frequency:   1.5 + float64(i)*0.2,
			CTR:         2.5 - float64(i)*0.2,
			CPM:         10.0 + float64(i)*1.5,
			Spend:       100,
		})
	}
	return samples
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&stubReader{}, &stubBatch{})

	rr := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "not_configured", body["database"])
}

func TestComputeScore(t *testing.T) {
	router := newTestRouter(&stubReader{}, &stubBatch{})

	t.Run("scores a full window", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/api/fatigue/score",
			map[string]interface{}{"samples": scoringSamples(7)})
		require.Equal(t, http.StatusOK, rr.Code)

		var score fatigue.FatigueScore
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &score))
		assert.Equal(t, fatigue.LevelCritical, score.Status)
		assert.Equal(t, fatigue.FactorAlgorithm, score.PrimaryIssue)
	})

	t.Run("insufficient data is 422 with sample count", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/api/fatigue/score",
			map[string]interface{}{"samples": scoringSamples(2)})
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "insufficient_data", body.Error)
		require.NotNil(t, body.DataPoints)
		assert.Equal(t, 2, *body.DataPoints)
	})

	t.Run("empty window is no_data", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, "/api/fatigue/score",
			map[string]interface{}{"samples": []fatigue.MetricSample{}})
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "no_data", body.Error)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/fatigue/score", strings.NewReader("{nope"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAnalyzeCreative(t *testing.T) {
	router := newTestRouter(&stubReader{}, &stubBatch{})

	samples := []map[string]interface{}{}
	for i, ctr := range []float64{3.0, 2.7, 2.4, 2.1, 1.8, 1.5, 1.2} {
		samples = append(samples, map[string]interface{}{
			"date":      fmt.Sprintf("2026-08-%02dT00:00:00Z", i+1),
			"ctr":       ctr,
			"frequency": 2.0 + float64(i)*0.3,
		})
	}

	rr := doJSON(t, router, http.MethodPost, "/api/fatigue/creative",
		map[string]interface{}{"samples": samples})
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "replace", body["recommended_action"])
	assert.Equal(t, float64(80), body["fatigue_score"])
}

func TestGetThresholds(t *testing.T) {
	router := newTestRouter(&stubReader{}, &stubBatch{})

	t.Run("contextual adjustments applied", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/api/fatigue/thresholds?industry=b2b_saas", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var body fatigue.ContextualThresholds
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.InDelta(t, 4.9, body.Thresholds[fatigue.MetricFrequency].Critical, 0.001)
		assert.NotEmpty(t, body.Adjustments)
	})

	t.Run("invalid price rejected", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/api/fatigue/thresholds?product_price=cheap", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestScanAccount(t *testing.T) {
	batch := &stubBatch{
		summary: worker.Summary{Processed: 4, Alerts: 1},
		alerts: []fatigue.UrgentAlert{{
			Type: fatigue.AlertFrequencyExceeded, AdID: "ad-1",
			Action: fatigue.ActionFrequencyCap, Severity: fatigue.SeverityHigh,
		}},
	}
	router := newTestRouter(&stubReader{}, batch)

	rr := doJSON(t, router, http.MethodPost, "/api/fatigue/accounts/acct-1/scan", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "acct-1", batch.gotScan)

	var body struct {
		Processed    int                   `json:"processed"`
		UrgentAlerts []fatigue.UrgentAlert `json:"urgent_alerts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Processed)
	require.Len(t, body.UrgentAlerts, 1)
	assert.Equal(t, fatigue.AlertFrequencyExceeded, body.UrgentAlerts[0].Type)
}

func TestRunBatchEndpoint(t *testing.T) {
	t.Run("forwards ad ids", func(t *testing.T) {
		batch := &stubBatch{summary: worker.Summary{Processed: 2}}
		router := newTestRouter(&stubReader{}, batch)

		rr := doJSON(t, router, http.MethodPost, "/api/fatigue/accounts/acct-1/batch",
			map[string]interface{}{"ad_ids": []string{"ad-1", "ad-2"}})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"ad-1", "ad-2"}, batch.gotAdIDs)
	})

	t.Run("empty ad list rejected", func(t *testing.T) {
		batch := &stubBatch{}
		router := newTestRouter(&stubReader{}, batch)

		rr := doJSON(t, router, http.MethodPost, "/api/fatigue/accounts/acct-1/batch",
			map[string]interface{}{"ad_ids": []string{}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, batch.batchRuns)
	})
}

func TestGetAdAnalysis(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	rec := &postgres.AnalysisRecord{
		AccountID: "acct-1",
		AdID:      "ad-1",
		Score: fatigue.FatigueScore{
			Total:        78,
			Breakdown:    fatigue.Breakdown{Audience: 70, Creative: 70, Algorithm: 100},
			PrimaryIssue: fatigue.FactorAlgorithm,
			Status:       fatigue.LevelCritical,
		},
		Derived:        fatigue.DerivedMetrics{Frequency: 2.7, CTRDeclineRate: 0.35},
		Recommendation: "rebuild_campaign",
		WindowStart:    now.AddDate(0, 0, -21),
		WindowEnd:      now,
		AnalyzedAt:     now,
	}

	t.Run("stored record renders unchanged", func(t *testing.T) {
		router := newTestRouter(&stubReader{rec: rec}, &stubBatch{})

		rr := doJSON(t, router, http.MethodGet, "/api/fatigue/accounts/acct-1/ads/ad-1", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var view adAnalysisView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
		assert.Equal(t, rec.Score, view.Score)
		assert.Equal(t, rec.Derived, view.Metrics)
		assert.Equal(t, rec.Recommendation, view.Recommendation)
	})

	t.Run("unknown ad is 404", func(t *testing.T) {
		router := newTestRouter(&stubReader{}, &stubBatch{})

		rr := doJSON(t, router, http.MethodGet, "/api/fatigue/accounts/acct-1/ads/ad-x", nil)
		require.Equal(t, http.StatusNotFound, rr.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body.Error)
	})
}
