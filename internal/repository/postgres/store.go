// Package postgres implements the sample source and result sink for the
// fatigue engine on PostgreSQL. Raw samples are read-only here; analysis
// records upsert per (account, ad), trends and alerts append only.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adfatigue-monitor/internal/fatigue"
)

// DefaultAlertCooldown suppresses duplicate alerts of the same type for the
// same ad within this window.
const DefaultAlertCooldown = 24 * time.Hour

// Store reads metric samples and persists analysis results.
type Store struct {
	db            *sql.DB
	redisClient   *redis.Client // optional; nil falls back to SQL dedup
	alertCooldown time.Duration
}

// NewStore creates a store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, alertCooldown: DefaultAlertCooldown}
}

// SetRedisClient enables Redis-backed alert deduplication. Without it the
// store falls back to a SQL existence check.
func (s *Store) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// SetAlertCooldown overrides the alert suppression window.
func (s *Store) SetAlertCooldown(d time.Duration) {
	if d > 0 {
		s.alertCooldown = d
	}
}

// FetchSamples returns an ad's daily samples for the lookback window,
// ordered by date ascending.
func (s *Store) FetchSamples(ctx context.Context, accountID, adID string, lookbackDays int) ([]fatigue.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_date, impressions, clicks, reach, frequency, ctr, cpm, spend,
			hide_clicks, report_spam_clicks, unlike_clicks,
			video_p25_watches, video_p50_watches, video_p75_watches, video_p100_watches
		FROM ad_metric_samples
		WHERE account_id = $1 AND ad_id = $2
			AND sample_date >= CURRENT_DATE - $3::int
		ORDER BY sample_date ASC`,
		accountID, adID, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetch samples for ad %s: %w", adID, err)
	}
	defer rows.Close()

	var samples []fatigue.MetricSample
	for rows.Next() {
		var m fatigue.MetricSample
		if err := rows.Scan(&m.Date, &m.Impressions, &m.Clicks, &m.Reach,
			&m.Frequency, &m.CTR, &m.CPM, &m.Spend,
			&m.HideClicks, &m.ReportSpamClicks, &m.UnlikeClicks,
			&m.VideoP25Watches, &m.VideoP50Watches, &m.VideoP75Watches, &m.VideoP100Watches); err != nil {
			return nil, fmt.Errorf("scan sample for ad %s: %w", adID, err)
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// FetchLatestSample returns the most recent sample for an ad, or nil when
// the ad has no recorded samples.
func (s *Store) FetchLatestSample(ctx context.Context, accountID, adID string) (*fatigue.MetricSample, error) {
	var m fatigue.MetricSample
	err := s.db.QueryRowContext(ctx,
		`SELECT sample_date, impressions, clicks, reach, frequency, ctr, cpm, spend,
			hide_clicks, report_spam_clicks, unlike_clicks,
			video_p25_watches, video_p50_watches, video_p75_watches, video_p100_watches
		FROM ad_metric_samples
		WHERE account_id = $1 AND ad_id = $2
		ORDER BY sample_date DESC
		LIMIT 1`,
		accountID, adID,
	).Scan(&m.Date, &m.Impressions, &m.Clicks, &m.Reach,
		&m.Frequency, &m.CTR, &m.CPM, &m.Spend,
		&m.HideClicks, &m.ReportSpamClicks, &m.UnlikeClicks,
		&m.VideoP25Watches, &m.VideoP50Watches, &m.VideoP75Watches, &m.VideoP100Watches)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch latest sample for ad %s: %w", adID, err)
	}
	return &m, nil
}

// ListActiveAdIDs returns the distinct active ad ids, scoped to an account
// when accountID is non-empty.
func (s *Store) ListActiveAdIDs(ctx context.Context, accountID string) ([]string, error) {
	query := `SELECT DISTINCT ad_id FROM ads WHERE status = 'active'`
	args := []interface{}{}
	if accountID != "" {
		query += ` AND account_id = $1`
		args = append(args, accountID)
	}
	query += ` ORDER BY ad_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAccountIDs returns the distinct accounts that own active ads.
func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT account_id FROM ads WHERE status = 'active' ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AnalysisRecord is the durable snapshot of one ad's assessment. Keyed by
// (account, ad) and replaced each run; history lives in the trend table.
type AnalysisRecord struct {
	AccountID      string
	AdID           string
	Score          fatigue.FatigueScore
	Derived        fatigue.DerivedMetrics
	Recommendation string
	WindowStart    time.Time
	WindowEnd      time.Time
	AnalyzedAt     time.Time
}

// UpsertAnalysis replaces the analysis record for an ad.
func (s *Store) UpsertAnalysis(ctx context.Context, rec AnalysisRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ad_fatigue_analyses
		(account_id, ad_id, total_score, audience_score, creative_score, algorithm_score,
		 primary_issue, status, first_time_ratio, ctr_decline_rate, cpm_increase_rate,
		 frequency, negative_rate, recommendation, window_start, window_end, analyzed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (account_id, ad_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			audience_score = EXCLUDED.audience_score,
			creative_score = EXCLUDED.creative_score,
			algorithm_score = EXCLUDED.algorithm_score,
			primary_issue = EXCLUDED.primary_issue,
			status = EXCLUDED.status,
			first_time_ratio = EXCLUDED.first_time_ratio,
			ctr_decline_rate = EXCLUDED.ctr_decline_rate,
			cpm_increase_rate = EXCLUDED.cpm_increase_rate,
			frequency = EXCLUDED.frequency,
			negative_rate = EXCLUDED.negative_rate,
			recommendation = EXCLUDED.recommendation,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			analyzed_at = EXCLUDED.analyzed_at`,
		rec.AccountID, rec.AdID,
		rec.Score.Total, rec.Score.Breakdown.Audience, rec.Score.Breakdown.Creative, rec.Score.Breakdown.Algorithm,
		string(rec.Score.PrimaryIssue), string(rec.Score.Status),
		rec.Derived.FirstTimeRatio, rec.Derived.CTRDeclineRate, rec.Derived.CPMIncreaseRate,
		rec.Derived.Frequency, rec.Derived.NegativeRate,
		rec.Recommendation, rec.WindowStart, rec.WindowEnd, rec.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("upsert analysis for ad %s: %w", rec.AdID, err)
	}
	return nil
}

// GetAnalysis reads back the stored analysis record for an ad, or nil when
// the ad has not been analyzed yet.
func (s *Store) GetAnalysis(ctx context.Context, accountID, adID string) (*AnalysisRecord, error) {
	rec := AnalysisRecord{AccountID: accountID, AdID: adID}
	var primaryIssue, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT total_score, audience_score, creative_score, algorithm_score,
			primary_issue, status, first_time_ratio, ctr_decline_rate, cpm_increase_rate,
			frequency, negative_rate, recommendation, window_start, window_end, analyzed_at
		FROM ad_fatigue_analyses
		WHERE account_id = $1 AND ad_id = $2`,
		accountID, adID,
	).Scan(&rec.Score.Total, &rec.Score.Breakdown.Audience, &rec.Score.Breakdown.Creative,
		&rec.Score.Breakdown.Algorithm, &primaryIssue, &status,
		&rec.Derived.FirstTimeRatio, &rec.Derived.CTRDeclineRate, &rec.Derived.CPMIncreaseRate,
		&rec.Derived.Frequency, &rec.Derived.NegativeRate,
		&rec.Recommendation, &rec.WindowStart, &rec.WindowEnd, &rec.AnalyzedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis for ad %s: %w", adID, err)
	}
	rec.Score.PrimaryIssue = fatigue.Factor(primaryIssue)
	rec.Score.Status = fatigue.Level(status)
	return &rec, nil
}

// TrendPoint is one append-only history row for the score trend table.
type TrendPoint struct {
	AccountID  string
	AdID       string
	TotalScore int
	Status     fatigue.Level
	RecordedAt time.Time
}

// AppendTrendPoints bulk-appends trend rows using COPY, one row per analyzed
// ad per batch run.
func (s *Store) AppendTrendPoints(ctx context.Context, points []TrendPoint) error {
	if len(points) == 0 {
		return nil
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trend append: %w", err)
	}
	defer txn.Rollback()

	stmt, err := txn.Prepare(pq.CopyIn(
		"ad_fatigue_trends",
		"id", "account_id", "ad_id", "total_score", "status", "recorded_at",
	))
	if err != nil {
		return fmt.Errorf("prepare trend COPY: %w", err)
	}

	for _, p := range points {
		if _, err := stmt.Exec(uuid.New(), p.AccountID, p.AdID, p.TotalScore, string(p.Status), p.RecordedAt); err != nil {
			log.Printf("[store] trend append skipped for ad %s: %v", p.AdID, err)
		}
	}

	if _, err := stmt.Exec(); err != nil {
		return fmt.Errorf("flush trend COPY: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close trend COPY: %w", err)
	}
	return txn.Commit()
}

// InsertAlert appends an urgent alert row unless an identical-typed alert
// for the same ad fired within the cooldown window. Returns whether a row
// was written. Dedup prefers Redis (SetNX with TTL, cheap and cross-host);
// without Redis it falls back to an existence check in the alert table.
func (s *Store) InsertAlert(ctx context.Context, accountID string, alert fatigue.UrgentAlert) (bool, error) {
	fresh, err := s.claimAlertSlot(ctx, accountID, alert)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	metricsJSON, err := json.Marshal(alert.Metrics)
	if err != nil {
		metricsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ad_fatigue_alerts
		(id, account_id, ad_id, alert_type, action, severity, metrics, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		uuid.New(), accountID, alert.AdID,
		string(alert.Type), string(alert.Action), string(alert.Severity), metricsJSON)
	if err != nil {
		return false, fmt.Errorf("insert alert %s for ad %s: %w", alert.Type, alert.AdID, err)
	}
	return true, nil
}

func (s *Store) claimAlertSlot(ctx context.Context, accountID string, alert fatigue.UrgentAlert) (bool, error) {
	if s.redisClient != nil {
		key := fmt.Sprintf("alert:%s:%s:%s", accountID, alert.AdID, alert.Type)
		ok, err := s.redisClient.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.alertCooldown).Result()
		if err == nil {
			return ok, nil
		}
		log.Printf("[store] redis alert dedup unavailable, falling back to SQL: %v", err)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ad_fatigue_alerts
			WHERE account_id = $1 AND ad_id = $2 AND alert_type = $3
				AND created_at > NOW() - $4::interval
		)`,
		accountID, alert.AdID, string(alert.Type),
		fmt.Sprintf("%d seconds", int(s.alertCooldown.Seconds()))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alert dedup check for ad %s: %w", alert.AdID, err)
	}
	return !exists, nil
}

// JobLog records one batch run for operational visibility.
type JobLog struct {
	ID        uuid.UUID
	AccountID string
	StartedAt time.Time
	Status    string
	Processed int
	Errors    int
	Alerts    int
	Metadata  map[string]interface{}
}

// StartJobLog inserts a running job-log row and returns its id.
func (s *Store) StartJobLog(ctx context.Context, accountID string, metadata map[string]interface{}) (uuid.UUID, error) {
	id := uuid.New()
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		metaJSON = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fatigue_job_logs (id, account_id, started_at, status, metadata)
		VALUES ($1,$2,NOW(),'running',$3)`,
		id, accountID, metaJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start job log: %w", err)
	}
	return id, nil
}

// FinishJobLog marks a job-log row finished with its outcome counts.
func (s *Store) FinishJobLog(ctx context.Context, id uuid.UUID, status string, processed, errors, alerts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE fatigue_job_logs
		SET status = $2, processed = $3, errors = $4, alerts = $5, finished_at = NOW()
		WHERE id = $1`,
		id, status, processed, errors, alerts)
	if err != nil {
		return fmt.Errorf("finish job log %s: %w", id, err)
	}
	return nil
}
