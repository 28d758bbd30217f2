package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/adfatigue-monitor/internal/fatigue"
	"github.com/ignite/adfatigue-monitor/internal/repository/postgres"
)

const (
	// FullScanChunkSize is the concurrency group size for a whole-account
	// scan; BatchChunkSize is the smaller size for explicit batch requests.
	FullScanChunkSize = 10
	BatchChunkSize    = 5

	// DefaultGroupDelay paces groups so the sample store is never hammered
	// by back-to-back fan-outs.
	DefaultGroupDelay = 2 * time.Second

	DefaultLookbackDays = 21
)

// Store is the persistence boundary the batch pipeline runs against.
type Store interface {
	FetchSamples(ctx context.Context, accountID, adID string, lookbackDays int) ([]fatigue.MetricSample, error)
	ListActiveAdIDs(ctx context.Context, accountID string) ([]string, error)
	UpsertAnalysis(ctx context.Context, rec postgres.AnalysisRecord) error
	AppendTrendPoints(ctx context.Context, points []postgres.TrendPoint) error
	InsertAlert(ctx context.Context, accountID string, alert fatigue.UrgentAlert) (bool, error)
	StartJobLog(ctx context.Context, accountID string, metadata map[string]interface{}) (uuid.UUID, error)
	FinishJobLog(ctx context.Context, id uuid.UUID, status string, processed, errors, alerts int) error
}

// Summary aggregates a batch run's outcome.
type Summary struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Alerts    int `json:"alerts"`
}

// BatchAnalyzer scans an account's ads in fixed-size concurrency groups,
// isolating per-ad failures so one broken ad never aborts the run.
type BatchAnalyzer struct {
	store        Store
	lookbackDays int
	groupDelay   time.Duration
	context      *fatigue.AdjustmentContext
}

// NewBatchAnalyzer creates a batch analyzer over a store.
func NewBatchAnalyzer(store Store) *BatchAnalyzer {
	return &BatchAnalyzer{
		store:        store,
		lookbackDays: DefaultLookbackDays,
		groupDelay:   DefaultGroupDelay,
	}
}

// SetLookbackDays overrides the sample window length.
func (b *BatchAnalyzer) SetLookbackDays(days int) {
	if days > 0 {
		b.lookbackDays = days
	}
}

// SetGroupDelay overrides the inter-group pacing delay.
func (b *BatchAnalyzer) SetGroupDelay(d time.Duration) {
	b.groupDelay = d
}

// SetContext applies an account-level adjustment context to every scored ad.
func (b *BatchAnalyzer) SetContext(ctx *fatigue.AdjustmentContext) {
	b.context = ctx
}

// RunAccountScan analyzes every active ad in an account and returns the
// summary plus the urgent alerts that were actually raised (post-dedup).
func (b *BatchAnalyzer) RunAccountScan(ctx context.Context, accountID string) (Summary, []fatigue.UrgentAlert, error) {
	adIDs, err := b.store.ListActiveAdIDs(ctx, accountID)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("list active ads for account %s: %w", accountID, err)
	}
	return b.run(ctx, accountID, adIDs, FullScanChunkSize, "account_scan")
}

// RunBatch analyzes an explicit set of ads with the smaller group size used
// for on-demand requests.
func (b *BatchAnalyzer) RunBatch(ctx context.Context, accountID string, adIDs []string) (Summary, []fatigue.UrgentAlert, error) {
	return b.run(ctx, accountID, adIDs, BatchChunkSize, "batch_request")
}

// adResult is what one ad's evaluation hands back to the orchestrator. Each
// task returns its own alert list; the orchestrator concatenates after the
// group settles, so no shared accumulator is written concurrently.
type adResult struct {
	adID   string
	alerts []fatigue.UrgentAlert
	trend  *postgres.TrendPoint
	err    error
}

func (b *BatchAnalyzer) run(ctx context.Context, accountID string, adIDs []string, chunkSize int, trigger string) (Summary, []fatigue.UrgentAlert, error) {
	adIDs = uniqueIDs(adIDs)

	jobID, err := b.store.StartJobLog(ctx, accountID, map[string]interface{}{
		"trigger":    trigger,
		"ad_count":   len(adIDs),
		"chunk_size": chunkSize,
	})
	if err != nil {
		return Summary{}, nil, fmt.Errorf("start job log: %w", err)
	}

	start := time.Now()
	log.Printf("[batch] account %s: analyzing %d ads in groups of %d", accountID, len(adIDs), chunkSize)

	var (
		summary Summary
		alerts  []fatigue.UrgentAlert
		trends  []postgres.TrendPoint
	)

	groups := chunkIDs(adIDs, chunkSize)
	for gi, group := range groups {
		// Cancellation stops scheduling new groups; the in-flight group
		// below always drains before we return.
		if ctx.Err() != nil {
			b.finishJob(jobID, "cancelled", summary)
			return summary, alerts, ctx.Err()
		}

		results := make([]adResult, len(group))
		var wg sync.WaitGroup
		for i, adID := range group {
			wg.Add(1)
			go func(i int, adID string) {
				defer wg.Done()
				results[i] = b.analyzeAd(ctx, accountID, adID)
			}(i, adID)
		}
		wg.Wait()

		for _, r := range results {
			if r.err != nil {
				summary.Errors++
				log.Printf("[batch] account %s ad %s: %v", accountID, r.adID, r.err)
				continue
			}
			summary.Processed++
			summary.Alerts += len(r.alerts)
			alerts = append(alerts, r.alerts...)
			if r.trend != nil {
				trends = append(trends, *r.trend)
			}
		}

		if gi < len(groups)-1 && b.groupDelay > 0 {
			select {
			case <-ctx.Done():
				b.finishJob(jobID, "cancelled", summary)
				return summary, alerts, ctx.Err()
			case <-time.After(b.groupDelay):
			}
		}
	}

	if err := b.store.AppendTrendPoints(ctx, trends); err != nil {
		log.Printf("[batch] account %s: trend append failed: %v", accountID, err)
	}

	b.finishJob(jobID, "completed", summary)
	log.Printf("[batch] account %s: done in %v (processed=%d errors=%d alerts=%d)",
		accountID, time.Since(start).Round(time.Millisecond), summary.Processed, summary.Errors, summary.Alerts)
	return summary, alerts, nil
}

// analyzeAd evaluates a single ad end to end. Any failure is contained in
// the returned result; it never panics the group.
func (b *BatchAnalyzer) analyzeAd(ctx context.Context, accountID, adID string) (res adResult) {
	res.adID = adID
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic analyzing ad %s: %v", adID, r)
		}
	}()

	samples, err := b.store.FetchSamples(ctx, accountID, adID, b.lookbackDays)
	if err != nil {
		res.err = err
		return res
	}

	derived, err := fatigue.DeriveMetrics(samples)
	if err != nil {
		// Too little data is a reportable state, not a batch failure.
		log.Printf("[batch] account %s ad %s: %v", accountID, adID, err)
		return res
	}

	latest := samples[len(samples)-1]
	score := fatigue.ScoreDerived(derived, fatigue.ScoreOptions{
		Context:           b.context,
		VideoFatigueScore: fatigue.VideoFatigueFromWatches(latest),
	})

	now := time.Now().UTC()
	rec := postgres.AnalysisRecord{
		AccountID:      accountID,
		AdID:           adID,
		Score:          *score,
		Derived:        derived,
		Recommendation: fatigue.Recommend(score),
		WindowStart:    samples[0].Date,
		WindowEnd:      latest.Date,
		AnalyzedAt:     now,
	}
	if err := b.store.UpsertAnalysis(ctx, rec); err != nil {
		res.err = err
		return res
	}

	res.trend = &postgres.TrendPoint{
		AccountID:  accountID,
		AdID:       adID,
		TotalScore: score.Total,
		Status:     score.Status,
		RecordedAt: now,
	}

	for _, alert := range fatigue.EvaluateUrgentAlerts(adID, derived) {
		inserted, err := b.store.InsertAlert(ctx, accountID, alert)
		if err != nil {
			log.Printf("[batch] account %s ad %s: alert %s not persisted: %v", accountID, adID, alert.Type, err)
			continue
		}
		if inserted {
			res.alerts = append(res.alerts, alert)
		}
	}
	return res
}

func (b *BatchAnalyzer) finishJob(jobID uuid.UUID, status string, s Summary) {
	// Job-log completion must not inherit a cancelled request context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.FinishJobLog(ctx, jobID, status, s.Processed, s.Errors, s.Alerts); err != nil {
		log.Printf("[batch] finish job log: %v", err)
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func chunkIDs(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
