package tracking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
)

const trailingWindowDays = 7

// Tracker maintains the per-date upload summaries and flags dates whose
// row volume deviates sharply from the trailing average. Everything here is
// derived state: recomputing a date is idempotent.
type Tracker struct {
	batches   *postgres.BatchRepo
	summaries *postgres.SummaryRepo
	cfg       config.AnalyticsConfig
}

func New(store *postgres.Store, cfg config.AnalyticsConfig) *Tracker {
	return &Tracker{batches: store.Batches, summaries: store.Summaries, cfg: cfg}
}

// RecomputeDates refreshes the summary for every metric date a completed
// batch touched.
func (t *Tracker) RecomputeDates(ctx context.Context, dates []time.Time) error {
	for _, date := range dates {
		if err := t.recompute(ctx, date); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) recompute(ctx context.Context, date time.Time) error {
	uploads, rows, bytes, err := t.batches.DailyTotals(ctx, date)
	if err != nil {
		return fmt.Errorf("recompute summary: %w", err)
	}

	summary := &domain.DailyUploadSummary{
		Date:       date,
		Uploads:    uploads,
		TotalRows:  rows,
		TotalBytes: bytes,
	}

	prior, err := t.batches.PriorDailyRows(ctx, date, trailingWindowDays)
	if err != nil {
		return fmt.Errorf("recompute summary: %w", err)
	}

	summary.AvgRows7d, summary.Anomaly, summary.AnomalyReason =
		evaluateAnomaly(float64(rows), prior, t.cfg)

	if summary.Anomaly {
		log.Printf("[tracking] upload anomaly on %s: %s",
			date.Format("2006-01-02"), summary.AnomalyReason)
	}
	return t.summaries.Upsert(ctx, summary)
}

// evaluateAnomaly judges one date's row volume against the trailing
// average. Fewer than the minimum days of history means no baseline to
// judge against, so the date is never flagged.
func evaluateAnomaly(current float64, prior []float64, cfg config.AnalyticsConfig) (avg *float64, anomaly bool, reason string) {
	if len(prior) < cfg.MinAnomalyHistoryDays {
		return nil, false, ""
	}
	mean, err := stats.Mean(prior)
	if err != nil || mean <= 0 {
		return nil, false, ""
	}
	switch {
	case current < cfg.AnomalyDropRatio*mean:
		anomaly = true
		reason = fmt.Sprintf("dropped %.0f%% below 7-day average (%.0f rows vs %.0f avg)",
			(1-current/mean)*100, current, mean)
	case current > cfg.AnomalySpikeRatio*mean:
		anomaly = true
		reason = fmt.Sprintf("spiked %.0f%% above 7-day average (%.0f rows vs %.0f avg)",
			(current/mean-1)*100, current, mean)
	}
	return &mean, anomaly, reason
}

// GetUploadTracking returns the summaries for the trailing window, newest
// first, including anomaly flags.
func (t *Tracker) GetUploadTracking(ctx context.Context, days int) ([]domain.DailyUploadSummary, error) {
	if days < 1 {
		days = 1
	} else if days > 365 {
		days = 365
	}
	return t.summaries.ListRecent(ctx, days)
}
