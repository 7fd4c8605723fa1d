package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
)

const (
	defaultWindowDays = 7
	maxWindowDays     = 90
	topGroupLimit     = 50
)

// Engine computes cross-report funnel/waste metrics over a trailing window.
// The exchange cannot export bid-pipeline metrics and creative/app detail in
// the same report, so the left joins here are the only way to attribute
// funnel inefficiency to specific publishers, sizes, or configs. Everything
// is read-only; it runs safely alongside in-flight imports.
type Engine struct {
	db  *sql.DB
	cfg config.AnalyticsConfig
}

func NewEngine(db *sql.DB, cfg config.AnalyticsConfig) *Engine {
	return &Engine{db: db, cfg: cfg}
}

// ClampWindow normalizes a caller-supplied day count.
func ClampWindow(days int) int {
	if days < 1 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

func cutoff(days int) time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
}

// PublisherWaste groups the funnel by publisher and left-joins the
// performance detail aggregated on (date, country, publisher). Funnel rows
// with no matching detail still appear, with detail metrics at zero.
func (e *Engine) PublisherWaste(ctx context.Context, days int) ([]domain.PublisherWaste, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT f.publisher_id,
		       MAX(f.publisher_name),
		       SUM(f.bid_requests),
		       SUM(f.bids),
		       SUM(f.bids_in_auction),
		       SUM(f.auctions_won),
		       COALESCE(SUM(d.impressions), 0),
		       COALESCE(SUM(d.spend_micros), 0)
		FROM rtb_funnel f
		LEFT JOIN (
			SELECT metric_date, country, publisher_id,
			       SUM(impressions) AS impressions,
			       SUM(spend_micros) AS spend_micros
			FROM rtb_performance
			WHERE metric_date >= $1
			GROUP BY metric_date, country, publisher_id
		) d ON d.metric_date = f.metric_date
		   AND d.country = f.country
		   AND d.publisher_id = f.publisher_id
		WHERE f.metric_date >= $1 AND f.publisher_id <> ''
		GROUP BY f.publisher_id
		ORDER BY SUM(f.bid_requests) DESC, f.publisher_id ASC
		LIMIT $2`, cutoff(days), topGroupLimit)
	if err != nil {
		return nil, fmt.Errorf("query publisher waste: %w", err)
	}
	defer rows.Close()

	out := []domain.PublisherWaste{}
	for rows.Next() {
		var p domain.PublisherWaste
		var bidsInAuction int64
		if err := rows.Scan(&p.PublisherID, &p.PublisherName, &p.BidRequests,
			&p.Bids, &bidsInAuction, &p.AuctionsWon, &p.Impressions,
			&p.SpendMicros); err != nil {
			return nil, fmt.Errorf("scan publisher waste: %w", err)
		}
		p.WasteRate = WasteRate(p.BidRequests, p.AuctionsWon)
		p.WinRate = Ratio(p.AuctionsWon, bidsInAuction)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GeoPerformance groups the funnel by country and left-joins the performance
// detail aggregated on (date, country). Pure geo funnel exports have no
// publisher or platform columns, so this is the join that attributes their
// bid volume to the creative detail served in the same country.
func (e *Engine) GeoPerformance(ctx context.Context, days int) ([]domain.GeoPerformance, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT f.country,
		       SUM(f.bid_requests),
		       SUM(f.reached_queries),
		       SUM(f.bids),
		       SUM(f.bids_in_auction),
		       SUM(f.auctions_won),
		       COALESCE(SUM(d.impressions), 0),
		       COALESCE(SUM(d.spend_micros), 0)
		FROM rtb_funnel f
		LEFT JOIN (
			SELECT metric_date, country,
			       SUM(impressions) AS impressions,
			       SUM(spend_micros) AS spend_micros
			FROM rtb_performance
			WHERE metric_date >= $1
			GROUP BY metric_date, country
		) d ON d.metric_date = f.metric_date
		   AND d.country = f.country
		WHERE f.metric_date >= $1 AND f.country <> ''
		GROUP BY f.country
		ORDER BY SUM(f.auctions_won) DESC, f.country ASC
		LIMIT $2`, cutoff(days), topGroupLimit)
	if err != nil {
		return nil, fmt.Errorf("query geo performance: %w", err)
	}
	defer rows.Close()

	out := []domain.GeoPerformance{}
	for rows.Next() {
		var g domain.GeoPerformance
		var bidsInAuction int64
		if err := rows.Scan(&g.Country, &g.BidRequests, &g.ReachedQueries,
			&g.Bids, &bidsInAuction, &g.AuctionsWon, &g.Impressions,
			&g.SpendMicros); err != nil {
			return nil, fmt.Errorf("scan geo performance: %w", err)
		}
		g.BidRate = Ratio(g.Bids, g.ReachedQueries)
		g.WinRate = Ratio(g.AuctionsWon, bidsInAuction)
		g.WasteRate = WasteRate(g.BidRequests, g.AuctionsWon)
		out = append(out, g)
	}
	return out, rows.Err()
}

// PlatformEfficiency joins funnel and detail on (date, country, platform).
func (e *Engine) PlatformEfficiency(ctx context.Context, days int) ([]domain.PlatformEfficiency, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT f.platform,
		       SUM(f.bid_requests),
		       SUM(f.bids_in_auction),
		       SUM(f.auctions_won),
		       COALESCE(SUM(d.impressions), 0),
		       COALESCE(SUM(d.spend_micros), 0)
		FROM rtb_funnel f
		LEFT JOIN (
			SELECT metric_date, country, platform,
			       SUM(impressions) AS impressions,
			       SUM(spend_micros) AS spend_micros
			FROM rtb_performance
			WHERE metric_date >= $1
			GROUP BY metric_date, country, platform
		) d ON d.metric_date = f.metric_date
		   AND d.country = f.country
		   AND d.platform = f.platform
		WHERE f.metric_date >= $1 AND f.platform <> ''
		GROUP BY f.platform
		ORDER BY SUM(f.bid_requests) DESC, f.platform ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query platform efficiency: %w", err)
	}
	defer rows.Close()

	out := []domain.PlatformEfficiency{}
	for rows.Next() {
		var p domain.PlatformEfficiency
		var bidsInAuction int64
		if err := rows.Scan(&p.Platform, &p.BidRequests, &bidsInAuction,
			&p.AuctionsWon, &p.Impressions, &p.SpendMicros); err != nil {
			return nil, fmt.Errorf("scan platform efficiency: %w", err)
		}
		p.WinRate = Ratio(p.AuctionsWon, bidsInAuction)
		p.WasteRate = WasteRate(p.BidRequests, p.AuctionsWon)
		out = append(out, p)
	}
	return out, rows.Err()
}

// HourlyPatterns needs only the funnel table; exports without an hour
// column simply produce no rows here.
func (e *Engine) HourlyPatterns(ctx context.Context, days int) ([]domain.HourlyPattern, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT hour,
		       SUM(bid_requests),
		       SUM(reached_queries),
		       SUM(bids),
		       SUM(bids_in_auction),
		       SUM(auctions_won)
		FROM rtb_funnel
		WHERE metric_date >= $1 AND hour <> ''
		GROUP BY hour
		ORDER BY hour ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query hourly patterns: %w", err)
	}
	defer rows.Close()

	out := []domain.HourlyPattern{}
	for rows.Next() {
		var h domain.HourlyPattern
		var reached, bidsInAuction int64
		if err := rows.Scan(&h.Hour, &h.BidRequests, &reached, &h.Bids,
			&bidsInAuction, &h.AuctionsWon); err != nil {
			return nil, fmt.Errorf("scan hourly pattern: %w", err)
		}
		h.BidRate = Ratio(h.Bids, reached)
		h.WinRate = Ratio(h.AuctionsWon, bidsInAuction)
		out = append(out, h)
	}
	return out, rows.Err()
}

// SizeGaps finds creative sizes whose demand (reached queries) far exceeds
// the impressions actually served, i.e. demand with no creative to fill it.
func (e *Engine) SizeGaps(ctx context.Context, days int) ([]domain.SizeGap, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT creative_size,
		       SUM(reached_queries),
		       SUM(impressions)
		FROM rtb_performance
		WHERE metric_date >= $1 AND creative_size <> ''
		GROUP BY creative_size
		HAVING SUM(reached_queries) > SUM(impressions) * $2
		ORDER BY SUM(reached_queries) - SUM(impressions) DESC, creative_size ASC`,
		cutoff(days), e.cfg.SizeGapMultiple)
	if err != nil {
		return nil, fmt.Errorf("query size gaps: %w", err)
	}
	defer rows.Close()

	out := []domain.SizeGap{}
	for rows.Next() {
		var g domain.SizeGap
		if err := rows.Scan(&g.CreativeSize, &g.ReachedQueries, &g.Impressions); err != nil {
			return nil, fmt.Errorf("scan size gap: %w", err)
		}
		g.GapQueries = g.ReachedQueries - g.Impressions
		g.GapPerDay = float64(g.GapQueries) / float64(days)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Pretargeting reports filter tightness per country.
func (e *Engine) Pretargeting(ctx context.Context, days int) ([]domain.PretargetingEfficiency, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT country,
		       SUM(inventory_matches),
		       SUM(reached_queries)
		FROM rtb_funnel
		WHERE metric_date >= $1 AND country <> ''
		GROUP BY country
		ORDER BY SUM(inventory_matches) DESC, country ASC
		LIMIT $2`, cutoff(days), topGroupLimit)
	if err != nil {
		return nil, fmt.Errorf("query pretargeting efficiency: %w", err)
	}
	defer rows.Close()

	out := []domain.PretargetingEfficiency{}
	for rows.Next() {
		var p domain.PretargetingEfficiency
		if err := rows.Scan(&p.Country, &p.InventoryMatches, &p.ReachedQueries); err != nil {
			return nil, fmt.Errorf("scan pretargeting efficiency: %w", err)
		}
		p.Efficiency = Ratio(p.ReachedQueries, p.InventoryMatches)
		out = append(out, p)
	}
	return out, rows.Err()
}

// BidFiltering breaks filtered bids down by reason.
func (e *Engine) BidFiltering(ctx context.Context, days int) ([]domain.BidFilteringReason, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT filtering_reason, SUM(filtered_bids)
		FROM bid_filtering
		WHERE metric_date >= $1
		GROUP BY filtering_reason
		ORDER BY SUM(filtered_bids) DESC, filtering_reason ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query bid filtering: %w", err)
	}
	defer rows.Close()

	out := []domain.BidFilteringReason{}
	var total int64
	for rows.Next() {
		var b domain.BidFilteringReason
		if err := rows.Scan(&b.Reason, &b.FilteredBids); err != nil {
			return nil, fmt.Errorf("scan bid filtering: %w", err)
		}
		total += b.FilteredBids
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if total > 0 {
		for i := range out {
			out[i].Share = float64(out[i].FilteredBids) / float64(total)
		}
	}
	return out, nil
}

// FraudRisk flags publishers whose invalid-traffic rate crosses the
// configured threshold at meaningful volume.
func (e *Engine) FraudRisk(ctx context.Context, days int) ([]domain.FraudRisk, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT publisher_id,
		       MAX(publisher_name),
		       SUM(impressions),
		       SUM(ivt_credited_impressions)
		FROM quality_signals
		WHERE metric_date >= $1
		GROUP BY publisher_id
		ORDER BY SUM(ivt_credited_impressions) DESC, publisher_id ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query fraud risk: %w", err)
	}
	defer rows.Close()

	out := []domain.FraudRisk{}
	for rows.Next() {
		var f domain.FraudRisk
		if err := rows.Scan(&f.PublisherID, &f.PublisherName, &f.Impressions,
			&f.IVTImpressions); err != nil {
			return nil, fmt.Errorf("scan fraud risk: %w", err)
		}
		f.FraudRate = Ratio(f.IVTImpressions, f.Impressions)
		if f.FraudRate == nil || *f.FraudRate < e.cfg.FraudRateThreshold {
			continue
		}
		if f.Impressions < e.cfg.MinImpressions {
			continue
		}
		f.RiskLevel = "elevated"
		if *f.FraudRate >= 2*e.cfg.FraudRateThreshold {
			f.RiskLevel = "high"
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ViewabilityIssues flags publishers measuring well below the viewability
// floor, with the spend running against that inventory as the cost signal.
func (e *Engine) ViewabilityIssues(ctx context.Context, days int) ([]domain.ViewabilityIssue, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT publisher_id,
		       MAX(publisher_name),
		       SUM(active_view_measurable),
		       SUM(active_view_viewable),
		       SUM(spend_micros)
		FROM quality_signals
		WHERE metric_date >= $1
		GROUP BY publisher_id
		ORDER BY SUM(spend_micros) DESC, publisher_id ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query viewability issues: %w", err)
	}
	defer rows.Close()

	out := []domain.ViewabilityIssue{}
	for rows.Next() {
		var v domain.ViewabilityIssue
		if err := rows.Scan(&v.PublisherID, &v.PublisherName, &v.Measurable,
			&v.Viewable, &v.SpendMicros); err != nil {
			return nil, fmt.Errorf("scan viewability issue: %w", err)
		}
		v.ViewabilityRate = Ratio(v.Viewable, v.Measurable)
		if v.ViewabilityRate == nil || *v.ViewabilityRate >= e.cfg.ViewabilityThreshold {
			continue
		}
		if v.Measurable < e.cfg.MinImpressions {
			continue
		}
		v.WastedSpendMicros = int64(float64(v.SpendMicros) * (1 - *v.ViewabilityRate))
		out = append(out, v)
	}
	return out, rows.Err()
}

// ConfigEfficiency compares each billing/config id's win-through rate
// (impressions per reached query) against the account-wide average.
func (e *Engine) ConfigEfficiency(ctx context.Context, days int) ([]domain.ConfigEfficiency, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT billing_id,
		       SUM(reached_queries),
		       SUM(impressions)
		FROM rtb_performance
		WHERE metric_date >= $1 AND billing_id <> ''
		GROUP BY billing_id
		ORDER BY SUM(reached_queries) DESC, billing_id ASC`, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("query config efficiency: %w", err)
	}
	defer rows.Close()

	out := []domain.ConfigEfficiency{}
	var totalReached, totalImpressions int64
	for rows.Next() {
		var c domain.ConfigEfficiency
		if err := rows.Scan(&c.BillingID, &c.ReachedQueries, &c.Impressions); err != nil {
			return nil, fmt.Errorf("scan config efficiency: %w", err)
		}
		c.WinRate = Ratio(c.Impressions, c.ReachedQueries)
		totalReached += c.ReachedQueries
		totalImpressions += c.Impressions
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	accountAvg := Ratio(totalImpressions, totalReached)
	for i := range out {
		out[i].AccountAvg = accountAvg
	}
	return out, nil
}

func (e *Engine) summary(ctx context.Context, days int) (domain.ReportSummary, error) {
	var s domain.ReportSummary
	var bidsInAuction int64
	err := e.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(bid_requests), 0),
		       COALESCE(SUM(bids_in_auction), 0),
		       COALESCE(SUM(auctions_won), 0),
		       COALESCE(SUM(impressions), 0),
		       COALESCE(SUM(spend_micros), 0)
		FROM rtb_funnel
		WHERE metric_date >= $1`, cutoff(days)).
		Scan(&s.TotalBidRequests, &bidsInAuction, &s.TotalAuctionsWon,
			&s.TotalImpressions, &s.TotalSpendMicros)
	if err != nil {
		return s, fmt.Errorf("query report summary: %w", err)
	}
	s.WindowDays = days
	s.OverallWasteRate = WasteRate(s.TotalBidRequests, s.TotalAuctionsWon)
	s.OverallWinRate = Ratio(s.TotalAuctionsWon, bidsInAuction)
	return s, nil
}

// GetOptimizationReport assembles the full report: summary, every
// breakdown, and the ranked recommendation list.
func (e *Engine) GetOptimizationReport(ctx context.Context, days int) (*domain.OptimizationReport, error) {
	days = ClampWindow(days)

	summary, err := e.summary(ctx, days)
	if err != nil {
		return nil, err
	}
	publisherWaste, err := e.PublisherWaste(ctx, days)
	if err != nil {
		return nil, err
	}
	geos, err := e.GeoPerformance(ctx, days)
	if err != nil {
		return nil, err
	}
	platforms, err := e.PlatformEfficiency(ctx, days)
	if err != nil {
		return nil, err
	}
	hourly, err := e.HourlyPatterns(ctx, days)
	if err != nil {
		return nil, err
	}
	sizeGaps, err := e.SizeGaps(ctx, days)
	if err != nil {
		return nil, err
	}
	pretargeting, err := e.Pretargeting(ctx, days)
	if err != nil {
		return nil, err
	}
	filtering, err := e.BidFiltering(ctx, days)
	if err != nil {
		return nil, err
	}
	fraud, err := e.FraudRisk(ctx, days)
	if err != nil {
		return nil, err
	}
	viewability, err := e.ViewabilityIssues(ctx, days)
	if err != nil {
		return nil, err
	}
	configs, err := e.ConfigEfficiency(ctx, days)
	if err != nil {
		return nil, err
	}

	ranker := NewRanker(e.cfg)
	recs := ranker.Rank(RankerInput{
		WindowDays:     days,
		FraudRisk:      fraud,
		PublisherWaste: publisherWaste,
		Configs:        configs,
		SizeGaps:       sizeGaps,
	})

	return &domain.OptimizationReport{
		Summary:            summary,
		Recommendations:    recs,
		PublisherWaste:     publisherWaste,
		GeoPerformance:     geos,
		PlatformEfficiency: platforms,
		HourlyPatterns:     hourly,
		SizeGaps:           sizeGaps,
		Pretargeting:       pretargeting,
		BidFiltering:       filtering,
		FraudRisk:          fraud,
		ViewabilityIssues:  viewability,
	}, nil
}
