package analytics

import (
	"fmt"
	"sort"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
)

// Ranker turns the engine's per-group metrics into a bounded, explainable
// action list. Categories are evaluated in a fixed order and an entity
// appears in at most one recommendation: the first category that claims it
// wins. Within a category, ties sort by impact descending then entity id
// ascending, so output is fully deterministic.
type Ranker struct {
	cfg config.AnalyticsConfig
}

func NewRanker(cfg config.AnalyticsConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

type RankerInput struct {
	WindowDays     int
	FraudRisk      []domain.FraudRisk
	PublisherWaste []domain.PublisherWaste
	Configs        []domain.ConfigEfficiency
	SizeGaps       []domain.SizeGap
}

func (r *Ranker) Rank(in RankerInput) []domain.Recommendation {
	days := in.WindowDays
	if days < 1 {
		days = 1
	}
	seen := map[string]struct{}{}
	out := []domain.Recommendation{}

	appendCategory := func(recs []domain.Recommendation) {
		sort.SliceStable(recs, func(i, j int) bool {
			if recs[i].Impact != recs[j].Impact {
				return recs[i].Impact > recs[j].Impact
			}
			return recs[i].Entity < recs[j].Entity
		})
		for _, rec := range recs {
			if _, dup := seen[rec.Entity]; dup {
				continue
			}
			seen[rec.Entity] = struct{}{}
			out = append(out, rec)
		}
	}

	appendCategory(r.fraudRecs(in.FraudRisk, days))
	appendCategory(r.wasteRecs(in.PublisherWaste, days))
	appendCategory(r.configRecs(in.Configs, days))
	appendCategory(r.sizeRecs(in.SizeGaps))

	if max := r.cfg.MaxRecommendations; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func (r *Ranker) fraudRecs(risks []domain.FraudRisk, days int) []domain.Recommendation {
	recs := []domain.Recommendation{}
	for _, f := range risks {
		if f.FraudRate == nil || *f.FraudRate < r.cfg.FraudRateThreshold {
			continue
		}
		if f.Impressions < r.cfg.MinImpressions {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecFlagFraudRisk,
			Entity:      f.PublisherID,
			EntityLabel: f.PublisherName,
			Reason: fmt.Sprintf("IVT rate %.1f%% across %d impressions in the last %d days",
				*f.FraudRate*100, f.Impressions, days),
			Impact:     float64(f.IVTImpressions) / float64(days),
			ImpactUnit: domain.ImpactQueriesPerDay,
		})
	}
	return recs
}

func (r *Ranker) wasteRecs(waste []domain.PublisherWaste, days int) []domain.Recommendation {
	recs := []domain.Recommendation{}
	for _, w := range waste {
		if w.WasteRate == nil || *w.WasteRate < r.cfg.WasteBlockThreshold {
			continue
		}
		if w.BidRequests < r.cfg.MinBidRequests {
			continue
		}
		reason := fmt.Sprintf("%.1f%% of %d bid requests produced no won auction in the last %d days",
			*w.WasteRate*100, w.BidRequests, days)
		if w.SpendMicros > 0 {
			reason += fmt.Sprintf(" ($%.2f spent)", microsToUSD(w.SpendMicros))
		}
		recs = append(recs, domain.Recommendation{
			Type:        domain.RecBlockPublisher,
			Entity:      w.PublisherID,
			EntityLabel: w.PublisherName,
			Reason:      reason,
			Impact:      *w.WasteRate * float64(w.BidRequests) / float64(days),
			ImpactUnit:  domain.ImpactQueriesPerDay,
		})
	}
	return recs
}

func (r *Ranker) configRecs(configs []domain.ConfigEfficiency, days int) []domain.Recommendation {
	recs := []domain.Recommendation{}
	for _, c := range configs {
		if c.WinRate == nil || c.AccountAvg == nil || *c.AccountAvg == 0 {
			continue
		}
		if c.ReachedQueries < r.cfg.MinReachedQueries {
			continue
		}
		if *c.WinRate >= r.cfg.WinRateInvestigateRatio**c.AccountAvg {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Type:   domain.RecInvestigateConfig,
			Entity: c.BillingID,
			Reason: fmt.Sprintf("win rate %.2f%% is below %.0f%% of the account average %.2f%%",
				*c.WinRate*100, r.cfg.WinRateInvestigateRatio*100, *c.AccountAvg*100),
			Impact:     (*c.AccountAvg - *c.WinRate) * float64(c.ReachedQueries) / float64(days),
			ImpactUnit: domain.ImpactQueriesPerDay,
		})
	}
	return recs
}

func (r *Ranker) sizeRecs(gaps []domain.SizeGap) []domain.Recommendation {
	recs := []domain.Recommendation{}
	for _, g := range gaps {
		if g.GapQueries < r.cfg.MinSizeGapQueries {
			continue
		}
		recs = append(recs, domain.Recommendation{
			Type:   domain.RecAddCreativeSize,
			Entity: g.CreativeSize,
			Reason: fmt.Sprintf("%d reached queries for size %s but only %d impressions served",
				g.ReachedQueries, g.CreativeSize, g.Impressions),
			Impact:     g.GapPerDay,
			ImpactUnit: domain.ImpactQueriesPerDay,
		})
	}
	return recs
}
