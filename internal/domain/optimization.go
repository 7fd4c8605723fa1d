package domain

// Derived rates are *float64 so a zero denominator serializes as JSON null
// instead of masquerading as a real 0% rate.

type PublisherWaste struct {
	PublisherID   string   `json:"publisher_id"`
	PublisherName string   `json:"publisher_name,omitempty"`
	BidRequests   int64    `json:"bid_requests"`
	Bids          int64    `json:"bids"`
	AuctionsWon   int64    `json:"auctions_won"`
	Impressions   int64    `json:"impressions"`
	SpendMicros   int64    `json:"spend_micros"`
	WasteRate     *float64 `json:"waste_rate"`
	WinRate       *float64 `json:"win_rate"`
}

// GeoPerformance attributes funnel metrics and performance detail to one
// country. It is the coarsest join: geo funnel exports carry no publisher or
// platform dimensions, so (date, country) is the only key both report
// families share.
type GeoPerformance struct {
	Country        string   `json:"country"`
	BidRequests    int64    `json:"bid_requests"`
	ReachedQueries int64    `json:"reached_queries"`
	Bids           int64    `json:"bids"`
	AuctionsWon    int64    `json:"auctions_won"`
	Impressions    int64    `json:"impressions"`
	SpendMicros    int64    `json:"spend_micros"`
	BidRate        *float64 `json:"bid_rate"`
	WinRate        *float64 `json:"win_rate"`
	WasteRate      *float64 `json:"waste_rate"`
}

type PlatformEfficiency struct {
	Platform    string   `json:"platform"`
	BidRequests int64    `json:"bid_requests"`
	AuctionsWon int64    `json:"auctions_won"`
	Impressions int64    `json:"impressions"`
	SpendMicros int64    `json:"spend_micros"`
	WinRate     *float64 `json:"win_rate"`
	WasteRate   *float64 `json:"waste_rate"`
}

type HourlyPattern struct {
	Hour        string   `json:"hour"`
	BidRequests int64    `json:"bid_requests"`
	Bids        int64    `json:"bids"`
	AuctionsWon int64    `json:"auctions_won"`
	BidRate     *float64 `json:"bid_rate"`
	WinRate     *float64 `json:"win_rate"`
}

// SizeGap is a creative size with demand (reached queries) far beyond the
// impressions actually served for it.
type SizeGap struct {
	CreativeSize   string  `json:"creative_size"`
	ReachedQueries int64   `json:"reached_queries"`
	Impressions    int64   `json:"impressions"`
	GapQueries     int64   `json:"gap_queries"`
	GapPerDay      float64 `json:"gap_per_day"`
}

type PretargetingEfficiency struct {
	Country          string   `json:"country"`
	InventoryMatches int64    `json:"inventory_matches"`
	ReachedQueries   int64    `json:"reached_queries"`
	Efficiency       *float64 `json:"efficiency"`
}

type BidFilteringReason struct {
	Reason       string  `json:"reason"`
	FilteredBids int64   `json:"filtered_bids"`
	Share        float64 `json:"share"`
}

type FraudRisk struct {
	PublisherID    string   `json:"publisher_id"`
	PublisherName  string   `json:"publisher_name,omitempty"`
	Impressions    int64    `json:"impressions"`
	IVTImpressions int64    `json:"ivt_impressions"`
	FraudRate      *float64 `json:"fraud_rate"`
	RiskLevel      string   `json:"risk_level"`
}

type ViewabilityIssue struct {
	PublisherID       string   `json:"publisher_id"`
	PublisherName     string   `json:"publisher_name,omitempty"`
	Measurable        int64    `json:"measurable"`
	Viewable          int64    `json:"viewable"`
	ViewabilityRate   *float64 `json:"viewability_rate"`
	SpendMicros       int64    `json:"spend_micros"`
	WastedSpendMicros int64    `json:"wasted_spend_micros"`
}

// ConfigEfficiency compares one billing/config id against the account-wide
// average win rate.
type ConfigEfficiency struct {
	BillingID      string   `json:"billing_id"`
	ReachedQueries int64    `json:"reached_queries"`
	Impressions    int64    `json:"impressions"`
	WinRate        *float64 `json:"win_rate"`
	AccountAvg     *float64 `json:"account_avg_win_rate"`
}

const (
	RecFlagFraudRisk     = "flag_fraud_risk"
	RecBlockPublisher    = "block_publisher"
	RecInvestigateConfig = "investigate_config"
	RecAddCreativeSize   = "add_creative_size"
)

// ImpactQueriesPerDay is the unit for every recommendation's impact
// estimate: wasted or unrealized queries, amortized over the report window.
const ImpactQueriesPerDay = "queries/day"

// Recommendation is ephemeral: produced fresh on every report query, never
// persisted, never tracked for acceptance.
type Recommendation struct {
	Type        string  `json:"type"`
	Entity      string  `json:"entity"`
	EntityLabel string  `json:"entity_label,omitempty"`
	Reason      string  `json:"reason"`
	Impact      float64 `json:"impact"`
	ImpactUnit  string  `json:"impact_unit"`
}

type ReportSummary struct {
	WindowDays       int      `json:"window_days"`
	TotalBidRequests int64    `json:"total_bid_requests"`
	TotalAuctionsWon int64    `json:"total_auctions_won"`
	TotalImpressions int64    `json:"total_impressions"`
	TotalSpendMicros int64    `json:"total_spend_micros"`
	OverallWasteRate *float64 `json:"overall_waste_rate"`
	OverallWinRate   *float64 `json:"overall_win_rate"`
}

type OptimizationReport struct {
	Summary            ReportSummary            `json:"summary"`
	Recommendations    []Recommendation         `json:"recommendations"`
	PublisherWaste     []PublisherWaste         `json:"publisher_waste"`
	GeoPerformance     []GeoPerformance         `json:"geo_performance"`
	PlatformEfficiency []PlatformEfficiency     `json:"platform_efficiency"`
	HourlyPatterns     []HourlyPattern          `json:"hourly_patterns"`
	SizeGaps           []SizeGap                `json:"size_gaps"`
	Pretargeting       []PretargetingEfficiency `json:"pretargeting"`
	BidFiltering       []BidFilteringReason     `json:"bid_filtering"`
	FraudRisk          []FraudRisk              `json:"fraud_risk"`
	ViewabilityIssues  []ViewabilityIssue       `json:"viewability_issues"`
}
