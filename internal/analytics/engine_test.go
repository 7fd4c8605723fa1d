package analytics

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/adx-intelligence/internal/config"
)

func setupEngineTest(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	cfg := config.AnalyticsConfig{
		FraudRateThreshold:   0.05,
		ViewabilityThreshold: 0.5,
		MinImpressions:       1000,
		SizeGapMultiple:      2.0,
	}
	return NewEngine(db, cfg), mock
}

func TestPublisherWasteKeepsFunnelOnlyRows(t *testing.T) {
	engine, mock := setupEngineTest(t)

	// pub-2 has no performance detail; the left join must still return it
	// with detail metrics at zero.
	mock.ExpectQuery("FROM rtb_funnel f").
		WillReturnRows(sqlmock.NewRows([]string{
			"publisher_id", "publisher_name", "bid_requests", "bids",
			"bids_in_auction", "auctions_won", "impressions", "spend_micros",
		}).
			AddRow("pub-1", "News Corp", 100000, 10000, 8000, 2000, 1900, 5_000_000).
			AddRow("pub-2", "", 50000, 0, 0, 0, 0, 0))

	out, err := engine.PublisherWaste(context.Background(), 7)
	if err != nil {
		t.Fatalf("PublisherWaste: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d publishers, want 2", len(out))
	}

	p1 := out[0]
	if p1.WasteRate == nil || *p1.WasteRate != 0.98 {
		t.Errorf("pub-1 waste rate = %v, want 0.98", p1.WasteRate)
	}
	if p1.WinRate == nil || *p1.WinRate != 0.25 {
		t.Errorf("pub-1 win rate = %v, want 0.25", p1.WinRate)
	}

	p2 := out[1]
	if p2.WasteRate == nil || *p2.WasteRate != 1.0 {
		t.Errorf("pub-2 waste rate = %v, want 1.0", p2.WasteRate)
	}
	if p2.WinRate != nil {
		t.Errorf("pub-2 win rate = %v, want nil on zero auctions", *p2.WinRate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGeoPerformanceAttributesDetailByCountry(t *testing.T) {
	engine, mock := setupEngineTest(t)

	// A geo funnel export and a performance export land in different tables
	// with no shared publisher or platform dims; (date, country) is the only
	// key that links US bid volume to the impressions served there.
	mock.ExpectQuery("FROM rtb_funnel f").
		WillReturnRows(sqlmock.NewRows([]string{
			"country", "bid_requests", "reached_queries", "bids",
			"bids_in_auction", "auctions_won", "impressions", "spend_micros",
		}).
			AddRow("US", 1000, 1000, 100, 80, 20, 20, 1_500_000).
			AddRow("BR", 4000, 0, 0, 0, 0, 0, 0))

	out, err := engine.GeoPerformance(context.Background(), 7)
	if err != nil {
		t.Fatalf("GeoPerformance: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d countries, want 2", len(out))
	}

	us := out[0]
	if us.Country != "US" || us.BidRequests != 1000 || us.AuctionsWon != 20 {
		t.Errorf("US funnel side = %+v, want 1000 requests / 20 won", us)
	}
	if us.Impressions != 20 {
		t.Errorf("US detail impressions = %d, want 20 attributed from the performance report", us.Impressions)
	}
	if us.BidRate == nil || *us.BidRate != 0.10 {
		t.Errorf("US bid rate = %v, want 0.10", us.BidRate)
	}
	if us.WinRate == nil || *us.WinRate != 0.25 {
		t.Errorf("US win rate = %v, want 0.25", us.WinRate)
	}
	if us.WasteRate == nil || *us.WasteRate != 0.98 {
		t.Errorf("US waste rate = %v, want 0.98", us.WasteRate)
	}

	// A country with funnel traffic but no detail rows still appears.
	br := out[1]
	if br.Country != "BR" || br.BidRequests != 4000 || br.Impressions != 0 {
		t.Errorf("BR = %+v, want funnel-only row with zero detail", br)
	}
	if br.BidRate != nil {
		t.Errorf("BR bid rate = %v, want nil on zero reached queries", *br.BidRate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBidFilteringShares(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM bid_filtering").
		WillReturnRows(sqlmock.NewRows([]string{"filtering_reason", "filtered_bids"}).
			AddRow("Creative not approved", 750).
			AddRow("Pretargeting mismatch", 250))

	out, err := engine.BidFiltering(context.Background(), 7)
	if err != nil {
		t.Fatalf("BidFiltering: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d reasons, want 2", len(out))
	}
	if out[0].Share != 0.75 || out[1].Share != 0.25 {
		t.Errorf("shares = %f/%f, want 0.75/0.25", out[0].Share, out[1].Share)
	}
}

func TestBidFilteringEmptyTable(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM bid_filtering").
		WillReturnRows(sqlmock.NewRows([]string{"filtering_reason", "filtered_bids"}))

	out, err := engine.BidFiltering(context.Background(), 7)
	if err != nil {
		t.Fatalf("BidFiltering: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d reasons, want 0", len(out))
	}
}

func TestFraudRiskThresholds(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM quality_signals").
		WillReturnRows(sqlmock.NewRows([]string{
			"publisher_id", "publisher_name", "impressions", "ivt_credited_impressions",
		}).
			AddRow("pub-high", "", 100000, 12000).    // 12% -> high
			AddRow("pub-elevated", "", 100000, 6000). // 6% -> elevated
			AddRow("pub-clean", "", 100000, 1000).    // 1% -> dropped
			AddRow("pub-tiny", "", 200, 100))         // below volume floor

	out, err := engine.FraudRisk(context.Background(), 7)
	if err != nil {
		t.Fatalf("FraudRisk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d fraud entries, want 2: %+v", len(out), out)
	}
	if out[0].PublisherID != "pub-high" || out[0].RiskLevel != "high" {
		t.Errorf("first = %s/%s, want pub-high/high", out[0].PublisherID, out[0].RiskLevel)
	}
	if out[1].PublisherID != "pub-elevated" || out[1].RiskLevel != "elevated" {
		t.Errorf("second = %s/%s, want pub-elevated/elevated", out[1].PublisherID, out[1].RiskLevel)
	}
}

func TestViewabilityWastedSpend(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM quality_signals").
		WillReturnRows(sqlmock.NewRows([]string{
			"publisher_id", "publisher_name", "active_view_measurable",
			"active_view_viewable", "spend_micros",
		}).
			AddRow("pub-1", "App Inc", 10000, 2500, 8_000_000).
			AddRow("pub-ok", "", 10000, 8000, 4_000_000))

	out, err := engine.ViewabilityIssues(context.Background(), 7)
	if err != nil {
		t.Fatalf("ViewabilityIssues: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d issues, want 1: %+v", len(out), out)
	}
	v := out[0]
	if v.ViewabilityRate == nil || *v.ViewabilityRate != 0.25 {
		t.Errorf("viewability rate = %v, want 0.25", v.ViewabilityRate)
	}
	if v.WastedSpendMicros != 6_000_000 {
		t.Errorf("wasted spend = %d, want 6000000", v.WastedSpendMicros)
	}
}

func TestConfigEfficiencyAccountAverage(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM rtb_performance").
		WillReturnRows(sqlmock.NewRows([]string{"billing_id", "reached_queries", "impressions"}).
			AddRow("B1", 100000, 10000).
			AddRow("B2", 100000, 2000))

	out, err := engine.ConfigEfficiency(context.Background(), 7)
	if err != nil {
		t.Fatalf("ConfigEfficiency: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d configs, want 2", len(out))
	}
	// Account average: 12000 / 200000 = 0.06 applied to every row.
	for _, c := range out {
		if c.AccountAvg == nil || *c.AccountAvg != 0.06 {
			t.Errorf("%s account avg = %v, want 0.06", c.BillingID, c.AccountAvg)
		}
	}
	if out[0].WinRate == nil || *out[0].WinRate != 0.10 {
		t.Errorf("B1 win rate = %v, want 0.10", out[0].WinRate)
	}
}

func TestSummaryZeroWindow(t *testing.T) {
	engine, mock := setupEngineTest(t)

	mock.ExpectQuery("FROM rtb_funnel").
		WillReturnRows(sqlmock.NewRows([]string{
			"bid_requests", "bids_in_auction", "auctions_won", "impressions", "spend_micros",
		}).AddRow(0, 0, 0, 0, 0))

	s, err := engine.summary(context.Background(), 7)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.OverallWasteRate != nil || s.OverallWinRate != nil {
		t.Errorf("rates over empty window = %v/%v, want nil/nil",
			s.OverallWasteRate, s.OverallWinRate)
	}
	if s.WindowDays != 7 {
		t.Errorf("window days = %d, want 7", s.WindowDays)
	}
}

func TestClampWindow(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 7},
		{-3, 7},
		{1, 1},
		{30, 30},
		{90, 90},
		{91, 90},
		{10000, 90},
	}
	for _, tt := range tests {
		if got := ClampWindow(tt.in); got != tt.want {
			t.Errorf("ClampWindow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
