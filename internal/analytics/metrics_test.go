package analytics

import "testing"

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		num  int64
		den  int64
		want float64
		nil_ bool
	}{
		{"simple", 1, 4, 0.25, false},
		{"zero numerator", 0, 10, 0, false},
		{"zero denominator is undefined", 5, 0, 0, true},
		{"both zero is undefined", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.num, tt.den)
			if tt.nil_ {
				if got != nil {
					t.Errorf("Ratio(%d, %d) = %v, want nil", tt.num, tt.den, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Ratio(%d, %d) = nil, want %v", tt.num, tt.den, tt.want)
			}
			if *got != tt.want {
				t.Errorf("Ratio(%d, %d) = %v, want %v", tt.num, tt.den, *got, tt.want)
			}
		})
	}
}

// The canonical funnel example: 1000 bid requests, 100 bids, 80 in auction,
// 20 won.
func TestFunnelRates(t *testing.T) {
	bidRate := Ratio(100, 1000)
	if bidRate == nil || *bidRate != 0.10 {
		t.Errorf("bid_rate = %v, want 0.10", bidRate)
	}

	winRate := Ratio(20, 80)
	if winRate == nil || *winRate != 0.25 {
		t.Errorf("win_rate = %v, want 0.25", winRate)
	}

	waste := WasteRate(1000, 20)
	if waste == nil || *waste != 0.98 {
		t.Errorf("waste_rate = %v, want 0.98", waste)
	}
}

func TestWasteRateZeroRequests(t *testing.T) {
	if got := WasteRate(0, 0); got != nil {
		t.Errorf("WasteRate(0, 0) = %v, want nil", *got)
	}
}
