package analytics

// Ratio guards the zero-denominator case: the result is nil (undefined),
// never a divide-by-zero and never a fake 0% rate.
func Ratio(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// WasteRate is the fraction of addressable bid requests that did not
// convert to a won auction.
func WasteRate(bidRequests, auctionsWon int64) *float64 {
	return Ratio(bidRequests-auctionsWon, bidRequests)
}

func microsToUSD(m int64) float64 {
	return float64(m) / 1_000_000
}
