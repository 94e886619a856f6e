package indicator

import "math"

// TrueRange returns high-low at index 0 and
// max(high-low, |high-prevClose|, |low-prevClose|) afterwards.
func TrueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(highs))
	for i := range highs {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR is the EMA of the true range. Note this is an EMA approximation, not
// Wilder's recursive average; values differ from a Wilder ATR.
func ATR(highs, lows, closes []float64, period int) Series {
	return EMA(TrueRange(highs, lows, closes), period)
}
