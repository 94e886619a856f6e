package indicator

// Ichimoku holds the tenkan-sen and kijun-sen lines. Senkou spans, chikou
// and the forward cloud displacement are not computed.
type Ichimoku struct {
	Tenkan Series
	Kijun  Series
}

// IchimokuLines computes (highest high + lowest low) / 2 over the trailing
// tenkanPeriod and kijunPeriod windows (9 and 26 by convention).
func IchimokuLines(highs, lows []float64, tenkanPeriod, kijunPeriod int) Ichimoku {
	return Ichimoku{
		Tenkan: Midpoint(highs, lows, tenkanPeriod),
		Kijun:  Midpoint(highs, lows, kijunPeriod),
	}
}

// Midpoint returns the high/low window midpoint, present from index period-1.
func Midpoint(highs, lows []float64, period int) Series {
	out := make(Series, len(highs))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(highs); i++ {
		h, l := highestLowest(highs, lows, i, period)
		out[i] = Some((h + l) / 2.0)
	}
	return out
}
