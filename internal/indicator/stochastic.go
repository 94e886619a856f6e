package indicator

// Stoch holds the stochastic oscillator lines.
type Stoch struct {
	K Series
	D Series
}

// Stochastic computes %K over a trailing kPeriod window and %D as the
// dPeriod SMA of %K.
//
// A zero-width window (highest high == lowest low) yields %K = 0.
// Absent %K positions enter the %D average as 0.0 rather than being skipped,
// so %D is present from index dPeriod-1 even while %K is still warming up.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) Stoch {
	k := make(Series, len(closes))
	if kPeriod > 0 {
		for i := kPeriod - 1; i < len(closes); i++ {
			highest, lowest := highestLowest(highs, lows, i, kPeriod)
			if highest == lowest {
				k[i] = Some(0)
				continue
			}
			k[i] = Some((closes[i] - lowest) / (highest - lowest) * 100.0)
		}
	}
	return Stoch{K: k, D: SMA(k.ZeroFilled(), dPeriod)}
}
