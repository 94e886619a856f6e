package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing.
//
// Gains and losses over indices 1..period seed the averages; the first value
// is emitted at index period. After that each step applies
// avg = (prevAvg*(period-1) + current) / period. A zero average loss makes
// RS infinite, so RSI resolves to exactly 100.
func RSI(closes []float64, period int) Series {
	out := make(Series, len(closes))
	if period <= 0 {
		return out
	}
	p := float64(period)

	// Running totals are kept as avg*period and divided back each step so
	// results match the reference implementation to the last bit.
	gain, loss := 0.0, 0.0
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else if change < 0 {
			l = -change
		}

		if i <= period {
			gain += g
			loss += l
			if i == period {
				out[i] = Some(rsiFromAverages(gain/p, loss/p))
			}
			continue
		}

		avgGain := (gain/p*(p-1) + g) / p
		avgLoss := (loss/p*(p-1) + l) / p
		gain = avgGain * p
		loss = avgLoss * p
		out[i] = Some(rsiFromAverages(avgGain, avgLoss))
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
