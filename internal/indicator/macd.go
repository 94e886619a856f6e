package indicator

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	Line   Series
	Signal Series
	Hist   Series
}

// MACD computes EMA(fast) - EMA(slow), its EMA(signalPeriod) signal line
// and the histogram line - signal.
//
// The signal EMA runs over the MACD line with absent entries taken as 0.0,
// which biases early signal values toward zero. This matches the reference
// output and is kept on purpose.
func MACD(values []float64, fast, slow, signalPeriod int) MACDResult {
	line := combine(EMA(values, fast), EMA(values, slow), func(f, s float64) float64 {
		return f - s
	})
	signal := EMA(line.ZeroFilled(), signalPeriod)
	hist := combine(line, signal, func(m, s float64) float64 {
		return m - s
	})
	return MACDResult{Line: line, Signal: signal, Hist: hist}
}
