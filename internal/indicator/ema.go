package indicator

// EMA returns the exponential moving average with k = 2/(period+1).
//
// The recurrence is seeded with the first raw value at index 0 (not with an
// SMA of the first period values) and runs over every index, but values are
// only exposed from index period-1 so the warm-up matches SMA.
func EMA(values []float64, period int) Series {
	out := make(Series, len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	prev := values[0]
	for i, v := range values {
		if i > 0 {
			prev = (v-prev)*k + prev
		}
		if i >= period-1 {
			out[i] = Some(prev)
		}
	}
	return out
}
