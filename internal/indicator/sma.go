package indicator

import "math"

// SMA returns the trailing arithmetic mean over period values.
// A running sum keeps each step O(1): add the newest value, subtract the
// one leaving the window. Values are present from index period-1.
func SMA(values []float64, period int) Series {
	out := make(Series, len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = Some(sum / float64(period))
		}
	}
	return out
}

// StdDev returns the population standard deviation of the trailing window,
// centred on SMA. Absent wherever the SMA is absent.
func StdDev(values []float64, period int) Series {
	mean := SMA(values, period)
	out := make(Series, len(values))
	for i := range values {
		m, ok := mean[i].Get()
		if !ok {
			continue
		}
		sumSq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m
			sumSq += d * d
		}
		out[i] = Some(math.Sqrt(sumSq / float64(period)))
	}
	return out
}
