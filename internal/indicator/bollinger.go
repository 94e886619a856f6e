package indicator

// Bands holds Bollinger Bands.
type Bands struct {
	Upper Series
	Mid   Series
	Lower Series
}

// Bollinger computes mid = SMA(period) with upper/lower offset by k
// population standard deviations.
func Bollinger(values []float64, period int, k float64) Bands {
	mid := SMA(values, period)
	sd := StdDev(values, period)
	return Bands{
		Upper: combine(mid, sd, func(m, s float64) float64 { return m + k*s }),
		Mid:   mid,
		Lower: combine(mid, sd, func(m, s float64) float64 { return m - k*s }),
	}
}
