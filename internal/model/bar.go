package model

import "time"

// Bar is one OHLCV observation for a fixed interval.
// Bars handed to the indicator engine are in ascending TS order.
type Bar struct {
	TS     int64   `json:"ts"` // bucket start, unix milliseconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Time returns the bar start as UTC time.
func (b *Bar) Time() time.Time {
	return time.UnixMilli(b.TS).UTC()
}

// Columns splits bars into the close/high/low/volume series the indicator
// engine consumes. All four slices share the length and order of bars.
func Columns(bars []Bar) (closes, highs, lows, volumes []float64) {
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
		highs[i] = bars[i].High
		lows[i] = bars[i].Low
		volumes[i] = bars[i].Volume
	}
	return closes, highs, lows, volumes
}

// IsAscending reports whether bar timestamps strictly increase.
func IsAscending(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].TS <= bars[i-1].TS {
			return false
		}
	}
	return true
}
