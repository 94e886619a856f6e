// Package indicator computes classical technical indicators over a full
// OHLCV series and reduces them to a point-in-time Summary.
//
// Every function is a pure map from input slices to freshly allocated
// output series aligned by index with the input. Positions before an
// indicator's warm-up length are absent (Value.Ready == false), never zero.
package indicator

import (
	"encoding/json"
	"strconv"
)

// Value is one position of an indicator series.
// The zero Value is absent: the indicator had not warmed up at that index.
type Value struct {
	V     float64
	Ready bool
}

// Some returns a present Value.
func Some(v float64) Value { return Value{V: v, Ready: true} }

// Get returns the value and whether it is present.
func (v Value) Get() (float64, bool) { return v.V, v.Ready }

// Or returns the value, or fallback when absent.
func (v Value) Or(fallback float64) float64 {
	if !v.Ready {
		return fallback
	}
	return v.V
}

// Format renders the value with fixed decimals, or "-" when absent.
func (v Value) Format(decimals int) string {
	if !v.Ready {
		return "-"
	}
	return strconv.FormatFloat(v.V, 'f', decimals, 64)
}

// MarshalJSON encodes an absent value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Ready {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON decodes null as absent.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Series is an indicator output aligned by index with its input.
type Series []Value

// Last returns the most recent value, absent for an empty series.
func (s Series) Last() Value {
	if len(s) == 0 {
		return Value{}
	}
	return s[len(s)-1]
}

// ZeroFilled returns the raw numbers with absent positions replaced by 0.0.
// Only the MACD signal line and stochastic %D feed on this.
func (s Series) ZeroFilled() []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v.Ready {
			out[i] = v.V
		}
	}
	return out
}

// Count returns the number of present values.
func (s Series) Count() int {
	n := 0
	for _, v := range s {
		if v.Ready {
			n++
		}
	}
	return n
}

// combine applies fn at every index where both a and b are present.
func combine(a, b Series, fn func(x, y float64) float64) Series {
	out := make(Series, len(a))
	for i := range a {
		if a[i].Ready && b[i].Ready {
			out[i] = Some(fn(a[i].V, b[i].V))
		}
	}
	return out
}

// highestLowest scans the trailing window of period bars ending at end.
// Callers guarantee end >= period-1.
func highestLowest(highs, lows []float64, end, period int) (highest, lowest float64) {
	highest = highs[end-period+1]
	lowest = lows[end-period+1]
	for j := end - period + 2; j <= end; j++ {
		if highs[j] > highest {
			highest = highs[j]
		}
		if lows[j] < lowest {
			lowest = lows[j]
		}
	}
	return highest, lowest
}
