package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

const tol = 1e-9

// assertSeries checks presence and value at every index. NaN in want marks
// an absent position.
func assertSeries(t *testing.T, label string, got Series, want []float64) {
	t.Helper()
	require.Len(t, got, len(want), label)
	for i, w := range want {
		if math.IsNaN(w) {
			assert.False(t, got[i].Ready, "%s[%d] should be absent, got %v", label, i, got[i].V)
			continue
		}
		if assert.True(t, got[i].Ready, "%s[%d] should be present", label, i) {
			assert.InDelta(t, w, got[i].V, tol, "%s[%d]", label, i)
		}
	}
}

var absent = math.NaN()

// wave returns a deterministic oscillating series around base.
func wave(n int, base, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amp*math.Sin(float64(i)/3.0) + float64(i%7)*0.25
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA / EMA / StdDev
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// (1+2+3)/3 = 2, (2+3+4)/3 = 3, (3+4+5)/3 = 4
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assertSeries(t, "SMA(3)", got, []float64{absent, absent, 2, 3, 4})
}

func TestSMA_MatchesWindowMean(t *testing.T) {
	values := wave(60, 100, 5)
	for _, period := range []int{1, 5, 20} {
		got := SMA(values, period)
		for i := range values {
			if i < period-1 {
				assert.False(t, got[i].Ready)
				continue
			}
			sum := 0.0
			for j := i - period + 1; j <= i; j++ {
				sum += values[j]
			}
			assert.InDelta(t, sum/float64(period), got[i].V, 1e-9)
		}
	}
}

func TestSMA_NonPositivePeriod(t *testing.T) {
	for _, period := range []int{0, -3} {
		got := SMA([]float64{1, 2, 3}, period)
		assert.Equal(t, 0, got.Count(), "period %d", period)
	}
}

func TestSMA_ShorterThanPeriod(t *testing.T) {
	got := SMA([]float64{1, 2}, 3)
	assert.Equal(t, 0, got.Count())
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	// k = 2/(3+1) = 0.5
	// i=0: 2 (seed, hidden)
	// i=1: (4-2)*0.5+2 = 3 (hidden)
	// i=2: (6-3)*0.5+3 = 4.5
	// i=3: (8-4.5)*0.5+4.5 = 6.25
	got := EMA([]float64{2, 4, 6, 8}, 3)
	assertSeries(t, "EMA(3)", got, []float64{absent, absent, 4.5, 6.25})
}

func TestEMA_PeriodOneIsIdentity(t *testing.T) {
	// k = 1, so every step takes the raw value.
	got := EMA([]float64{3, 1, 4, 1, 5}, 1)
	assertSeries(t, "EMA(1)", got, []float64{3, 1, 4, 1, 5})
}

func TestEMA_EmptyAndNonPositive(t *testing.T) {
	assert.Empty(t, EMA(nil, 3))
	assert.Equal(t, 0, EMA([]float64{1, 2, 3}, 0).Count())
}

func TestStdDev_Population(t *testing.T) {
	// mean 5, squared deviations sum to 32, 32/8 = 4, sqrt = 2
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := StdDev(values, 8)
	want := []float64{absent, absent, absent, absent, absent, absent, absent, 2}
	assertSeries(t, "StdDev(8)", got, want)
}

func TestWarmUp_AbsentBeforePeriod(t *testing.T) {
	values := wave(30, 50, 3)
	period := 10
	for name, s := range map[string]Series{
		"sma":     SMA(values, period),
		"ema":     EMA(values, period),
		"stddev":  StdDev(values, period),
		"bbUpper": Bollinger(values, period, 2).Upper,
		"bbLower": Bollinger(values, period, 2).Lower,
	} {
		for i := 0; i < period-1; i++ {
			assert.False(t, s[i].Ready, "%s[%d] should be absent", name, i)
		}
		for i := period - 1; i < len(values); i++ {
			assert.True(t, s[i].Ready, "%s[%d] should be present", name, i)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period2(t *testing.T) {
	// changes: +1, -1, +1
	// i=2: avgGain = 1/2, avgLoss = 1/2 → RS 1 → RSI 50
	// i=3: avgGain = (0.5*1+1)/2 = 0.75, avgLoss = (0.5*1+0)/2 = 0.25 → RS 3 → RSI 75
	got := RSI([]float64{1, 2, 1, 2}, 2)
	assertSeries(t, "RSI(2)", got, []float64{absent, absent, 50, 75})
}

func TestRSI_StrictlyIncreasingIs100(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	got := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		assert.False(t, got[i].Ready, "RSI[%d] should be absent", i)
	}
	for i := 14; i < len(closes); i++ {
		require.True(t, got[i].Ready)
		assert.Equal(t, 100.0, got[i].V, "RSI[%d]", i)
	}
}

func TestRSI_FlatSeriesIs100(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5}
	got := RSI(closes, 3)
	assert.Equal(t, 100.0, got[3].V)
	assert.Equal(t, 100.0, got[4].V)
}

func TestRSI_StrictlyDecreasingIsZero(t *testing.T) {
	closes := []float64{10, 9, 8, 7, 6, 5}
	got := RSI(closes, 3)
	assertSeries(t, "RSI(3)", got, []float64{absent, absent, absent, 0, 0, 0})
}

func TestRSI_Bounded(t *testing.T) {
	got := RSI(wave(200, 100, 8), 14)
	require.Equal(t, 200-14, got.Count())
	for i, v := range got {
		if v.Ready {
			assert.GreaterOrEqual(t, v.V, 0.0, "RSI[%d]", i)
			assert.LessOrEqual(t, v.V, 100.0, "RSI[%d]", i)
		}
	}
}

func TestRSI_SingleEarlyLossKeepsBelow100(t *testing.T) {
	// One early loss followed by gains only: the average loss halves each
	// step (period 2) but never reaches zero.
	// RSI: 50, 75, 87.5, 93.75, 96.875
	closes := []float64{10, 9, 10, 11, 12, 13, 14}
	got := RSI(closes, 2)
	assert.Less(t, got.Last().V, 100.0)
	assert.Greater(t, got.Last().V, 90.0)
}

func TestRSI_TooShort(t *testing.T) {
	assert.Equal(t, 0, RSI([]float64{1, 2, 3}, 14).Count())
	assert.Empty(t, RSI(nil, 14))
}

// ────────────────────────────────────────────────────────────
// Stochastic
// ────────────────────────────────────────────────────────────

func TestStochastic_Correctness(t *testing.T) {
	highs := []float64{10, 12, 14}
	lows := []float64{8, 9, 10}
	closes := []float64{9, 11, 13}
	// %K[2] = (13-8)/(14-8)*100
	// %D = SMA2 of [0, 0, K2] with absent %K taken as 0
	k2 := (13.0 - 8.0) / 6.0 * 100.0
	got := Stochastic(highs, lows, closes, 3, 2)
	assertSeries(t, "%K", got.K, []float64{absent, absent, k2})
	assertSeries(t, "%D", got.D, []float64{absent, 0, k2 / 2})
}

func TestStochastic_ZeroRangeIsZero(t *testing.T) {
	flat := []float64{7, 7, 7, 7, 7}
	got := Stochastic(flat, flat, flat, 3, 3)
	assertSeries(t, "%K", got.K, []float64{absent, absent, 0, 0, 0})
}

func TestStochastic_WithinBounds(t *testing.T) {
	closes := wave(100, 100, 6)
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		highs[i] = c + 1
		lows[i] = c - 1
	}
	got := Stochastic(highs, lows, closes, 14, 3)
	for i := 13; i < len(closes); i++ {
		assert.GreaterOrEqual(t, got.K[i].V, 0.0)
		assert.LessOrEqual(t, got.K[i].V, 100.0)
	}
}

// ────────────────────────────────────────────────────────────
// MACD / Bollinger
// ────────────────────────────────────────────────────────────

func TestMACD_SignalTreatsAbsentAsZero(t *testing.T) {
	// EMA2 (k=2/3): 1, 5/3, 23/9, 95/27    exposed from i=1
	// EMA3 (k=1/2): 1, 3/2, 9/4, 25/8      exposed from i=2
	// line:  -, -, 11/36, 85/216
	// signal = EMA2 over [0, 0, 11/36, 85/216]: 0, 0, 11/54, 107/324
	got := MACD([]float64{1, 2, 3, 4}, 2, 3, 2)
	assertSeries(t, "line", got.Line, []float64{absent, absent, 11.0 / 36, 85.0 / 216})
	assertSeries(t, "signal", got.Signal, []float64{absent, 0, 11.0 / 54, 107.0 / 324})
	assertSeries(t, "hist", got.Hist, []float64{absent, absent, 11.0 / 108, 41.0 / 648})
}

func TestMACD_DefaultWarmUp(t *testing.T) {
	got := MACD(wave(40, 100, 4), 12, 26, 9)
	assert.False(t, got.Line[24].Ready)
	assert.True(t, got.Line[25].Ready)
	assert.False(t, got.Signal[7].Ready)
	assert.True(t, got.Signal[8].Ready)
	assert.False(t, got.Hist[24].Ready)
	assert.True(t, got.Hist[25].Ready)
}

func TestBollinger_Correctness(t *testing.T) {
	// mid 2, population sd sqrt(2/3)
	sd := math.Sqrt(2.0 / 3.0)
	got := Bollinger([]float64{1, 2, 3}, 3, 2)
	assertSeries(t, "mid", got.Mid, []float64{absent, absent, 2})
	assertSeries(t, "upper", got.Upper, []float64{absent, absent, 2 + 2*sd})
	assertSeries(t, "lower", got.Lower, []float64{absent, absent, 2 - 2*sd})
}

func TestBollinger_Ordering(t *testing.T) {
	got := Bollinger(wave(80, 100, 10), 20, 2)
	for i := range got.Mid {
		if !got.Mid[i].Ready {
			continue
		}
		assert.GreaterOrEqual(t, got.Upper[i].V, got.Mid[i].V)
		assert.GreaterOrEqual(t, got.Mid[i].V, got.Lower[i].V)
	}
}

func TestBollinger_FlatSeriesCollapses(t *testing.T) {
	got := Bollinger([]float64{4, 4, 4, 4}, 3, 2)
	assert.Equal(t, 4.0, got.Upper.Last().V)
	assert.Equal(t, 4.0, got.Lower.Last().V)
}

// ────────────────────────────────────────────────────────────
// ATR / OBV / Ichimoku
// ────────────────────────────────────────────────────────────

func TestTrueRange_Correctness(t *testing.T) {
	highs := []float64{10, 11, 15}
	lows := []float64{8, 9, 12}
	closes := []float64{9, 10, 14}
	// i=0: 10-8 = 2
	// i=1: max(2, |11-9|, |9-9|) = 2
	// i=2: max(3, |15-10|, |12-10|) = 5
	assert.Equal(t, []float64{2, 2, 5}, TrueRange(highs, lows, closes))

	// EMA2 of TR: 2, 2, 2+(5-2)*2/3 = 4
	assertSeries(t, "ATR(2)", ATR(highs, lows, closes, 2), []float64{absent, 2, 4})
}

func TestOBV_Correctness(t *testing.T) {
	closes := []float64{10, 11, 10, 10, 12}
	volumes := []float64{5, 3, 2, 7, 4}
	assert.Equal(t, []float64{0, 3, 1, 1, 5}, OBV(closes, volumes))
}

func TestOBV_NoDirectionChange(t *testing.T) {
	got := OBV([]float64{10, 10, 10, 10}, []float64{1, 2, 3, 4})
	assert.Equal(t, []float64{0, 0, 0, 0}, got)
}

func TestOBV_StepMatchesDirection(t *testing.T) {
	closes := wave(50, 20, 2)
	volumes := wave(50, 1000, 100)
	got := OBV(closes, volumes)
	assert.Equal(t, 0.0, got[0])
	for i := 1; i < len(closes); i++ {
		step := got[i] - got[i-1]
		switch {
		case closes[i] > closes[i-1]:
			assert.InDelta(t, volumes[i], step, 1e-6)
		case closes[i] < closes[i-1]:
			assert.InDelta(t, -volumes[i], step, 1e-6)
		default:
			assert.Equal(t, 0.0, step)
		}
	}
}

func TestIchimoku_Correctness(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = float64(10 + i)
		lows[i] = float64(5 + i)
	}
	got := IchimokuLines(highs, lows, 9, 26)

	assert.False(t, got.Tenkan[7].Ready)
	// window 0..8: highest 18, lowest 5
	assert.Equal(t, Some(11.5), got.Tenkan[8])
	assert.False(t, got.Kijun[24].Ready)
	// window 0..25: highest 35, lowest 5
	assert.Equal(t, Some(20.0), got.Kijun[25])
	// window 21..29: highest 39, lowest 26
	assert.Equal(t, Some(32.5), got.Tenkan[29])
}

// ────────────────────────────────────────────────────────────
// Value
// ────────────────────────────────────────────────────────────

func TestValue_ZeroIsAbsent(t *testing.T) {
	var v Value
	_, ok := v.Get()
	assert.False(t, ok)
	assert.Equal(t, 7.0, v.Or(7))
	assert.Equal(t, "-", v.Format(4))
	assert.Equal(t, "1.2346", Some(1.23456).Format(4))
}

func TestSeries_ZeroFilled(t *testing.T) {
	s := Series{{}, Some(2), {}, Some(-1)}
	assert.Equal(t, []float64{0, 2, 0, -1}, s.ZeroFilled())
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, Some(-1), s.Last())
	assert.Equal(t, Value{}, Series{}.Last())
}
