package indicator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ta-snapshot/internal/model"
)

// ErrInvalidInput is returned when the input series are empty or their
// lengths differ. No partial Summary is produced in that case.
var ErrInvalidInput = errors.New("invalid input")

// Summary is the most recent value of every indicator for one series.
// Close and OBV are always present; every other field is present only when
// the series is long enough for that indicator's warm-up.
type Summary struct {
	Close      float64 `json:"close"`
	SMA        Value   `json:"sma"`
	EMA        Value   `json:"ema"`
	RSI        Value   `json:"rsi"`
	MACD       Value   `json:"macd"`
	MACDSignal Value   `json:"macd_signal"`
	MACDHist   Value   `json:"macd_hist"`
	BBUpper    Value   `json:"bb_upper"`
	BBMid      Value   `json:"bb_mid"`
	BBLower    Value   `json:"bb_lower"`
	ATR        Value   `json:"atr"`
	StochK     Value   `json:"stoch_k"`
	StochD     Value   `json:"stoch_d"`
	OBV        float64 `json:"obv"`
	Tenkan     Value   `json:"tenkan"`
	Kijun      Value   `json:"kijun"`

	// Params the summary was computed with; used for rendering labels.
	Params Params `json:"params"`
}

// Compute evaluates every indicator with DefaultParams and keeps the last value.
func Compute(closes, highs, lows, volumes []float64) (Summary, error) {
	return ComputeWith(DefaultParams(), closes, highs, lows, volumes)
}

// ComputeBars splits bars into columns and calls Compute.
func ComputeBars(bars []model.Bar) (Summary, error) {
	return ComputeBarsWith(DefaultParams(), bars)
}

// ComputeBarsWith splits bars into columns and calls ComputeWith.
func ComputeBarsWith(p Params, bars []model.Bar) (Summary, error) {
	closes, highs, lows, volumes := model.Columns(bars)
	return ComputeWith(p, closes, highs, lows, volumes)
}

// ComputeWith evaluates every indicator over the full series and reduces
// each output to its final index. The four series must be non-empty and of
// equal length.
func ComputeWith(p Params, closes, highs, lows, volumes []float64) (Summary, error) {
	if err := checkInput(closes, highs, lows, volumes); err != nil {
		return Summary{}, err
	}
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}

	macd := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	bb := Bollinger(closes, p.BBPeriod, p.BBK)
	stoch := Stochastic(highs, lows, closes, p.StochK, p.StochD)
	ich := IchimokuLines(highs, lows, p.TenkanPeriod, p.KijunPeriod)
	obv := OBV(closes, volumes)

	return Summary{
		Close:      closes[len(closes)-1],
		SMA:        SMA(closes, p.SMAPeriod).Last(),
		EMA:        EMA(closes, p.EMAPeriod).Last(),
		RSI:        RSI(closes, p.RSIPeriod).Last(),
		MACD:       macd.Line.Last(),
		MACDSignal: macd.Signal.Last(),
		MACDHist:   macd.Hist.Last(),
		BBUpper:    bb.Upper.Last(),
		BBMid:      bb.Mid.Last(),
		BBLower:    bb.Lower.Last(),
		ATR:        ATR(highs, lows, closes, p.ATRPeriod).Last(),
		StochK:     stoch.K.Last(),
		StochD:     stoch.D.Last(),
		OBV:        obv[len(obv)-1],
		Tenkan:     ich.Tenkan.Last(),
		Kijun:      ich.Kijun.Last(),
		Params:     p,
	}, nil
}

func checkInput(closes, highs, lows, volumes []float64) error {
	n := len(closes)
	if n == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidInput)
	}
	if len(highs) != n || len(lows) != n || len(volumes) != n {
		return fmt.Errorf("%w: series length mismatch (close=%d high=%d low=%d volume=%d)",
			ErrInvalidInput, n, len(highs), len(lows), len(volumes))
	}
	return nil
}

// String renders the summary in a fixed line-per-indicator format.
// Prices use 4 decimals, RSI and stochastic 2, OBV 0; absent values are "-".
func (s Summary) String() string {
	p := s.Params
	if p == (Params{}) {
		p = DefaultParams()
	}
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	line("Close: %s", strconv.FormatFloat(s.Close, 'f', 4, 64))
	line("SMA%d: %s", p.SMAPeriod, s.SMA.Format(4))
	line("EMA%d: %s", p.EMAPeriod, s.EMA.Format(4))
	line("RSI%d: %s", p.RSIPeriod, s.RSI.Format(2))
	line("MACD: %s  Signal: %s  Hist: %s", s.MACD.Format(4), s.MACDSignal.Format(4), s.MACDHist.Format(4))
	line("BB: U=%s M=%s L=%s", s.BBUpper.Format(4), s.BBMid.Format(4), s.BBLower.Format(4))
	line("ATR%d: %s", p.ATRPeriod, s.ATR.Format(4))
	line("Stoch: %%K=%s %%D=%s", s.StochK.Format(2), s.StochD.Format(2))
	line("OBV: %s", strconv.FormatFloat(s.OBV, 'f', 0, 64))
	line("Ichimoku: Tenkan=%s Kijun=%s", s.Tenkan.Format(4), s.Kijun.Format(4))
	return b.String()
}
