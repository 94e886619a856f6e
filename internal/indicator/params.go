package indicator

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when Params fail validation.
var ErrInvalidParams = errors.New("invalid indicator params")

// Params holds every period the Summary is computed with.
type Params struct {
	SMAPeriod    int     `json:"sma_period"`
	EMAPeriod    int     `json:"ema_period"`
	RSIPeriod    int     `json:"rsi_period"`
	MACDFast     int     `json:"macd_fast"`
	MACDSlow     int     `json:"macd_slow"`
	MACDSignal   int     `json:"macd_signal"`
	BBPeriod     int     `json:"bb_period"`
	BBK          float64 `json:"bb_k"`
	ATRPeriod    int     `json:"atr_period"`
	StochK       int     `json:"stoch_k"`
	StochD       int     `json:"stoch_d"`
	TenkanPeriod int     `json:"tenkan_period"`
	KijunPeriod  int     `json:"kijun_period"`
}

// DefaultParams returns the classical settings: SMA/EMA 20, RSI 14,
// MACD 12/26/9, Bollinger 20/2, ATR 14, Stochastic 14/3, Ichimoku 9/26.
func DefaultParams() Params {
	return Params{
		SMAPeriod:    20,
		EMAPeriod:    20,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBPeriod:     20,
		BBK:          2.0,
		ATRPeriod:    14,
		StochK:       14,
		StochD:       3,
		TenkanPeriod: 9,
		KijunPeriod:  26,
	}
}

// Validate checks that all periods are positive, MACD fast < slow, and the
// band width is non-negative.
func (p Params) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"sma_period", p.SMAPeriod},
		{"ema_period", p.EMAPeriod},
		{"rsi_period", p.RSIPeriod},
		{"macd_fast", p.MACDFast},
		{"macd_slow", p.MACDSlow},
		{"macd_signal", p.MACDSignal},
		{"bb_period", p.BBPeriod},
		{"atr_period", p.ATRPeriod},
		{"stoch_k", p.StochK},
		{"stoch_d", p.StochD},
		{"tenkan_period", p.TenkanPeriod},
		{"kijun_period", p.KijunPeriod},
	}
	for _, pp := range periods {
		if pp.v <= 0 {
			return fmt.Errorf("%w: %s=%d must be positive", ErrInvalidParams, pp.name, pp.v)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("%w: macd_fast=%d must be below macd_slow=%d", ErrInvalidParams, p.MACDFast, p.MACDSlow)
	}
	if p.BBK < 0 {
		return fmt.Errorf("%w: bb_k=%g must not be negative", ErrInvalidParams, p.BBK)
	}
	return nil
}
