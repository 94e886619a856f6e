package model

import "strings"

// SeriesKey identifies one bar series: an instrument at one bar interval.
type SeriesKey struct {
	InstID string `json:"inst_id"` // e.g. "BTC-USDT-SWAP"
	Bar    string `json:"bar"`     // e.g. "1H", "15m", "1D"
}

// String returns "instID:bar".
func (k SeriesKey) String() string {
	return k.InstID + ":" + k.Bar
}

// ParseSeriesKey parses "instID:bar". The bar part is required.
func ParseSeriesKey(s string) (SeriesKey, bool) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return SeriesKey{}, false
	}
	inst := strings.TrimSpace(s[:i])
	bar := strings.TrimSpace(s[i+1:])
	if inst == "" || bar == "" {
		return SeriesKey{}, false
	}
	return SeriesKey{InstID: inst, Bar: bar}, true
}
