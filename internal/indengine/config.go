package indengine

import (
	"time"

	"ta-snapshot/config"
	"ta-snapshot/internal/indicator"
	"ta-snapshot/internal/model"
)

// Config holds the service settings derived from the process configuration.
type Config struct {
	Targets      []model.SeriesKey
	Params       indicator.Params
	BarLimit     int
	PollInterval time.Duration
	HTTPAddr     string // empty disables the HTTP server
	SourceName   string // metrics label, e.g. "okx"
}

// ConfigFrom extracts the service settings from c.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Targets:      c.ParseTargets(),
		Params:       c.Indicators.Params(),
		BarLimit:     c.Source.BarLimit,
		PollInterval: c.Source.PollInterval,
		HTTPAddr:     c.App.HTTPAddr,
		SourceName:   c.Source.Kind,
	}
}
