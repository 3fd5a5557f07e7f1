package provider

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Options configure a provider variant. Zero values fall back to the
// variant's defaults, which mirror the live platforms.
type Options struct {
	BaseURL          string
	MinimumBalance   int64
	TransferFraction float64
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

func (o Options) withDefaults(baseURL string, minimum int64) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.MinimumBalance <= 0 {
		o.MinimumBalance = minimum
	}
	if o.TransferFraction <= 0 {
		o.TransferFraction = 0.9
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
