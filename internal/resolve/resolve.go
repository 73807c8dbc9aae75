// Package resolve merges endpoint, site and global settings into the
// effective configuration of a single probe.
package resolve

import (
	"time"

	"dario.cat/mergo"

	"github.com/jpalmerr/pulsewatch/config"
)

// Hard-coded fallbacks for every resolvable key.
const (
	DefaultResponseTimeGood             = 3 * time.Second
	DefaultResponseTimeWarning          = 60 * time.Second
	DefaultTimeout                      = 120 * time.Second
	DefaultConsecutiveErrorsNotify      = 3
	DefaultConsecutiveHighLatencyNotify = 5
	DefaultInterval                     = 5 * time.Minute
	DefaultLogsMaxDatapoints            = 200
	DefaultConcurrency                  = 3
	DefaultNotifyEvery                  = 60 * time.Minute
	DefaultNDataPoints                  = 90
)

// Effective is a fully resolved set of settings. Every field is defined.
type Effective struct {
	Interval                     time.Duration
	ResponseTimeGood             time.Duration
	ResponseTimeWarning          time.Duration
	Timeout                      time.Duration
	ConsecutiveErrorsNotify      int
	ConsecutiveHighLatencyNotify int
	LogsMaxDatapoints            int

	// StaleCheckInterval is zero when stale detection is disabled.
	StaleCheckInterval time.Duration

	Concurrency int

	// WebhookURL is empty when no webhook is configured.
	WebhookURL string

	NotifyEvery time.Duration
}

// Defaults returns the hard-coded layer as [config.Settings].
func Defaults() config.Settings {
	return config.Settings{
		Interval:                     config.Dur(DefaultInterval),
		ResponseTimeGood:             config.Dur(DefaultResponseTimeGood),
		ResponseTimeWarning:          config.Dur(DefaultResponseTimeWarning),
		Timeout:                      config.Dur(DefaultTimeout),
		ConsecutiveErrorsNotify:      config.Ptr(DefaultConsecutiveErrorsNotify),
		ConsecutiveHighLatencyNotify: config.Ptr(DefaultConsecutiveHighLatencyNotify),
		LogsMaxDatapoints:            config.Ptr(DefaultLogsMaxDatapoints),
		StaleCheckInterval:           config.Dur(0),
		Concurrency:                  config.Ptr(DefaultConcurrency),
		WebhookURL:                   config.Ptr(""),
		NotifyEvery:                  config.Dur(DefaultNotifyEvery),
	}
}

// Resolve returns, for every key, the first value defined in layers, in
// order, falling back to [Defaults]. Callers pass the most specific layer
// first: Resolve(endpoint, site, global).
//
// A key counts as defined when its pointer is non-nil, so an explicit zero at
// the endpoint level overrides a non-zero site value.
func Resolve(layers ...config.Settings) Effective {
	var merged config.Settings
	for _, layer := range layers {
		mergeLayer(&merged, layer)
	}
	mergeLayer(&merged, Defaults())

	return Effective{
		Interval:                     merged.Interval.Duration(),
		ResponseTimeGood:             merged.ResponseTimeGood.Duration(),
		ResponseTimeWarning:          merged.ResponseTimeWarning.Duration(),
		Timeout:                      merged.Timeout.Duration(),
		ConsecutiveErrorsNotify:      *merged.ConsecutiveErrorsNotify,
		ConsecutiveHighLatencyNotify: *merged.ConsecutiveHighLatencyNotify,
		LogsMaxDatapoints:            *merged.LogsMaxDatapoints,
		StaleCheckInterval:           merged.StaleCheckInterval.Duration(),
		Concurrency:                  *merged.Concurrency,
		WebhookURL:                   *merged.WebhookURL,
		NotifyEvery:                  merged.NotifyEvery.Duration(),
	}
}

// mergeLayer fills every nil field of dst from layer.
func mergeLayer(dst *config.Settings, layer config.Settings) {
	// mergo only fails for mismatched or non-struct arguments, which the
	// signature rules out
	_ = mergo.Merge(dst, layer, mergo.WithoutDereference)
}
