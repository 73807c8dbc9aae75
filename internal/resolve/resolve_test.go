package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jpalmerr/pulsewatch/config"
)

func TestResolve_Defaults(t *testing.T) {
	got := Resolve()

	assert.Equal(t, Effective{
		Interval:                     5 * time.Minute,
		ResponseTimeGood:             3 * time.Second,
		ResponseTimeWarning:          60 * time.Second,
		Timeout:                      120 * time.Second,
		ConsecutiveErrorsNotify:      3,
		ConsecutiveHighLatencyNotify: 5,
		LogsMaxDatapoints:            200,
		StaleCheckInterval:           0,
		Concurrency:                  3,
		WebhookURL:                   "",
		NotifyEvery:                  60 * time.Minute,
	}, got)
}

func TestResolve_Precedence(t *testing.T) {
	global := config.Settings{
		Timeout:     config.Dur(30 * time.Second),
		Interval:    config.Dur(10 * time.Minute),
		WebhookURL:  config.Ptr("https://hooks.example.com/global"),
		Concurrency: config.Ptr(8),
	}
	site := config.Settings{
		Timeout:    config.Dur(20 * time.Second),
		WebhookURL: config.Ptr("https://hooks.example.com/site"),
	}
	endpoint := config.Settings{
		Timeout: config.Dur(5 * time.Second),
	}

	got := Resolve(endpoint, site, global)

	assert.Equal(t, 5*time.Second, got.Timeout, "endpoint wins")
	assert.Equal(t, "https://hooks.example.com/site", got.WebhookURL, "site beats global")
	assert.Equal(t, 10*time.Minute, got.Interval, "global beats default")
	assert.Equal(t, 8, got.Concurrency)
	assert.Equal(t, 3, got.ConsecutiveErrorsNotify, "default when undefined everywhere")
}

func TestResolve_ExplicitZeroIsDefined(t *testing.T) {
	site := config.Settings{StaleCheckInterval: config.Dur(2 * time.Hour)}
	endpoint := config.Settings{StaleCheckInterval: config.Dur(0)}

	got := Resolve(endpoint, site, config.Settings{})

	assert.Zero(t, got.StaleCheckInterval, "explicit zero at endpoint level disables stale checks")
}

func TestResolve_DoesNotMutateLayers(t *testing.T) {
	site := config.Settings{Timeout: config.Dur(20 * time.Second)}
	endpoint := config.Settings{}

	Resolve(endpoint, site)

	assert.Nil(t, endpoint.Timeout)
	assert.Equal(t, 20*time.Second, site.Timeout.Duration())
}
