package pulsewatch

import (
	"time"

	"github.com/jpalmerr/pulsewatch/internal/poller"
)

// Status classifies the outcome of a single check.
//
// Status is a string type so it serializes and logs in a human-readable form.
type Status string

const (
	// StatusUp indicates the check passed within the good response time.
	StatusUp Status = "up"

	// StatusSlow indicates the check passed but the time to first byte
	// exceeded the good response time.
	StatusSlow Status = "slow"

	// StatusHighLatency indicates the check passed but the time to first byte
	// exceeded the warning response time. Such checks count toward the high
	// latency streak.
	StatusHighLatency Status = "high_latency"

	// StatusDown indicates the check failed; [StatusResult.Error] holds the reason.
	StatusDown Status = "down"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// StatusResult holds the outcome of checking a single endpoint.
//
// StatusResult is a copy; modifying it does not affect the recorded history.
type StatusResult struct {
	SiteID       string
	SiteName     string
	EndpointID   string
	EndpointName string

	// Status is the classification of this check.
	Status Status

	// CheckedAt is when the check started.
	CheckedAt time.Time

	// Duration is the total time of the check.
	Duration time.Duration

	// TTFB is the time to first byte, or the total duration when the
	// transport gave no finer breakdown.
	TTFB time.Duration

	// ContentHash is the hash of the response body, empty when none was taken.
	ContentHash string

	// Error is the failure reason, empty when the check passed.
	Error string

	// ConsecutiveErrors and ConsecutiveHighLatency are the endpoint's streaks
	// after this check. At most one of them is non-zero.
	ConsecutiveErrors      int
	ConsecutiveHighLatency int
}

// toStatusResult converts a scheduler result to the public type.
func toStatusResult(r poller.Result) StatusResult {
	entry := r.Outcome.Entry
	ttfb := entry.Dur
	if entry.TTFB.Valid {
		ttfb = entry.TTFB.Float64
	}

	result := StatusResult{
		SiteID:                 r.Ref.SiteID,
		SiteName:               r.Ref.SiteName,
		EndpointID:             r.Ref.EndpointID,
		EndpointName:           r.Ref.EndpointName,
		CheckedAt:              time.UnixMilli(entry.T),
		Duration:               fromMillis(entry.Dur),
		TTFB:                   fromMillis(ttfb),
		ContentHash:            entry.ContentHash.String,
		Error:                  entry.Err.String,
		ConsecutiveErrors:      r.Outcome.Streak.ConsecutiveErrors,
		ConsecutiveHighLatency: r.Outcome.Streak.ConsecutiveHighLatency,
	}

	switch {
	case entry.Failed():
		result.Status = StatusDown
	case result.TTFB > r.Settings.ResponseTimeWarning:
		result.Status = StatusHighLatency
	case result.TTFB > r.Settings.ResponseTimeGood:
		result.Status = StatusSlow
	default:
		result.Status = StatusUp
	}
	return result
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
