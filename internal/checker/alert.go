package checker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpalmerr/pulsewatch/internal/state"
)

// Latency classes used in result logs.
const (
	latencyGood    = "good"
	latencyWarning = "warning"
	latencyHigh    = "high"
)

// alert requests a notification when a streak has reached its threshold.
// The notifier's debounce window keeps repeated triggers from flooding.
func (c *Checker) alert(ctx context.Context, job Job, entry state.Entry, streak state.Streak) {
	s := job.Settings

	var message string
	switch {
	case entry.Failed() && streak.ConsecutiveErrors > 0 && streak.ConsecutiveErrors >= s.ConsecutiveErrorsNotify:
		message = ErrorMessage(job.Ref, entry)
	case !entry.Failed() && streak.ConsecutiveHighLatency > 0 && streak.ConsecutiveHighLatency >= s.ConsecutiveHighLatencyNotify:
		message = HighLatencyMessage(job.Ref, entry)
	default:
		return
	}

	c.notifier.Notify(ctx, job.Ref.EndpointID, message, s.WebhookURL, s.NotifyEvery)
}

// ErrorMessage formats the alert for an error streak.
func ErrorMessage(ref state.Ref, entry state.Entry) string {
	var b strings.Builder
	b.WriteString("🔥 ERROR\n")
	fmt.Fprintf(&b, "%s — %s [%.2fms]\n", ref.SiteName, ref.EndpointName, entry.TTFB.Float64)
	fmt.Fprintf(&b, "→ %s", entry.Err.String)
	writeLink(&b, ref)
	return b.String()
}

// HighLatencyMessage formats the alert for a high-latency streak.
func HighLatencyMessage(ref state.Ref, entry state.Entry) string {
	var b strings.Builder
	b.WriteString("🟥 High Latency\n")
	fmt.Fprintf(&b, "%s — %s [%.2fms]\n", ref.SiteName, ref.EndpointName, entry.TTFB.Float64)
	writeLink(&b, ref)
	return b.String()
}

func writeLink(b *strings.Builder, ref state.Ref) {
	if ref.LinkDisabled || ref.Link == "" {
		return
	}
	fmt.Fprintf(b, "\n→ %s", ref.Link)
}

func (c *Checker) logResult(ctx context.Context, job Job, entry state.Entry) {
	level := slog.LevelDebug
	if c.verbose {
		level = slog.LevelInfo
	}

	attrs := []any{
		"site", job.Ref.SiteID,
		"endpoint", job.Ref.EndpointID,
		"ttfb_ms", entry.TTFB.Float64,
	}

	if entry.Failed() {
		c.logger.Warn("check failed", append(attrs, "error", entry.Err.String)...)
		return
	}

	latency := latencyGood
	switch {
	case entry.TTFB.Float64 > millis(job.Settings.ResponseTimeWarning):
		latency = latencyHigh
	case entry.TTFB.Float64 > millis(job.Settings.ResponseTimeGood):
		latency = latencyWarning
	}
	c.logger.Log(ctx, level, "check passed", append(attrs, "latency", latency)...)
}
