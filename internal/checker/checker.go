package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/jpalmerr/pulsewatch/internal/metrics"
	"github.com/jpalmerr/pulsewatch/internal/resolve"
	"github.com/jpalmerr/pulsewatch/internal/state"
)

// cadenceSlack is subtracted from an endpoint's interval before deciding
// whether it was probed recently enough to skip.
const cadenceSlack = 2 * time.Minute

var (
	errNoTarget    = errors.New("No URL or customCheck function was provided for this test")
	errMustFind    = errors.New(`"mustFind" check failed`)
	errMustNotFind = errors.New(`"mustNotFind" check failed`)
	errCustomCheck = errors.New(`"customCheck" check failed`)
)

// Recorder stores check results. It is implemented by [state.Store].
type Recorder interface {
	History(ref state.Ref) []state.Entry
	Apply(ref state.Ref, entry state.Entry, maxLen int, highLatency bool) state.Streak
}

// Notifier delivers debounced alerts. It is implemented by notify.Gate.
type Notifier interface {
	Notify(ctx context.Context, endpointID, message, webhookURL string, debounce time.Duration)
}

// Job is one endpoint check within a cycle.
type Job struct {
	Ref      state.Ref
	Endpoint Endpoint
	Settings resolve.Effective

	// FirstRun bypasses the cadence gate so every endpoint gets a reading
	// on the first cycle of the process.
	FirstRun bool
}

// Outcome is the result of [Checker.Run].
type Outcome struct {
	Entry  state.Entry
	Streak state.Streak

	// Skipped is set when the cadence gate skipped the check; Entry and
	// Streak are zero and nothing was recorded.
	Skipped bool
}

// Option configures a [Checker].
type Option func(*Checker)

// WithClock replaces time.Now for timestamps and the cadence gate.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// WithMetrics records check results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithVerbose logs every result at info level instead of debug.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// Checker executes single endpoint checks.
//
// Run never fails: transport errors, unexpected statuses, failed
// predicates, custom check errors and panics all end up as the error text of
// the recorded entry. Checker holds no per-endpoint state of its own; history
// and streaks live in the [Recorder].
type Checker struct {
	client   *Client
	recorder Recorder
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	verbose  bool
}

// New creates a [Checker].
func New(client *Client, recorder Recorder, notifier Notifier, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		client:   client,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run checks one endpoint, records exactly one entry and raises an alert
// when a streak reaches its threshold. Checks skipped by the cadence gate
// or failed because ctx was cancelled record nothing.
func (c *Checker) Run(ctx context.Context, job Job) Outcome {
	history := c.recorder.History(job.Ref)
	now := c.now()

	if !job.FirstRun && recentlyChecked(history, job.Settings.Interval, now) {
		c.metrics.ObserveSkip(job.Ref.SiteID, job.Ref.EndpointID)
		c.logger.Debug("check skipped, probed within interval",
			"site", job.Ref.SiteID,
			"endpoint", job.Ref.EndpointID,
		)
		return Outcome{Skipped: true}
	}

	entry := c.evaluate(ctx, job, history, now)
	if entry.Failed() && interrupted(ctx) {
		c.logger.Debug("check interrupted, nothing recorded",
			"site", job.Ref.SiteID,
			"endpoint", job.Ref.EndpointID,
		)
		return Outcome{Skipped: true}
	}

	highLatency := !entry.Failed() && entry.TTFB.Valid && entry.TTFB.Float64 > millis(job.Settings.ResponseTimeWarning)
	streak := c.recorder.Apply(job.Ref, entry, job.Settings.LogsMaxDatapoints, highLatency)

	c.metrics.ObserveCheck(job.Ref.SiteID, job.Ref.EndpointID, entry.Failed(),
		time.Duration(entry.Dur*float64(time.Millisecond)), streak.ConsecutiveErrors)
	c.logResult(ctx, job, entry)
	c.alert(ctx, job, entry, streak)

	return Outcome{Entry: entry, Streak: streak}
}

// interrupted reports whether ctx was cancelled rather than timed out.
func interrupted(ctx context.Context) bool {
	err := ctx.Err()
	return err != nil && !errors.Is(err, context.DeadlineExceeded)
}

// recentlyChecked reports whether the newest entry is younger than
// interval minus [cadenceSlack].
func recentlyChecked(history []state.Entry, interval time.Duration, now time.Time) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	if last.T == 0 {
		return false
	}
	return now.Sub(time.UnixMilli(last.T)) < interval-cadenceSlack
}

// evaluate runs the probe and converts every failure, including panics,
// into the entry's error.
func (c *Checker) evaluate(ctx context.Context, job Job, history []state.Entry, now time.Time) (entry state.Entry) {
	entry = state.Entry{T: now.UnixMilli()}
	start := c.now()

	defer func() {
		if r := recover(); r != nil {
			entry.Err = null.StringFrom(c.recovered(job, "check", r))
		}
		if entry.Failed() && !entry.TTFB.Valid {
			elapsed := millis(c.now().Sub(start))
			entry.Dur = elapsed
			entry.TTFB = null.FloatFrom(elapsed)
		}
	}()

	if err := c.probe(ctx, job, history, &entry, start); err != nil {
		entry.Err = null.StringFrom(err.Error())
	}
	return entry
}

func (c *Checker) probe(ctx context.Context, job Job, history []state.Entry, entry *state.Entry, start time.Time) error {
	ep := job.Endpoint
	if ep.ConfigErr != nil {
		return ep.ConfigErr
	}
	if ep.URL == "" && ep.Check == nil {
		return errNoTarget
	}

	var (
		content []byte
		resp    *Response
	)

	if ep.URL != "" {
		r := c.client.Fetch(ctx, Request{
			Method:  ep.Request.Method,
			URL:     ep.URL,
			Headers: ep.Request.Headers,
			Body:    ep.Request.Body,
			Timeout: job.Settings.Timeout,
		})
		recordTimings(entry, r.Timings)
		if r.Error != nil {
			return r.Error
		}
		resp = &r
		content = r.Body

		if len(content) > 0 {
			entry.ContentHash = null.StringFrom(HashContent(content))
		}

		if !statusAccepted(ep.ValidStatus, r.StatusCode) {
			return fmt.Errorf("HTTP Status %d: %s", r.StatusCode, http.StatusText(r.StatusCode))
		}
		if ep.MustFind != nil && !ep.MustFind.Match(string(content)) {
			return errMustFind
		}
		if ep.MustNotFind != nil && ep.MustNotFind.Match(string(content)) {
			return errMustNotFind
		}
	}

	if ep.Check != nil {
		in := &Input{
			Content:  string(content),
			JSON:     parseJSON(content),
			Response: resp,
			Ref:      job.Ref,
			URL:      ep.URL,
			Entry:    entry,
			Logs:     history,
		}
		ok, err := c.runCheck(ctx, job, in)
		if ep.URL == "" {
			elapsed := millis(c.now().Sub(start))
			entry.Dur = elapsed
			entry.TTFB = null.FloatFrom(elapsed)
		}
		if err != nil {
			return err
		}
		if !ok {
			return errCustomCheck
		}
	}

	return staleError(job.Settings.StaleCheckInterval, *entry, history)
}

// runCheck invokes the custom check, bounded by the endpoint timeout.
func (c *Checker) runCheck(ctx context.Context, job Job, in *Input) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = errors.New(c.recovered(job, "custom check", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, job.Settings.Timeout)
	defer cancel()

	return job.Endpoint.Check.Check(ctx, in)
}

// recovered logs a panic with a correlation id and returns the error text
// recorded for it.
func (c *Checker) recovered(job Job, what string, r any) string {
	correlationID := uuid.NewString()
	c.logger.Error(what+" panicked",
		"site", job.Ref.SiteID,
		"endpoint", job.Ref.EndpointID,
		"panic", r,
		"correlation_id", correlationID,
		"stack", string(debug.Stack()),
	)
	return fmt.Sprintf("%s panicked: %v (correlation_id: %s)", what, r, correlationID)
}

// staleError reports content that has not changed for longer than interval,
// measured from the earliest prior entry with the same hash.
func staleError(interval time.Duration, entry state.Entry, history []state.Entry) error {
	if interval <= 0 || !entry.ContentHash.Valid {
		return nil
	}

	for _, prior := range history {
		if !prior.ContentHash.Valid || prior.ContentHash.String != entry.ContentHash.String || prior.T == 0 {
			continue
		}
		age := time.Duration(entry.T-prior.T) * time.Millisecond
		if age > interval {
			return fmt.Errorf("Stale response, contentHash is %s same response for the past %.2f hours",
				entry.ContentHash.String, age.Hours())
		}
		return nil
	}
	return nil
}

// HashContent returns the content hash recorded on entries: 64-bit xxHash
// in hex. It detects change, not tampering.
func HashContent(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

func statusAccepted(valid []int, code int) bool {
	if len(valid) == 0 {
		return code >= 200 && code < 300
	}
	return slices.Contains(valid, code)
}

func parseJSON(content []byte) any {
	if len(content) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return nil
	}
	return v
}

func recordTimings(entry *state.Entry, t Timings) {
	entry.Dur = millis(t.Total)
	if t.DNS.Valid {
		entry.DNS = null.FloatFrom(millis(t.DNS.Duration))
	}
	if t.Connect.Valid {
		entry.TCP = null.FloatFrom(millis(t.Connect.Duration))
	}
	if t.TTFB.Valid {
		entry.TTFB = null.FloatFrom(millis(t.TTFB.Duration))
	} else {
		entry.TTFB = null.FloatFrom(entry.Dur)
	}
	if t.Download.Valid {
		entry.DLL = null.FloatFrom(millis(t.Download.Duration))
	}
}

// millis converts d to milliseconds rounded to two decimals.
func millis(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
