package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/internal/checker"
	"github.com/jpalmerr/pulsewatch/internal/metrics"
	"github.com/jpalmerr/pulsewatch/internal/resolve"
	"github.com/jpalmerr/pulsewatch/internal/state"
)

// Result is delivered to the [ResultHandler] after every endpoint check.
type Result struct {
	Ref      state.Ref
	Settings resolve.Effective
	Outcome  checker.Outcome
}

// ResultHandler receives check results. It is called concurrently from the
// pool's goroutines and must not block for long.
type ResultHandler func(Result)

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithMetrics records cycle durations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock replaces time.Now when measuring cycle durations.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithShuffler replaces the per-cycle endpoint shuffle. Pass a seeded
// *rand.Rand to make the order reproducible.
func WithShuffler(sh Shuffler) Option {
	return func(s *Scheduler) { s.shuffler = &lockedShuffler{s: sh} }
}

// WithResultHandler registers fn to receive every check result.
func WithResultHandler(fn ResultHandler) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// Scheduler runs pulse cycles until its context is cancelled.
//
// The scheduler starts in first-run mode, in which the cadence gate is
// bypassed so every endpoint gets a reading, and switches to steady state
// after the first complete cycle. Every cycle reads the latest snapshot from
// the [config.Source], so configuration reloads take effect on the next
// cycle without restarting.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	source   config.Source
	checker  *checker.Checker
	store    *state.Store
	registry *checker.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	shuffler Shuffler
	onResult ResultHandler

	firstRun atomic.Bool

	planMu  sync.Mutex
	planCfg *config.Config
	plan    *Plan

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a [Scheduler] in first-run mode.
func NewScheduler(source config.Source, chk *checker.Checker, store *state.Store, registry *checker.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		checker:  chk,
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
		shuffler: globalShuffler{},
	}
	s.firstRun.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FirstRun reports whether the first full cycle is still pending.
func (s *Scheduler) FirstRun() bool {
	return s.firstRun.Load()
}

// Start runs the loop in a background goroutine and returns immediately.
//
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Go(func() {
		_ = s.Run(runCtx)
	})
}

// Stop cancels the loop started by Start and waits for the in-flight cycle
// to finish. Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Run executes cycles back to back, sleeping max(0, interval - elapsed)
// between them. It only returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	s.logger.Info("scheduler started")

	for {
		start := s.now()
		interval, err := s.RunCycle(ctx)
		if err != nil {
			s.logger.Error("cycle failed", "error", err)
		}
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		}

		wait := max(0, interval-s.now().Sub(start))
		s.logger.Debug("sleeping until next cycle", "duration", wait)
		if !s.sleep(ctx, wait) {
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		}
	}
}

// sleep waits for d, logging configuration changes as they arrive. It
// returns false when ctx is cancelled first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	changes := s.source.Changes()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case cfg, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.logger.Info("configuration changed, applying on next cycle", "sites", len(cfg.Sites))
		}
	}
}

// RunCycle performs one pulse over every site and saves the state document.
// It returns the interval to wait before the next cycle. Errors, including
// recovered panics, are returned for logging only; the next cycle is always
// safe to run.
func (s *Scheduler) RunCycle(ctx context.Context) (interval time.Duration, err error) {
	interval = resolve.DefaultInterval
	start := s.now()

	span := sentry.StartSpan(ctx, "function", sentry.WithDescription("Pulse Cycle"))
	ctx = span.Context()
	defer span.Finish()

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("cycle panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("cycle panicked: %v (correlation_id: %s)", r, correlationID)
			capture(ctx, err)
		}
	}()

	cfg := s.source.Current()
	if cfg == nil {
		return interval, fmt.Errorf("no configuration available")
	}

	plan, err := s.planFor(cfg)
	if err != nil {
		capture(ctx, err)
		return resolve.Resolve(cfg.Settings).Interval, err
	}
	interval = plan.Interval

	if !s.store.Loaded() {
		if err := s.store.Load(ctx); err != nil {
			s.logger.Error("failed to load state, continuing with in-memory document", "error", err)
			capture(ctx, err)
		}
	}
	s.store.BeginCycle(plan.Display, plan.UI)

	var shuffler Shuffler
	if cfg.ShuffleEnabled() {
		shuffler = s.shuffler
	}
	firstRun := s.firstRun.Load()

	var wg sync.WaitGroup
	for _, site := range plan.Sites {
		wg.Go(func() {
			s.runSite(ctx, site, shuffler, firstRun)
		})
	}
	wg.Wait()

	// a cycle interrupted by shutdown still persists what it recorded
	if err := s.store.Save(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to save state", "error", err)
		capture(ctx, err)
	}

	s.firstRun.Store(false)
	duration := s.now().Sub(start)
	s.metrics.ObserveCycle(duration)
	s.logger.Info("pulse completed",
		"sites", len(plan.Sites),
		"endpoints", plan.Endpoints(),
		"duration", duration,
	)
	return interval, nil
}

// planFor returns the cached plan when cfg is the snapshot it was built from.
// A snapshot that fails to build falls back to the previous plan, if any.
func (s *Scheduler) planFor(cfg *config.Config) (*Plan, error) {
	s.planMu.Lock()
	defer s.planMu.Unlock()

	if s.plan != nil && s.planCfg == cfg {
		return s.plan, nil
	}

	plan, err := BuildPlan(cfg, s.registry)
	if err != nil {
		if s.plan != nil {
			s.logger.Error("invalid configuration, keeping previous plan", "error", err)
			return s.plan, nil
		}
		return nil, err
	}
	s.plan, s.planCfg = plan, cfg
	return plan, nil
}

func (s *Scheduler) runSite(ctx context.Context, site SitePlan, shuffler Shuffler, firstRun bool) {
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.recovered(ctx, "site", site.ID, r)
		}
	}()

	RunPool(ctx, site.Jobs, site.Concurrency, shuffler, func(ctx context.Context, job checker.Job) {
		s.runJob(ctx, job, firstRun)
	})

	s.logger.Info("site processed",
		"site", site.ID,
		"endpoints", len(site.Jobs),
		"duration", s.now().Sub(start),
	)
}

func (s *Scheduler) runJob(ctx context.Context, job checker.Job, firstRun bool) {
	defer func() {
		if r := recover(); r != nil {
			s.recovered(ctx, "endpoint", job.Ref.EndpointID, r)
		}
	}()

	job.FirstRun = firstRun
	outcome := s.checker.Run(ctx, job)
	if s.onResult != nil {
		s.onResult(Result{Ref: job.Ref, Settings: job.Settings, Outcome: outcome})
	}
}

// recovered logs a panic from a pool goroutine with a correlation id and
// reports it to Sentry.
func (s *Scheduler) recovered(ctx context.Context, scope, id string, r any) {
	correlationID := uuid.NewString()
	s.logger.Error(scope+" panic",
		scope, id,
		"correlation_id", correlationID,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)
	capture(ctx, fmt.Errorf("%s %s panicked: %v (correlation_id: %s)", scope, id, r, correlationID))
}

func capture(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	}
}

// globalShuffler uses the math/rand/v2 top-level generator, which is safe
// for concurrent use.
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// lockedShuffler serializes access to a shuffler shared by concurrent sites.
type lockedShuffler struct {
	mu sync.Mutex
	s  Shuffler
}

func (l *lockedShuffler) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Shuffle(n, swap)
}
