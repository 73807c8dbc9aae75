package pulsewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/dashboard"
	"github.com/jpalmerr/pulsewatch/internal/checker"
	"github.com/jpalmerr/pulsewatch/internal/metrics"
	"github.com/jpalmerr/pulsewatch/internal/notify"
	"github.com/jpalmerr/pulsewatch/internal/poller"
	"github.com/jpalmerr/pulsewatch/internal/server"
	"github.com/jpalmerr/pulsewatch/internal/state"
)

const (
	defaultPort     = 8080
	shutdownTimeout = 10 * time.Second
)

// Pulsewatch is the main orchestrator: it runs the pulse cycle over every
// configured endpoint, persists the status document, delivers alerts and
// serves the dashboard.
//
// It is created using [New] with functional options and started with
// [Pulsewatch.Start]:
//
//	pw, err := pulsewatch.New(pulsewatch.WithConfigFile("pulsewatch.yaml"))
//	if err != nil {
//	    slog.Error("failed to create pulsewatch", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	pw.Start(ctx) // blocks until context cancelled
type Pulsewatch struct {
	source     config.Source
	fileSource *config.FileSource
	registry   *checker.Registry
	metricsReg *prometheus.Registry
	logger     *slog.Logger
	senders    []Sender
	shuffle    poller.Shuffler

	callbacks []func(StatusResult)
	cbMu      sync.Mutex
}

// New creates a [Pulsewatch] instance with the given options.
//
// A configuration is required: either a source ([WithConfigFile],
// [WithConfig], [WithSource]) or at least one site via [WithSites].
//
// Returns an error if the configuration is missing or invalid, if a
// source is combined with programmatic settings, or if two checks or
// predicates are registered under the same name.
func New(opts ...Option) (*Pulsewatch, error) {
	cfg := &pwConfig{port: defaultPort}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	pw := &Pulsewatch{
		registry:   checker.NewRegistry(),
		metricsReg: cfg.registry,
		logger:     logger,
		senders:    cfg.senders,
		callbacks:  cfg.statusCallbacks,
	}
	if pw.metricsReg == nil {
		pw.metricsReg = prometheus.NewRegistry()
	}
	if cfg.shuffle != nil {
		pw.shuffle = cfg.shuffle
	}

	sources := 0
	for _, set := range []bool{cfg.source != nil, cfg.configFile != "", cfg.programmed} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, errors.New("a configuration source or at least one site is required")
	case sources > 1:
		return nil, errors.New("only one of WithConfigFile, WithConfig, WithSource or programmatic sites may be used")
	}

	checks := cfg.checks
	switch {
	case cfg.configFile != "":
		fs, err := config.NewFileSource(cfg.configFile, logger)
		if err != nil {
			return nil, err
		}
		pw.source, pw.fileSource = fs, fs
	case cfg.source != nil:
		pw.source = cfg.source
	default:
		built, err := cfg.buildConfig()
		if err != nil {
			return nil, err
		}
		pw.source = config.NewStaticSource(built)
		for _, site := range cfg.sites {
			checks = append(checks, site.checks...)
		}
	}

	if pw.source.Current() == nil {
		return nil, errors.New("configuration source has no configuration")
	}

	seen := make(map[string]bool, len(checks))
	for _, c := range checks {
		if seen[c.name] {
			return nil, fmt.Errorf("duplicate check name: %q", c.name)
		}
		seen[c.name] = true
		if c.check != nil {
			pw.registry.RegisterCheck(c.name, c.check)
		} else {
			pw.registry.RegisterPredicate(c.name, c.predicate)
		}
	}

	return pw, nil
}

// buildConfig assembles and validates the configuration of a programmatic
// instance.
func (cfg *pwConfig) buildConfig() (*config.Config, error) {
	if len(cfg.sites) == 0 {
		return nil, errors.New("at least one site is required")
	}

	c := &config.Config{
		Title:  cfg.title,
		Host:   cfg.host,
		State:  config.StateConfig{Dir: cfg.stateDir, BucketURL: cfg.bucketURL},
		Server: config.ServerConfig{Port: cfg.port},
	}
	if cfg.interval > 0 {
		c.Interval = config.Dur(cfg.interval)
	}
	if cfg.concurrency > 0 {
		c.Concurrency = config.Ptr(cfg.concurrency)
	}
	if cfg.webhookURL != "" {
		c.WebhookURL = config.Ptr(cfg.webhookURL)
	}
	for _, site := range cfg.sites {
		sc := site.cfg
		sc.Endpoints = make([]config.EndpointConfig, len(site.cfg.Endpoints))
		for i, ep := range site.cfg.Endpoints {
			sc.Endpoints[i] = cloneEndpointConfig(ep)
		}
		c.Sites = append(c.Sites, sc)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Config returns the configuration the next cycle will use.
func (pw *Pulsewatch) Config() *config.Config {
	return pw.source.Current()
}

// Start runs pulse cycles and serves the dashboard until ctx is cancelled.
//
// Start is a blocking call. During execution:
//
//   - Every endpoint is checked immediately, then each cycle starts one
//     interval after the previous one started
//   - The status document is written after every cycle
//   - The HTTP server starts if a port is configured
//   - A configuration file, if used, is watched for changes
//
// The state location, alerting senders and server port are read from the
// configuration once, at start. Start may be called once per instance.
//
// Returns nil on graceful shutdown. Returns an error if the state bucket,
// an alert topic or the HTTP server cannot be opened.
func (pw *Pulsewatch) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	cfg := pw.source.Current()
	pw.logger.Info("pulsewatch starting", "title", cfg.Title, "site_count", len(cfg.Sites))

	bucket, err := state.OpenBucket(ctx, cfg.State.Dir, cfg.State.BucketURL)
	if err != nil {
		return err
	}
	defer bucket.Close()

	store := state.New(bucket, pw.logger, state.Options{
		Key:    cfg.State.Key,
		Pretty: cfg.State.ReadableStatus,
	})
	if err := store.Init(ctx); err != nil {
		return err
	}

	m := metrics.New(pw.metricsReg)

	senders := notify.MultiSender{notify.NewWebhookSender(
		notify.WithSecret(cfg.Alerting.WebhookSecret),
		notify.WithHeaders(cfg.Alerting.WebhookHeaders),
	)}
	if cfg.Alerting.TopicURL != "" {
		topic, err := notify.OpenTopicSender(ctx, cfg.Alerting.TopicURL)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := topic.Shutdown(shutdownCtx); err != nil {
				pw.logger.Warn("failed to shut down alert topic", "error", err)
			}
		}()
		senders = append(senders, topic)
	}
	senders = append(senders, pw.senders...)
	gate := notify.NewGate(senders, cfg.Host, pw.logger, notify.WithMetrics(m))

	client := checker.NewClient()
	defer client.Close()
	chk := checker.New(client, store, gate, pw.logger,
		checker.WithMetrics(m),
		checker.WithVerbose(cfg.Verbose),
	)

	schedOpts := []poller.Option{
		poller.WithMetrics(m),
		poller.WithResultHandler(pw.handleResult),
	}
	if pw.shuffle != nil {
		schedOpts = append(schedOpts, poller.WithShuffler(pw.shuffle))
	}
	scheduler := poller.NewScheduler(pw.source, chk, store, pw.registry, pw.logger, schedOpts...)

	var wg sync.WaitGroup
	watchCtx, stopWatch := context.WithCancel(ctx)
	if pw.fileSource != nil {
		wg.Go(func() {
			if err := pw.fileSource.Watch(watchCtx); err != nil {
				pw.logger.Warn("config file is not watched", "error", err)
			}
		})
	}

	// cleanup stops the scheduler, which waits for the running cycle to save,
	// then drains alerts still in flight
	cleanup := func() {
		scheduler.Stop()
		gate.Wait()
		stopWatch()
		wg.Wait()
	}

	scheduler.Start(ctx)

	if cfg.Server.Port > 0 {
		httpServer := server.NewServer(store, cfg.Server.Port, dashboard.Assets, cfg.Title, pw.logger,
			server.WithMetricsHandler(promhttp.HandlerFor(pw.metricsReg, promhttp.HandlerOpts{})),
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		)
		if err := httpServer.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		pw.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	}

	<-ctx.Done()
	cleanup()
	pw.logger.Info("pulsewatch stopped")
	return nil
}

// handleResult converts a scheduler result and invokes the status callbacks.
func (pw *Pulsewatch) handleResult(r poller.Result) {
	if len(pw.callbacks) == 0 || r.Outcome.Skipped {
		return
	}

	result := toStatusResult(r)

	pw.cbMu.Lock()
	defer pw.cbMu.Unlock()
	for _, cb := range pw.callbacks {
		invokeCallbackSafe(cb, result, pw.logger)
	}
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(StatusResult), result StatusResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"site", result.SiteID,
				"endpoint", result.EndpointID,
			)
		}
	}()
	cb(result)
}
