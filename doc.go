// Package pulsewatch is a continuous health prober for HTTP endpoints.
//
// Pulsewatch checks a catalog of sites on a fixed cadence, records timing
// and correctness of every check in a bounded history, persists the result
// as a JSON status document, and sends debounced alerts when an endpoint
// keeps failing or keeps responding slowly. It can be embedded as a library
// or run from the pulsewatch command.
//
// # Quick Start
//
// Load a YAML configuration and run until interrupted:
//
//	pw, _ := pulsewatch.New(pulsewatch.WithConfigFile("pulsewatch.yaml"))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	pw.Start(ctx) // blocks until context is cancelled
//
// # Configuration in code
//
// Sites, endpoints and grids can also be built with functional options:
//
//	health, _ := pulsewatch.NewEndpoint("Health", "https://api.example.com/health",
//	    pulsewatch.WithMustFind("ok"),
//	)
//	blocks, _ := pulsewatch.NewEndpoint("Blocks", "https://api.example.com/blocks",
//	    pulsewatch.WithJQ(`.blocks | length > 0`),
//	    pulsewatch.WithInterval(30 * time.Minute),
//	)
//	site, _ := pulsewatch.NewSite("API", pulsewatch.WithEndpoints(health, blocks))
//
//	pw, err := pulsewatch.New(
//	    pulsewatch.WithSites(site),
//	    pulsewatch.WithWebhookURL("https://hooks.example.com/alerts"),
//	)
//
// Settings cascade from endpoint to site to global defaults; the first
// level that defines a setting wins.
//
// # Checks
//
// A check fails on a transport error or timeout, an unaccepted status
// code, a failed must_find or must_not_find predicate, a failed
// [CustomCheck], or content that has not changed for longer than the stale
// interval. Built-in custom checks are [JSONFieldCheck] and [JQCheck];
// any Go function can be used through [CheckFunc].
//
// # Architecture
//
// Pulsewatch consists of several internal packages (under internal/):
//
//   - internal/resolve: Settings cascade and defaults
//   - internal/checker: HTTP probing, predicates and custom checks
//   - internal/poller: Cycle scheduler and bounded worker pool
//   - internal/state: Status document persistence with pub/sub for live updates
//   - internal/notify: Debounced alert delivery to webhooks and topics
//   - internal/server: HTTP server with status API, Server-Sent Events and metrics
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pulsewatch
