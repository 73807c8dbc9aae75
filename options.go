package pulsewatch

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/internal/notify"
)

// Alert is an outgoing alert notification.
type Alert = notify.Alert

// Sender delivers alerts. Senders registered with [WithSender] receive every
// alert that passes the debounce window, alongside the configured webhook.
type Sender = notify.Sender

// SenderFunc adapts a function to [Sender].
type SenderFunc = notify.SenderFunc

// pwConfig holds mutable state during Pulsewatch construction.
type pwConfig struct {
	source     config.Source
	configFile string

	// programmatic configuration, exclusive with source and configFile
	sites       []Site
	programmed  bool
	title       string
	host        string
	port        int
	interval    time.Duration
	concurrency int
	webhookURL  string
	stateDir    string
	bucketURL   string

	logger          *slog.Logger
	statusCallbacks []func(StatusResult)
	checks          []namedCheck
	senders         []Sender
	shuffle         *rand.Rand
	registry        *prometheus.Registry
}

// Option is a function that configures a [Pulsewatch] instance during
// construction. Options return an error if validation fails.
//
// The configuration comes either from a source ([WithConfigFile],
// [WithConfig], [WithSource]) or is built in code ([WithSites] plus the
// global options such as [WithPort]); the two cannot be combined.
type Option func(*pwConfig) error

// WithConfigFile loads the YAML configuration at path, applies PULSEWATCH_*
// environment overrides, and reloads it whenever the file changes.
//
// A reload that fails to parse keeps the previous configuration. The
// changes apply from the next cycle; the dashboard port and state location
// are read once at start.
func WithConfigFile(path string) Option {
	return func(cfg *pwConfig) error {
		if path == "" {
			return errors.New("config file path cannot be empty")
		}
		cfg.configFile = path
		return nil
	}
}

// WithConfig uses a configuration built in code. c is validated by [New].
func WithConfig(c *config.Config) Option {
	return func(cfg *pwConfig) error {
		if c == nil {
			return errors.New("config cannot be nil")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg.source = config.NewStaticSource(c)
		return nil
	}
}

// WithSource reads the configuration of every cycle from src.
func WithSource(src config.Source) Option {
	return func(cfg *pwConfig) error {
		if src == nil {
			return errors.New("source cannot be nil")
		}
		cfg.source = src
		return nil
	}
}

// WithSites adds sites to a configuration built in code.
//
// Example:
//
//	pw, err := pulsewatch.New(
//	    pulsewatch.WithSites(indexer, rpc),
//	    pulsewatch.WithPollingInterval(5 * time.Minute),
//	)
func WithSites(sites ...Site) Option {
	return func(cfg *pwConfig) error {
		cfg.sites = append(cfg.sites, sites...)
		cfg.programmed = true
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "Pulsewatch".
func WithTitle(title string) Option {
	return func(cfg *pwConfig) error {
		cfg.title = title
		cfg.programmed = true
		return nil
	}
}

// WithHost sets the status page URL appended to alert messages.
func WithHost(host string) Option {
	return func(cfg *pwConfig) error {
		cfg.host = host
		cfg.programmed = true
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080;
// zero disables the server.
//
// Returns an error if the port is outside the valid range (0-65535).
func WithPort(port int) Option {
	return func(cfg *pwConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		cfg.programmed = true
		return nil
	}
}

// WithPollingInterval sets the global probe interval, which is also the time
// between the starts of two cycles. Defaults to 5 minutes.
//
// Returns an error if the interval is shorter than 1 second.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *pwConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.interval = d
		cfg.programmed = true
		return nil
	}
}

// WithConcurrency sets the default per-site concurrency.
//
// Returns an error if the value is zero or negative.
func WithConcurrency(n int) Option {
	return func(cfg *pwConfig) error {
		if n <= 0 {
			return errors.New("concurrency must be positive")
		}
		cfg.concurrency = n
		cfg.programmed = true
		return nil
	}
}

// WithWebhookURL sets the default alert webhook.
func WithWebhookURL(url string) Option {
	return func(cfg *pwConfig) error {
		cfg.webhookURL = url
		cfg.programmed = true
		return nil
	}
}

// WithStateDir sets the directory holding the status document. Defaults
// to "data".
func WithStateDir(dir string) Option {
	return func(cfg *pwConfig) error {
		cfg.stateDir = dir
		cfg.programmed = true
		return nil
	}
}

// WithBucketURL stores the status document in a gocloud.dev bucket, for
// example "mem://" or "file:///var/lib/pulsewatch". It takes precedence
// over [WithStateDir].
func WithBucketURL(url string) Option {
	return func(cfg *pwConfig) error {
		cfg.bucketURL = url
		cfg.programmed = true
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Pulsewatch instance.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pwConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function to be called after every
// completed check. Skipped checks do not invoke callbacks.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks are serialized, so they never run concurrently with each other,
// but a blocking callback delays the checks of every site. Panics within
// callbacks are recovered and logged.
//
// Example:
//
//	pw, err := pulsewatch.New(
//	    pulsewatch.WithSites(site),
//	    pulsewatch.WithStatusCallback(func(result pulsewatch.StatusResult) {
//	        if result.Status == pulsewatch.StatusDown {
//	            log.Printf("ALERT: %s is down: %s", result.EndpointName, result.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(StatusResult)) Option {
	return func(cfg *pwConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}

// WithNamedCheck registers a Go [CustomCheck] that YAML configuration
// refers to as `check: name`.
func WithNamedCheck(name string, check CustomCheck) Option {
	return func(cfg *pwConfig) error {
		if name == "" || check == nil {
			return errors.New("WithNamedCheck requires a name and a check")
		}
		cfg.checks = append(cfg.checks, namedCheck{name: name, check: check})
		return nil
	}
}

// WithNamedPredicate registers a Go [Predicate] that YAML configuration
// refers to as `must_find: {predicate: name}`.
func WithNamedPredicate(name string, p Predicate) Option {
	return func(cfg *pwConfig) error {
		if name == "" || p == nil {
			return errors.New("WithNamedPredicate requires a name and a predicate")
		}
		cfg.checks = append(cfg.checks, namedCheck{name: name, predicate: p})
		return nil
	}
}

// WithSender adds a [Sender] that receives every alert passing the
// debounce window.
func WithSender(s Sender) Option {
	return func(cfg *pwConfig) error {
		if s == nil {
			return errors.New("sender cannot be nil")
		}
		cfg.senders = append(cfg.senders, s)
		return nil
	}
}

// WithShuffleSeed makes the per-cycle endpoint order reproducible.
func WithShuffleSeed(seed uint64) Option {
	return func(cfg *pwConfig) error {
		cfg.shuffle = rand.New(rand.NewPCG(seed, seed))
		return nil
	}
}

// WithMetricsRegistry registers the Prometheus collectors with reg and
// serves it at /metrics. By default each instance uses its own registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *pwConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
