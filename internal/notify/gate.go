package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/pulsewatch/internal/metrics"
)

const defaultSendTimeout = 30 * time.Second

// Notification outcomes reported to metrics.
const (
	OutcomeSent      = "sent"
	OutcomeDebounced = "debounced"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
)

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithMetrics records notification outcomes.
func WithMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithSendTimeout bounds a single delivery.
func WithSendTimeout(d time.Duration) GateOption {
	return func(g *Gate) { g.sendTimeout = d }
}

// Gate suppresses repeated alerts for the same endpoint within a debounce
// window. The record of last sends lives for the lifetime of the process.
type Gate struct {
	sender      Sender
	host        string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	sendTimeout time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time

	inflight sync.WaitGroup
}

// NewGate creates a [Gate]. When host is set, a status page link is appended
// to every message.
func NewGate(sender Sender, host string, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		sender:      sender,
		host:        host,
		logger:      logger,
		now:         time.Now,
		sendTimeout: defaultSendTimeout,
		lastSent:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Notify sends message unless an alert for endpointID went out less than
// debounce ago. Delivery runs in the background so a slow receiver never
// holds up the caller; failures are logged and never returned.
func (g *Gate) Notify(ctx context.Context, endpointID, message, webhookURL string, debounce time.Duration) {
	if endpointID == "" {
		g.metrics.ObserveNotification(OutcomeInvalid)
		g.logger.Error("notification dropped, endpoint has no id", "message", message)
		return
	}

	now := g.now()
	if !g.claim(endpointID, now, debounce) {
		g.metrics.ObserveNotification(OutcomeDebounced)
		g.logger.Debug("notification debounced", "endpoint", endpointID)
		return
	}

	if g.host != "" {
		message += "\n\nstatus page: " + g.host
	}
	if g.sender == nil {
		return
	}

	alert := Alert{
		EndpointID: endpointID,
		Text:       message,
		WebhookURL: webhookURL,
		OccurredAt: now,
	}
	sendCtx := context.WithoutCancel(ctx)
	g.inflight.Go(func() {
		g.deliver(sendCtx, alert)
	})
}

// Wait blocks until every accepted notification has been delivered or has
// failed. Call it after the last Notify.
func (g *Gate) Wait() {
	g.inflight.Wait()
}

func (g *Gate) deliver(ctx context.Context, alert Alert) {
	ctx, cancel := context.WithTimeout(ctx, g.sendTimeout)
	defer cancel()

	err := g.sender.Send(ctx, alert)
	switch {
	case errors.Is(err, ErrNoDestination):
		g.logger.Debug("notification has no destination", "endpoint", alert.EndpointID)
	case err != nil:
		g.metrics.ObserveNotification(OutcomeFailed)
		g.logger.Error("failed to send notification", "endpoint", alert.EndpointID, "error", err)
	default:
		g.metrics.ObserveNotification(OutcomeSent)
		g.logger.Info("notification sent", "endpoint", alert.EndpointID)
	}
}

// claim records now as the last send time for endpointID unless the
// previous send is still inside the debounce window. The record is written
// before delivery so that concurrent triggers send once.
func (g *Gate) claim(endpointID string, now time.Time, debounce time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastSent[endpointID]; ok && now.Sub(last) < debounce {
		return false
	}
	g.lastSent[endpointID] = now
	return true
}

// LastSent returns the time of the last accepted notification for endpointID.
func (g *Gate) LastSent(endpointID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.lastSent[endpointID]
	return t, ok
}
