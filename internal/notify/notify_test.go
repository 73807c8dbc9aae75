package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"

	"github.com/jpalmerr/pulsewatch/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (s *recordingSender) Send(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return s.err
}

func (s *recordingSender) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestGate_DebounceSendsOncePerWindow(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := &clock{now: time.Unix(1_700_000_000, 0)}
	g := NewGate(NewWebhookSender(), "", testLogger(), WithClock(c.Now))

	ctx := context.Background()
	g.Notify(ctx, "api", "first", srv.URL, time.Hour)
	c.now = c.now.Add(59 * time.Minute)
	g.Notify(ctx, "api", "second", srv.URL, time.Hour)
	g.Wait()

	assert.Equal(t, int32(1), posts.Load())

	c.now = c.now.Add(time.Minute)
	g.Notify(ctx, "api", "third", srv.URL, time.Hour)
	g.Wait()
	assert.Equal(t, int32(2), posts.Load())
}

func TestGate_DebounceIsPerEndpoint(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(sender, "", testLogger())

	g.Notify(context.Background(), "a", "down", "", time.Hour)
	g.Notify(context.Background(), "b", "down", "", time.Hour)
	g.Notify(context.Background(), "a", "down", "", time.Hour)
	g.Wait()

	var ids []string
	for _, a := range sender.Alerts() {
		ids = append(ids, a.EndpointID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestGate_ConcurrentTriggersSendOnce(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(sender, "", testLogger())

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			g.Notify(context.Background(), "api", "down", "", time.Hour)
		})
	}
	wg.Wait()
	g.Wait()

	assert.Len(t, sender.Alerts(), 1)
}

func TestGate_AppendsHostLink(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(sender, "https://status.example.com", testLogger())

	g.Notify(context.Background(), "api", "🔥 ERROR", "https://hooks.example.com", time.Hour)
	g.Wait()

	alerts := sender.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "🔥 ERROR\n\nstatus page: https://status.example.com", alerts[0].Text)
	assert.Equal(t, "https://hooks.example.com", alerts[0].WebhookURL)
}

func TestGate_EmptyEndpointIDIsNoop(t *testing.T) {
	sender := &recordingSender{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGate(sender, "", testLogger(), WithMetrics(m))

	g.Notify(context.Background(), "", "down", "", time.Hour)
	g.Wait()

	assert.Empty(t, sender.Alerts())
	assert.Equal(t, 1.0, notifications(t, reg, OutcomeInvalid))
	_, ok := g.LastSent("")
	assert.False(t, ok)
}

func TestGate_SendFailureStillRecordsTimestamp(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	g := NewGate(sender, "", testLogger(), WithClock(c.Now))

	g.Notify(context.Background(), "api", "down", "", time.Hour)
	g.Notify(context.Background(), "api", "down", "", time.Hour)
	g.Wait()

	assert.Len(t, sender.Alerts(), 1)
	last, ok := g.LastSent("api")
	require.True(t, ok)
	assert.Equal(t, c.now, last)
}

func TestGate_SlowSenderDoesNotBlockNotify(t *testing.T) {
	release := make(chan struct{})
	delivered := make(chan Alert, 1)
	sender := SenderFunc(func(_ context.Context, a Alert) error {
		<-release
		delivered <- a
		return nil
	})
	g := NewGate(sender, "", testLogger())

	returned := make(chan struct{})
	go func() {
		g.Notify(context.Background(), "api", "down", "", time.Hour)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a slow sender")
	}

	close(release)
	g.Wait()
	require.Len(t, delivered, 1)
	assert.Equal(t, "api", (<-delivered).EndpointID)
}

func TestGate_NoDestinationIsNotCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGate(MultiSender{NewWebhookSender()}, "", testLogger(), WithMetrics(m))

	g.Notify(context.Background(), "api", "down", "", time.Hour)
	g.Wait()

	assert.Zero(t, notifications(t, reg, OutcomeSent))
	assert.Zero(t, notifications(t, reg, OutcomeFailed))
	_, ok := g.LastSent("api")
	assert.True(t, ok, "the debounce window still starts")
}

func TestGate_CancelledContextStillSends(t *testing.T) {
	sender := SenderFunc(func(ctx context.Context, _ Alert) error {
		return ctx.Err()
	})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGate(sender, "", testLogger(), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.Notify(ctx, "api", "down", "", time.Hour)
	g.Wait()

	assert.Equal(t, 1.0, notifications(t, reg, OutcomeSent))
}

// notifications returns the pulsewatch_notifications_total sample for outcome.
func notifications(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "pulsewatch_notifications_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestGate_MetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sender := &recordingSender{}
	g := NewGate(sender, "", testLogger(), WithMetrics(m))

	g.Notify(context.Background(), "api", "down", "", time.Hour)
	g.Notify(context.Background(), "api", "down", "", time.Hour)
	g.Wait()

	assert.Equal(t, 1.0, notifications(t, reg, OutcomeSent))
	assert.Equal(t, 1.0, notifications(t, reg, OutcomeDebounced))

	sender.mu.Lock()
	sender.err = errors.New("boom")
	sender.mu.Unlock()
	g.Notify(context.Background(), "other", "down", "", time.Hour)
	g.Wait()
	assert.Equal(t, 1.0, notifications(t, reg, OutcomeFailed))
}

func TestWebhookSender_Payload(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(
		WithSecret("s3cret"),
		WithHeaders(map[string]string{"X-Team": "infra"}),
	)
	err := s.Send(context.Background(), Alert{EndpointID: "api", Text: "hello", WebhookURL: srv.URL})
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, map[string]string{"content": "hello"}, payload)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotHeader.Get("X-Signature"))
	assert.Equal(t, "infra", gotHeader.Get("X-Team"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
}

func TestWebhookSender_NoURLHasNoDestination(t *testing.T) {
	s := NewWebhookSender()
	err := s.Send(context.Background(), Alert{EndpointID: "api", Text: "x"})
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestWebhookSender_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrSenderRateLimited},
		{"server error", http.StatusInternalServerError, ErrSenderDropped},
		{"not found", http.StatusNotFound, ErrSenderDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewWebhookSender().Send(context.Background(), Alert{Text: "x", WebhookURL: srv.URL})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMultiSender_JoinsErrors(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("boom")}

	err := MultiSender{bad, nil, ok}.Send(context.Background(), Alert{EndpointID: "api"})

	assert.EqualError(t, err, "boom")
	assert.Len(t, ok.Alerts(), 1)
	assert.Len(t, bad.Alerts(), 1)
}

func TestMultiSender_NoDestination(t *testing.T) {
	webhook := NewWebhookSender()
	err := MultiSender{webhook, nil}.Send(context.Background(), Alert{EndpointID: "api"})
	assert.ErrorIs(t, err, ErrNoDestination)

	ok := &recordingSender{}
	err = MultiSender{webhook, ok}.Send(context.Background(), Alert{EndpointID: "api"})
	assert.NoError(t, err)
	assert.Len(t, ok.Alerts(), 1)
}

func TestTopicSender_Publishes(t *testing.T) {
	ctx := context.Background()

	sender, err := OpenTopicSender(ctx, "mem://alerts")
	require.NoError(t, err)
	defer func() { _ = sender.Shutdown(ctx) }()

	sub, err := pubsub.OpenSubscription(ctx, "mem://alerts")
	require.NoError(t, err)
	defer func() { _ = sub.Shutdown(ctx) }()

	occurred := time.Unix(1_700_000_000, 0).UTC()
	err = sender.Send(ctx, Alert{EndpointID: "api", Text: "down", WebhookURL: "https://secret", OccurredAt: occurred})
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.Receive(recvCtx)
	require.NoError(t, err)
	msg.Ack()

	assert.Equal(t, "api", msg.Metadata["endpoint_id"])

	var got Alert
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, "api", got.EndpointID)
	assert.Equal(t, "down", got.Text)
	assert.Empty(t, got.WebhookURL)
	assert.True(t, occurred.Equal(got.OccurredAt))
}
