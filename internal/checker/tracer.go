package checker

import (
	"net/http/httptrace"
	"sync"
	"time"
)

// Phase is one measured part of a request. Valid is false when the phase
// did not happen, such as DNS on a reused connection.
type Phase struct {
	Duration time.Duration
	Valid    bool
}

// Timings is the breakdown of one request.
//
// When the transport reported nothing (the request failed before a
// connection was acquired), only Total is set.
type Timings struct {
	Total    time.Duration
	DNS      Phase
	Connect  Phase
	TTFB     Phase
	Download Phase
}

// Tracer records connection events of a single request through
// net/http/httptrace.
type Tracer struct {
	mu           sync.Mutex
	connStart    time.Time
	connAcquired time.Time
	dnsStart     time.Time
	dnsDone      time.Time
	connectStart time.Time
	connectDone  time.Time
	firstByte    time.Time
}

// NewTracer returns an empty [Tracer].
func NewTracer() *Tracer {
	return &Tracer{}
}

// ClientTrace returns the hooks to attach to the request context.
func (t *Tracer) ClientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) {
			t.mark(&t.connStart)
		},
		GotConn: func(httptrace.GotConnInfo) {
			t.mark(&t.connAcquired)
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			t.mark(&t.dnsStart)
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mark(&t.dnsDone)
		},
		ConnectStart: func(string, string) {
			t.mark(&t.connectStart)
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				t.mark(&t.connectDone)
			}
		},
		GotFirstResponseByte: func() {
			t.mark(&t.firstByte)
		},
	}
}

// mark records the first occurrence of an event; dialers racing several
// addresses fire connect hooks more than once.
func (t *Tracer) mark(at *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at.IsZero() {
		*at = time.Now()
	}
}

// Timings returns the breakdown of a request that started at start and whose
// body was fully read at end.
func (t *Tracer) Timings(start, end time.Time) Timings {
	t.mu.Lock()
	defer t.mu.Unlock()

	timings := Timings{Total: end.Sub(start)}
	timings.DNS = span(t.dnsStart, t.dnsDone)
	timings.Connect = span(t.connectStart, t.connectDone)
	timings.TTFB = span(t.connAcquired, t.firstByte)
	timings.Download = span(t.firstByte, end)
	return timings
}

func span(from, to time.Time) Phase {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return Phase{}
	}
	return Phase{Duration: to.Sub(from), Valid: true}
}
