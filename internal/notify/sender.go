package notify

import (
	"context"
	"errors"
	"time"
)

// ErrSenderRateLimited is returned when the receiving end answered 429.
var ErrSenderRateLimited = errors.New("sender rate limited")

// ErrSenderDropped is returned when an alert could not be delivered, for
// example because a webhook answered with a non-2xx status.
var ErrSenderDropped = errors.New("sender message dropped")

// ErrNoDestination is returned by a sender that had nowhere to deliver an
// alert, for example a webhook sender given an empty URL.
var ErrNoDestination = errors.New("sender has no destination")

// Alert is a single notification leaving the gate.
type Alert struct {
	EndpointID string    `json:"endpointId"`
	Text       string    `json:"text"`
	WebhookURL string    `json:"-"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sender delivers an alert to an external channel.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, alert Alert) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// MultiSender sends every alert to each of its senders and joins the errors.
type MultiSender []Sender

// Send delivers alert to all senders, even when some of them fail. It
// returns [ErrNoDestination] only when no sender had a destination.
func (m MultiSender) Send(ctx context.Context, alert Alert) error {
	var (
		errs      []error
		attempted bool
	)
	for _, s := range m {
		if s == nil {
			continue
		}
		err := s.Send(ctx, alert)
		if errors.Is(err, ErrNoDestination) {
			continue
		}
		attempted = true
		if err != nil {
			errs = append(errs, err)
		}
	}
	if !attempted {
		return ErrNoDestination
	}
	return errors.Join(errs...)
}
