package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
)

// TopicSender publishes alerts as JSON messages to a pub/sub topic so that
// other processes can fan them out. Any gocloud.dev topic URL is accepted:
// mem://, nats://, kafka:// and rabbit:// drivers are linked in.
type TopicSender struct {
	topic *pubsub.Topic
}

// OpenTopicSender opens the topic at url.
func OpenTopicSender(ctx context.Context, url string) (*TopicSender, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening alert topic: %w", err)
	}
	return &TopicSender{topic: topic}, nil
}

// Send implements [Sender].
func (t *TopicSender) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert message: %w", err)
	}
	err = t.topic.Send(ctx, &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"endpoint_id": alert.EndpointID,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSenderDropped, err)
	}
	return nil
}

// Shutdown flushes pending messages and closes the topic.
func (t *TopicSender) Shutdown(ctx context.Context) error {
	return t.topic.Shutdown(ctx)
}
