package channel

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/mbessarab/seedkey-client-sdk/ports"
)

// RedisStreamChannel carries the custodian protocol over Redis Streams, for
// deployments where custodian and client run in separate processes.
type RedisStreamChannel struct {
	publisher  *redisstream.Publisher
	subscriber *redisstream.Subscriber
}

// NewRedisStream creates a Redis Streams channel on the given client.
func NewRedisStream(client redis.UniversalClient, logger watermill.LoggerAdapter) (ports.Channel, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}

	return &RedisStreamChannel{
		publisher:  publisher,
		subscriber: subscriber,
	}, nil
}

// Publish emits messages on a topic.
func (c *RedisStreamChannel) Publish(topic string, messages ...*message.Message) error {
	return c.publisher.Publish(topic, messages...)
}

// Subscribe receives messages from a topic.
func (c *RedisStreamChannel) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return c.subscriber.Subscribe(ctx, topic)
}

// Close shuts down both directions of the channel.
func (c *RedisStreamChannel) Close() error {
	pubErr := c.publisher.Close()
	subErr := c.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
