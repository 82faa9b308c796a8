package ports

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Channel is the broadcast pub/sub link to the key custodian. Requests and
// responses travel on two distinct topics so a component never receives its
// own request as if it were a response. Any substrate with broadcast emit
// and per-topic receive is conformant; the in-process GoChannel satisfies
// this interface directly.
type Channel interface {
	Publish(topic string, messages ...*message.Message) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}
