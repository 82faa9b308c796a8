package channel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/mbessarab/seedkey-client-sdk/ports"
)

// NewGoChannel creates an in-process channel. It is the default substrate
// when custodian and client live in the same process (tests, demos,
// embedded custodians).
func NewGoChannel(logger watermill.LoggerAdapter) ports.Channel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,
		},
		logger,
	)
}
