package channel

import (
	"context"

	"anonwall/pkg/bus"
)

// Handler receives one inbound message from a transport adapter. Replies
// are sent out of band through the VK messages API, so the handler has no
// return value; it must not block the adapter's receive loop for long.
type Handler func(context.Context, bus.InboundMessage)

// Adapter bridges one VK update delivery mechanism (long polling or the
// Callback API webhook) into the conversation manager.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
