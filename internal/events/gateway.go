package events

import "context"

// Handler processes one delivered message. Delivery is at least once and
// handlers may see duplicates; consumers resolve duplicates by looking up
// current state through the correlation key carried in the payload.
type Handler func(ctx context.Context, data []byte)

// Publisher is the outbound half of the gateway. Publish is fire-and-forget
// from the caller's point of view: once it returns nil the bus owns
// durability and delivery.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// Gateway abstracts the durable event bus.
type Gateway interface {
	Publisher
	Subscribe(topic string, h Handler) error
	Close()
}
