package events

import (
	"context"
	"encoding/json"
	"sync"

	"payment-service/internal/errors"
)

// InProcessGateway is a synchronous in-memory Gateway used by tests and local
// runs without a broker. Delivery is immediate and in publish order, which is
// a stricter guarantee than the real bus provides; consumers must not rely on
// it.
type InProcessGateway struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewInProcessGateway() *InProcessGateway {
	return &InProcessGateway{
		handlers: make(map[string][]Handler),
	}
}

func (g *InProcessGateway) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode message").WithDetails(err.Error())
	}

	g.mu.RLock()
	hs := append([]Handler(nil), g.handlers[topic]...)
	g.mu.RUnlock()

	for _, h := range hs {
		h(ctx, data)
	}
	return nil
}

func (g *InProcessGateway) Subscribe(topic string, h Handler) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[topic] = append(g.handlers[topic], h)
	return nil
}

func (g *InProcessGateway) Close() {}
