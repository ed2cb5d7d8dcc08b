package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"payment-service/internal/errors"
)

const (
	publishAttempts   = 3
	publishRetryDelay = 100 * time.Millisecond

	// correlation key travels as a header so consumers can route without
	// decoding the payload
	headerCorrelationKey = "Correlation-Key"
)

// NATSGateway implements Gateway on top of a NATS connection. Publishes go
// through a circuit breaker so a dead bus fails fast instead of stacking up
// timed-out requests.
type NATSGateway struct {
	nc      *nats.Conn
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	subs    []*nats.Subscription
}

func NewNATSGateway(url string, logger *slog.Logger) (*NATSGateway, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.NewAppError(errors.PublishFailed, "failed to connect to event bus").WithDetails(err.Error())
	}
	return NewNATSGatewayFromConn(nc, logger), nil
}

func NewNATSGatewayFromConn(nc *nats.Conn, logger *slog.Logger) *NATSGateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "event-bus",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event bus circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &NATSGateway{
		nc:      nc,
		breaker: breaker,
		logger:  logger,
	}
}

func (g *NATSGateway) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode message").WithDetails(err.Error())
	}

	msg := &nats.Msg{
		Subject: topic,
		Data:    data,
		Header:  nats.Header{headerCorrelationKey: []string{key}},
	}

	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.NewAppError(errors.PublishFailed, "publish cancelled").WithDetails(err.Error())
		}

		_, lastErr = g.breaker.Execute(func() (interface{}, error) {
			return nil, g.nc.PublishMsg(msg)
		})
		if lastErr == nil {
			return nil
		}
		if lastErr == gobreaker.ErrOpenState || lastErr == gobreaker.ErrTooManyRequests {
			break
		}

		g.logger.Warn("publish attempt failed",
			"topic", topic, "key", key, "attempt", attempt, "error", lastErr)
		if attempt < publishAttempts {
			time.Sleep(publishRetryDelay)
		}
	}

	g.logger.Error("publish failed", "topic", topic, "key", key, "error", lastErr)
	return errors.NewAppErrorf(errors.PublishFailed, "failed to publish to %s", topic).WithDetails(lastErr.Error())
}

func (g *NATSGateway) Subscribe(topic string, h Handler) error {
	sub, err := g.nc.Subscribe(topic, func(m *nats.Msg) {
		h(context.Background(), m.Data)
	})
	if err != nil {
		return errors.NewAppErrorf(errors.InternalError, "failed to subscribe to %s", topic).WithDetails(err.Error())
	}
	g.subs = append(g.subs, sub)
	return nil
}

func (g *NATSGateway) Close() {
	for _, sub := range g.subs {
		sub.Unsubscribe()
	}
	g.nc.Close()
}
