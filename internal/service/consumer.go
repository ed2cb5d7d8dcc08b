package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"payment-service/internal/events"
)

// RegisterConsumers subscribes the orchestrator's response handlers on the
// gateway. Handlers tolerate duplicates and out-of-order delivery; malformed
// payloads are logged and dropped rather than redelivered forever.
func RegisterConsumers(gw events.Gateway, s *TransactionService, logger *slog.Logger) error {
	if err := gw.Subscribe(events.TopicBalanceCheckResponse, func(ctx context.Context, data []byte) {
		var resp events.BalanceCheckResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Error("Malformed balance check response", "error", err)
			return
		}
		s.ApplyBalanceCheckResponse(ctx, resp)
	}); err != nil {
		return err
	}

	return gw.Subscribe(events.TopicAccountOperationResponse, func(ctx context.Context, data []byte) {
		var resp events.AccountOperationResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Error("Malformed account operation response", "error", err)
			return
		}
		s.ApplyOperationResponse(ctx, resp)
	})
}
