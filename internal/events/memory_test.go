package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessGatewayDeliversToSubscribers(t *testing.T) {
	gw := NewInProcessGateway()
	defer gw.Close()

	var received []BalanceCheckRequest
	err := gw.Subscribe(TopicBalanceCheckRequest, func(ctx context.Context, data []byte) {
		var req BalanceCheckRequest
		require.NoError(t, json.Unmarshal(data, &req))
		received = append(received, req)
	})
	require.NoError(t, err)

	sent := BalanceCheckRequest{
		AccountID:            "ACC-1",
		RequiredAmount:       decimal.RequireFromString("502.50"),
		TransactionReference: "TXN1700000000000AB12CD34",
	}
	require.NoError(t, gw.Publish(context.Background(), TopicBalanceCheckRequest, sent.TransactionReference, sent))

	require.Len(t, received, 1)
	assert.Equal(t, sent.AccountID, received[0].AccountID)
	assert.True(t, sent.RequiredAmount.Equal(received[0].RequiredAmount))
	assert.Equal(t, sent.TransactionReference, received[0].TransactionReference)
}

func TestInProcessGatewayScopesByTopic(t *testing.T) {
	gw := NewInProcessGateway()
	defer gw.Close()

	delivered := 0
	require.NoError(t, gw.Subscribe(TopicDebitAccountRequest, func(ctx context.Context, data []byte) {
		delivered++
	}))

	require.NoError(t, gw.Publish(context.Background(), TopicCreditAccountRequest, "k", map[string]string{"a": "b"}))
	assert.Zero(t, delivered)

	require.NoError(t, gw.Publish(context.Background(), TopicDebitAccountRequest, "k", map[string]string{"a": "b"}))
	assert.Equal(t, 1, delivered)
}

func TestInProcessGatewayFanOut(t *testing.T) {
	gw := NewInProcessGateway()
	defer gw.Close()

	first, second := 0, 0
	require.NoError(t, gw.Subscribe(TopicTransactionNotification, func(ctx context.Context, data []byte) { first++ }))
	require.NoError(t, gw.Subscribe(TopicTransactionNotification, func(ctx context.Context, data []byte) { second++ }))

	require.NoError(t, gw.Publish(context.Background(), TopicTransactionNotification, "k", map[string]int{"n": 1}))
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}
