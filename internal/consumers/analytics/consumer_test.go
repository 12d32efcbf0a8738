package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/internal/analytics/worker"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

func TestConsumerIngestsPaymentSucceeded(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := mustConsumer(t, inserter)

	paymentID := uuid.New()
	envelope := buildEnvelope(t, enums.EventPaymentSucceeded, enums.AggregatePayment, map[string]any{
		"payment_id":      paymentID.String(),
		"transaction_ref": "txn_abc123",
		"status":          "succeeded",
		"amount":          "125.50",
		"currency":        "USD",
	})

	if err := consumer.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row inserted, got %d", len(inserter.rows))
	}
	row, ok := inserter.rows[0].(*commerceEventRow)
	if !ok {
		t.Fatalf("expected commerceEventRow, got %T", inserter.rows[0])
	}
	if row.EventType != string(enums.EventPaymentSucceeded) {
		t.Fatalf("unexpected event type: %s", row.EventType)
	}
	if row.PaymentID == nil || *row.PaymentID != paymentID.String() {
		t.Fatalf("payment id mismatch")
	}
	if row.Amount == nil || *row.Amount != "125.50" {
		t.Fatalf("amount mismatch: %v", row.Amount)
	}
	if row.Status == nil || *row.Status != "succeeded" {
		t.Fatalf("status mismatch: %v", row.Status)
	}
	if row.SubscriptionID != nil {
		t.Fatalf("subscription id should be nil for payment events")
	}
	if !row.Payload.Valid {
		t.Fatalf("payload should be valid json")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(row.Payload.JSONVal), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if _, ok := payload["transaction_ref"]; !ok {
		t.Fatalf("payload missing transaction_ref")
	}
}

func TestConsumerIngestsOrderCreatedOrderIDs(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := mustConsumer(t, inserter)

	orderIDs := []string{uuid.NewString(), uuid.NewString()}
	envelope := buildEnvelope(t, enums.EventOrderCreated, enums.AggregatePayment, map[string]any{
		"buyer_id":  uuid.NewString(),
		"order_ids": orderIDs,
		"total":     "310.00",
	})

	if err := consumer.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	row := inserter.rows[0].(*commerceEventRow)
	if len(row.OrderIDs) != 2 {
		t.Fatalf("expected 2 order ids, got %d", len(row.OrderIDs))
	}
	if row.Amount == nil || *row.Amount != "310.00" {
		t.Fatalf("expected total captured as amount, got %v", row.Amount)
	}
}

func TestConsumerSkipsNonCommerceEvents(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := mustConsumer(t, inserter)

	envelope := buildEnvelope(t, enums.EventNotificationRequested, enums.AggregateNotification, map[string]any{
		"recipient_id": uuid.NewString(),
	})

	if err := consumer.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows for notification events")
	}
}

func TestConsumerDropsUndecodablePayload(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := mustConsumer(t, inserter)

	envelope := worker.Envelope{
		EventID:       uuid.NewString(),
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
		Payload:       json.RawMessage("{invalid json"),
	}

	if err := consumer.Handle(context.Background(), envelope); err != nil {
		t.Fatalf("undecodable payload should be dropped, got error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatalf("expected no rows inserted for bad payload")
	}
}

func TestConsumerReturnsInsertFailureForRetry(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("bigquery down")}
	consumer := mustConsumer(t, inserter)

	envelope := buildEnvelope(t, enums.EventSubscriptionActivated, enums.AggregateSubscription, map[string]any{
		"subscription_id": uuid.NewString(),
		"business_id":     uuid.NewString(),
		"status":          "active",
	})

	if err := consumer.Handle(context.Background(), envelope); err == nil {
		t.Fatalf("expected error when insert fails")
	}
}

type fakeInserter struct {
	rows []any
	err  error
}

func (f *fakeInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func mustConsumer(t *testing.T, inserter *fakeInserter) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(inserter, "commerce_events", logger.New(logger.Options{
		ServiceName: "analytics-test",
		Level:       logger.ParseLevel("debug"),
		Output:      io.Discard,
	}))
	if err != nil {
		t.Fatalf("failed to build consumer: %v", err)
	}
	return consumer
}

func buildEnvelope(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, payload any) worker.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return worker.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
		Payload:       data,
	}
}
