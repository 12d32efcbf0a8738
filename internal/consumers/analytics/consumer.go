package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/obinnaeke/tradelane-backend/internal/analytics/worker"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Consumer streams commerce domain events into BigQuery. Events outside the
// commerce set are acknowledged without a row; malformed payloads are dropped
// so a poison message cannot block the subscription.
type Consumer struct {
	client      tableInserter
	table       string
	logg        *logger.Logger
	eventFilter map[enums.OutboxEventType]struct{}
}

// NewConsumer builds a new commerce events consumer.
func NewConsumer(client tableInserter, table string, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		client: client,
		table:  strings.TrimSpace(table),
		logg:   logg,
		eventFilter: map[enums.OutboxEventType]struct{}{
			enums.EventOrderCreated:          {},
			enums.EventPaymentSucceeded:      {},
			enums.EventPaymentFailed:         {},
			enums.EventPaymentRefunded:       {},
			enums.EventSubscriptionActivated: {},
			enums.EventSubscriptionCancelled: {},
			enums.EventSubscriptionExpired:   {},
		},
	}, nil
}

// Handle ingests the envelope into BigQuery if the event is a commerce event.
func (c *Consumer) Handle(ctx context.Context, envelope worker.Envelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
	})

	if _, ok := c.eventFilter[envelope.EventType]; !ok {
		c.logg.Info(logCtx, "event not handled by analytics consumer")
		return nil
	}

	row, err := buildRow(envelope)
	if err != nil {
		c.logg.Warn(logCtx, "dropping undecodable commerce event payload")
		return nil
	}

	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		c.logg.Error(logCtx, "failed to insert commerce event row", err)
		return err
	}

	c.logg.Info(logCtx, "commerce event ingested")
	return nil
}

type commerceEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	AggregateType  string             `bigquery:"aggregate_type"`
	AggregateID    string             `bigquery:"aggregate_id"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	PaymentID      *string            `bigquery:"payment_id"`
	OrderIDs       []string           `bigquery:"order_ids"`
	SubscriptionID *string            `bigquery:"subscription_id"`
	BusinessID     *string            `bigquery:"business_id"`
	Amount         *string            `bigquery:"amount"`
	Currency       *string            `bigquery:"currency"`
	Status         *string            `bigquery:"status"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}

func buildRow(envelope worker.Envelope) (*commerceEventRow, error) {
	payload := map[string]any{}
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	payloadJSON := cbigquery.NullJSON{}
	if len(envelope.Payload) > 0 {
		payloadJSON.Valid = true
		payloadJSON.JSONVal = string(envelope.Payload)
	}

	return &commerceEventRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		AggregateType:  string(envelope.AggregateType),
		AggregateID:    envelope.AggregateID,
		OccurredAt:     envelope.OccurredAt,
		PaymentID:      stringValue(payload, "payment_id"),
		OrderIDs:       stringSlice(payload, "order_ids"),
		SubscriptionID: stringValue(payload, "subscription_id"),
		BusinessID:     stringValue(payload, "business_id"),
		Amount:         numericValue(payload, "amount", "total"),
		Currency:       stringValue(payload, "currency"),
		Status:         stringValue(payload, "status"),
		Payload:        payloadJSON,
	}, nil
}

func stringValue(payload map[string]any, key string) *string {
	raw, ok := payload[key]
	if !ok {
		return nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(str)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringSlice(payload map[string]any, key string) []string {
	raw, ok := payload[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
			out = append(out, strings.TrimSpace(str))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// numericValue reads a monetary field that may be encoded either as a JSON
// string (decimal marshaling) or as a bare number.
func numericValue(payload map[string]any, keys ...string) *string {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed != "" {
				return &trimmed
			}
		case float64:
			formatted := strconv.FormatFloat(v, 'f', -1, 64)
			return &formatted
		}
	}
	return nil
}
