// Package events publishes stock ledger changes after they commit.
// Delivery is best effort: the ledger tables stay the source of truth.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"stockroom/backend/internal/xid"
)

const (
	StockInReceived        = "stock_in.received"
	StockInCancelled       = "stock_in.cancelled"
	StockIssued            = "stock.issued"
	StockAdjusted          = "stock.adjusted"
	StockMoved             = "stock.moved"
	PurchaseOrderReceipt   = "purchase_order.receipt_recorded"
	PurchaseOrderCancelled = "purchase_order.cancelled"
	RequestApproved        = "request.approved"
	RequestRejected        = "request.rejected"
	RequestConfirmed       = "request.confirmed"
	RequestFulfilled       = "request.fulfilled"
	RequestClosed          = "request.closed"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType string, entityID string, actor string, payload any) Event {
	return Event{
		ID:         xid.New("evt"),
		Type:       eventType,
		EntityID:   entityID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Noop struct{}

func (Noop) Publish(_ context.Context, _ Event) error {
	return nil
}

// Kafka writes events as JSON keyed by entity id, so every change to one
// document lands on the same partition in order.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}}
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
