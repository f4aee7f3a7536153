package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsEvent(t *testing.T) {
	ev := New(StockIssued, "item-1", "keeper", map[string]int{"quantity": 2})
	assert.True(t, strings.HasPrefix(ev.ID, "evt-"))
	assert.Equal(t, StockIssued, ev.Type)
	assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, time.Minute)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entity_id":"item-1"`)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), New(StockMoved, "item-1", "keeper", nil)))
}

func TestKafkaPublishIntegration(t *testing.T) {
	brokers := os.Getenv("INVENTORY_TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("set INVENTORY_TEST_KAFKA_BROKERS to run kafka integration test")
	}
	k := NewKafka(strings.Split(brokers, ","), "inventory-events-test")
	defer k.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, k.Publish(ctx, New(StockAdjusted, "item-1", "keeper", nil)))
}
