//go:build integration

package reconcile_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"mesa/internal/onboarding/models"
	"mesa/internal/platform/kafka/producer"
	"mesa/internal/reconcile"
	"mesa/pkg/testutil/containers"
)

func TestPublisher_EndToEnd(t *testing.T) {
	kc := containers.NewKafkaContainer(t)
	ctx := context.Background()

	const topic = "onboarding.provisioning"
	require.NoError(t, kc.CreateTopic(ctx, topic, 1, 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := producer.DefaultConfig()
	cfg.Brokers = kc.Brokers
	prod, err := producer.New(cfg, logger)
	require.NoError(t, err)
	defer prod.Close()

	pub := reconcile.NewPublisher(prod, topic, logger)

	ev := reconcile.NewDegraded(models.KindRestaurant, "user-42", "ana@example.com",
		[]string{"domain_entity"}, "register RPC unavailable")
	pub.Publish(ctx, ev)
	require.NoError(t, prod.Flush(10*time.Second))

	consumer, err := kc.NewConsumer(ctx, "reconcile-test", topic)
	require.NoError(t, err)
	defer consumer.Close()

	rec := kc.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "user-42"
	})
	require.NotNil(t, rec, "expected a provisioning event on the topic")

	var got reconcile.Event
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, reconcile.KindDegraded, got.Kind)
	assert.Equal(t, []string{"domain_entity"}, got.Missing)
	assert.Equal(t, "register RPC unavailable", got.Reason)
}
