//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"stagepass/internal/platform/config"
	"stagepass/pkg/testutil/containers"
)

func TestPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	broker := containers.GetManager().GetRedpanda(t).Broker

	t.Run("creates the topic and delivers keyed records", func(t *testing.T) {
		publisher, err := NewPublisher(ctx, config.KafkaConfig{
			Brokers: []string{broker},
			Topic:   "stagepass.publisher-test",
		})
		require.NoError(t, err)
		require.NotNil(t, publisher)
		defer publisher.Close()

		require.NoError(t, publisher.Publish(ctx, "reg-1", []byte(`{"seq":1}`)))
		require.NoError(t, publisher.Publish(ctx, "reg-1", []byte(`{"seq":2}`)))

		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(broker),
			kgo.ConsumeTopics("stagepass.publisher-test"),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		require.NoError(t, err)
		defer consumer.Close()

		var records []*kgo.Record
		deadline := time.Now().Add(15 * time.Second)
		for len(records) < 2 && time.Now().Before(deadline) {
			fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			fetches := consumer.PollFetches(fetchCtx)
			cancel()
			fetches.EachRecord(func(r *kgo.Record) {
				records = append(records, r)
			})
		}

		require.Len(t, records, 2)
		assert.Equal(t, "reg-1", string(records[0].Key))
		assert.Equal(t, `{"seq":1}`, string(records[0].Value))
		assert.Equal(t, `{"seq":2}`, string(records[1].Value))
		// Same key, same partition: per-registration order is preserved.
		assert.Equal(t, records[0].Partition, records[1].Partition)
	})

	t.Run("no brokers disables publishing", func(t *testing.T) {
		publisher, err := NewPublisher(ctx, config.KafkaConfig{Topic: "unused"})
		require.NoError(t, err)
		assert.Nil(t, publisher)
	})
}
