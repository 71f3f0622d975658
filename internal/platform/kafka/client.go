// Package kafka wraps the franz-go client for change-event publication.
// Kafka is the fan-out edge of the system: every registration status change
// flows registration store -> outbox table -> this publisher -> topic, so
// downstream consumers (notification senders, analytics) see one ordered
// stream per registration instead of scraping state themselves.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"stagepass/internal/platform/config"
)

// Publisher produces change events to a single topic, keyed so that all
// events for one registration land in one partition in order.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects to the brokers and ensures the topic exists.
// Returns nil if no brokers are configured (publishing disabled).
func NewPublisher(ctx context.Context, cfg config.KafkaConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// ensureTopic creates the topic if it does not exist yet. Already-exists is
// not an error: any of several replicas may win the race at startup.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 6, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Publish produces one record and waits for broker acknowledgement. The
// outbox worker relies on this blocking behavior: a row is only marked
// published after the broker accepted the record.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Topic returns the destination topic name.
func (p *Publisher) Topic() string { return p.topic }

// Close flushes buffered records and tears down the client.
func (p *Publisher) Close() {
	p.client.Close()
}
