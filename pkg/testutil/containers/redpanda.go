//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// RedpandaContainer wraps a Kafka-compatible Redpanda broker for outbox
// publication tests.
type RedpandaContainer struct {
	Container testcontainers.Container
	Broker    string
}

// NewRedpandaContainer starts a Redpanda container.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.3.1")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redpanda broker address: %v", err)
	}

	// No t.Cleanup: shared through the Manager singleton, reaped by Ryuk.

	return &RedpandaContainer{
		Container: container,
		Broker:    broker,
	}
}
