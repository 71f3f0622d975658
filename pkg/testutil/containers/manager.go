//go:build integration

// Package containers manages shared test containers for integration tests.
// Containers are started once per test process and shared across suites;
// Ryuk reaps them when the process exits. Suites isolate themselves by
// truncating tables or flushing keys in SetupTest.
package containers

import (
	"sync"
	"testing"
)

// Manager owns the process-wide container singletons.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	redpanda *RedpandaContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns the shared Postgres container, starting it on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetRedpanda returns the shared Redpanda container, starting it on first use.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}
