// Package heartbeat implements the Heartbeat Monitor: a background task on
// the naming server that periodically probes every registered storage
// server's control socket and marks it failed or recovered.
package heartbeat

import (
	"context"
	"time"

	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
)

// Monitor periodically pings every registered SS over its serialized
// control worker and updates the SS Registry's health state.
type Monitor struct {
	registry *ssregistry.Registry
	interval time.Duration
	timeout  time.Duration
}

// New creates a Monitor that probes every interval and marks an SS failed
// if it doesn't answer within timeout.
func New(registry *ssregistry.Registry, interval, timeout time.Duration) *Monitor {
	return &Monitor{registry: registry, interval: interval, timeout: timeout}
}

// Run blocks probing every registered SS on Monitor's interval until ctx is
// canceled. Intended to be launched as the NS's one background heartbeat
// task.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	for _, rec := range m.registry.List() {
		m.probeOne(ctx, rec.ID)
	}
	active, failed := m.registry.Counts()
	metrics.SetSSCounts(active, failed)
}

func (m *Monitor) probeOne(ctx context.Context, id string) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.registry.SendControl(probeCtx, id, &wire.Record{Type: wire.Heartbeat})
	if err != nil || resp == nil {
		logger.Warn("storage server missed heartbeat", logger.SSID(id), logger.Err(err))
		m.registry.MarkFailed(id)
		return
	}
	m.registry.MarkRecovered(id)
}
