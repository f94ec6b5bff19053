package remote

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	applog "requisition-sync/pkg/logger"
)

// Probe reports whether the upstream API is reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.probePath, nil, nil)
	if err != nil {
		return err
	}
	status, body, err := c.send(req)
	if err != nil {
		return err
	}
	return statusError(req, status, body)
}

// Prober is anything that can check upstream reachability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor tracks connectivity by probing the upstream periodically. The
// device is considered offline until the first successful probe.
type Monitor struct {
	prober  Prober
	forced  atomic.Bool
	offline atomic.Bool
	log     *applog.Logger
}

// NewMonitor creates a connectivity monitor.
func NewMonitor(prober Prober, forceOffline bool, log *applog.Logger) *Monitor {
	m := &Monitor{prober: prober, log: log.WithComponent("connectivity")}
	m.offline.Store(true)
	m.forced.Store(forceOffline)
	return m
}

// IsOffline reports the current connectivity state.
func (m *Monitor) IsOffline() bool {
	return m.forced.Load() || m.offline.Load()
}

// ForceOffline pins the monitor offline regardless of probe results.
func (m *Monitor) ForceOffline(forced bool) {
	m.forced.Store(forced)
}

// Check probes once and updates the state.
func (m *Monitor) Check(ctx context.Context) {
	err := m.prober.Probe(ctx)
	wasOffline := m.offline.Swap(err != nil)
	switch {
	case err != nil && !wasOffline:
		m.log.Warnw("upstream unreachable, switching to offline mode", "error", err)
	case err == nil && wasOffline:
		m.log.Info("upstream reachable, switching to online mode")
	}
}

// Run probes at the given interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
