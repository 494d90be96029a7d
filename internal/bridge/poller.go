package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/config"
	"github.com/muurk/tuyalocal/internal/logging"
)

// Poller periodically asks every device of a hub for its status. A poll
// also restarts the listener of a device whose listener has died.
type Poller struct {
	hub      *Hub
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval uses the default.
func NewPoller(hub *Hub, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	return &Poller{hub: hub, interval: interval}
}

// Interval returns the poll interval
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls until ctx is cancelled. The first poll happens one interval
// after Run is called; starting a device already requests its status.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logging.Info("Status poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			logging.Info("Status poller stopped")
			return
		case <-ticker.C:
			if failed := p.hub.Refresh(); failed > 0 {
				logging.Debug("Poll finished with failures", zap.Int("failed", failed))
			}
		}
	}
}
