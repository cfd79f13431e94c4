package tasks

import (
	"context"
	"time"
)

// DefaultRefreshInterval is the polling cadence.
const DefaultRefreshInterval = 10 * time.Second

// Poller drives Refresh: once at start, then on every tick and on every
// Trigger. Polling is independent of the chat connection.
type Poller struct {
	sync     *Synchronizer
	interval time.Duration
	trigger  chan struct{}
}

// NewPoller creates a Poller. A non-positive interval uses the default.
func NewPoller(s *Synchronizer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Poller{
		sync:     s,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh. Requests made while one is already
// queued are merged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done. Refresh failures are logged by the
// synchronizer and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	_ = p.sync.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = p.sync.Refresh(ctx)
		case <-p.trigger:
			_ = p.sync.Refresh(ctx)
		}
	}
}
