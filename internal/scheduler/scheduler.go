// Package scheduler runs the engine's independent cooperative timers:
// heartbeat, watchdog, force-sell sweep, PNL tick, and a connection
// health beat. Each timer is its own goroutine; a slow tick on one
// never delays its peers.
package scheduler

import (
	"context"
	"time"
)

const (
	HeartbeatPeriod  = 30 * time.Second
	WatchdogPeriod   = 120 * time.Second
	ForceSellPeriod  = 5 * time.Second
	PNLTickPeriod    = 5 * time.Second
	HealthBeatPeriod = 5 * time.Minute
)

// Scheduler owns the five timer goroutines and their shutdown.
type Scheduler struct {
	// Heartbeat sends a keepalive ping; a non-nil error means the send
	// failed, which should terminate and signal the supervisor (spec
	// §4.5) via OnHeartbeatError.
	Heartbeat        func(ctx context.Context) error
	OnHeartbeatError func(error)
	Watchdog         func(ctx context.Context)
	ForceSell        func(ctx context.Context)
	PNLTick          func(ctx context.Context)
	HealthBeat       func(ctx context.Context)
}

// Run starts every configured timer as its own goroutine and blocks
// until ctx is cancelled. A nil timer func is simply never started.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Heartbeat != nil {
		go runTicker(ctx, HeartbeatPeriod, func() {
			if err := s.Heartbeat(ctx); err != nil && s.OnHeartbeatError != nil {
				s.OnHeartbeatError(err)
			}
		})
	}
	if s.Watchdog != nil {
		go runTicker(ctx, WatchdogPeriod, func() { s.Watchdog(ctx) })
	}
	if s.ForceSell != nil {
		go runTicker(ctx, ForceSellPeriod, func() { s.ForceSell(ctx) })
	}
	if s.PNLTick != nil {
		go runTicker(ctx, PNLTickPeriod, func() { s.PNLTick(ctx) })
	}
	if s.HealthBeat != nil {
		go runTicker(ctx, HealthBeatPeriod, func() { s.HealthBeat(ctx) })
	}
	<-ctx.Done()
}

func runTicker(ctx context.Context, period time.Duration, tick func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
