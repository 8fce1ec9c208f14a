package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"copytrader/internal/exit"
	"copytrader/internal/model"
)

// ForceSellSweep is the scheduler's 5s ForceSell timer action: any
// Bought position held past MaxWaitTime is force-sold regardless of
// PNL, and the BuyGate is reconciled against whatever remains open.
func (e *Engine) ForceSellSweep(ctx context.Context) {
	now := nowUTC()
	for _, p := range e.Store.Snapshot() {
		if p.Status != model.StatusBought {
			continue
		}
		if now.Sub(p.OpenedAt) > e.Cfg.Trading.MaxWaitTime {
			e.log.Printf("FORCE SELL TIMEOUT mint=%s held=%s", p.Mint, now.Sub(p.OpenedAt))
			e.DispatchSell(ctx, p.Mint, model.FullSellDecision("timeout"))
		}
	}
	e.Gate.Reconcile(e.Store.AnyOpen())
}

// PNLTick is the scheduler's 5s PNL timer action: for every open
// position, fetch the current price, advance peak PNL, run the exit
// policy, and dispatch whatever it decides.
func (e *Engine) PNLTick(ctx context.Context) {
	for _, p := range e.Store.Snapshot() {
		if p.Status != model.StatusBought {
			continue
		}
		price, err := e.PriceFeed.GetTokenPrice(ctx, p.Mint)
		if err != nil {
			e.log.Error("price feed error for %s: %v", p.Mint, err)
			continue
		}
		if p.BuyPrice <= 0 {
			continue
		}
		currentPNLPct := pnlPercent(p.BuyPrice, price)

		tracking := e.Tracking.GetOrCreate(p.Mint)
		exit.UpdatePeak(tracking, currentPNLPct)

		decision := exit.Decide(currentPNLPct, tracking, nowUTC().Sub(p.OpenedAt))
		if decision.Kind != model.Hold {
			e.log.Printf("PNL mint=%s pnl=%.2f%% peak=%.2f%% decision=%s", p.Mint, currentPNLPct, tracking.PeakPNLPct, decision.Kind)
			e.DispatchSell(ctx, p.Mint, decision)
		}
	}
}

// pnlPercent computes ((price-buyPrice)/buyPrice)*100 in fixed-point
// decimal rather than float64, avoiding the rounding drift that would
// otherwise creep into a position's peak-PNL tracking over many ticks.
func pnlPercent(buyPrice, price float64) float64 {
	buy := decimal.NewFromFloat(buyPrice)
	cur := decimal.NewFromFloat(price)
	pct, _ := cur.Sub(buy).Div(buy).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Watchdog is the scheduler's 120s timer action: logs a STALE warning
// (never kills the connection) when no message has arrived in 300s.
func (e *Engine) Watchdog(lastMessageAt func() time.Time) func(ctx context.Context) {
	return func(ctx context.Context) {
		if time.Since(lastMessageAt()) > 300*time.Second {
			e.log.Error("STALE: no message received in over 300s")
		}
	}
}

// HealthBeat logs a five-minute connection health summary; purely
// observational, never mutates state.
func (e *Engine) HealthBeat(lastMessageAt func() time.Time) func(ctx context.Context) {
	return func(ctx context.Context) {
		open := 0
		for _, p := range e.Store.Snapshot() {
			if p.Status == model.StatusBought {
				open++
			}
		}
		e.log.Printf("connection health: last_message=%s buying_enabled=%v open_positions=%d",
			lastMessageAt().Format(time.RFC3339), e.Gate.Enabled(), open)
	}
}
