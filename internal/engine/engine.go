// Package engine wires the decoder, position store, exit policy,
// scheduler and stream supervisor together: for each decoded
// event it decides whether to copy a buy, and the scheduler drives it
// to dispatch sells against the exit policy's decisions.
package engine

import (
	"context"
	"time"

	"copytrader/internal/audit"
	"copytrader/internal/config"
	"copytrader/internal/external"
	"copytrader/internal/logger"
	"copytrader/internal/model"
	"copytrader/internal/position"
)

// Engine holds every shared component as a handle-cloneable field
// rather than a module-level static, so multiple engines never share
// mutable global state.
type Engine struct {
	Cfg *config.Config

	Store    *position.Store
	Gate     *position.BuyGate
	Tracking *position.TrackingMap

	SwapBuilder external.SwapBuilder
	TxSubmitter external.TxSubmitter
	Rpc         external.RpcClient
	PriceFeed   external.PriceFeed
	Audit       audit.Log

	log *logger.Logger
}

func New(cfg *config.Config, swapBuilder external.SwapBuilder, txSubmitter external.TxSubmitter, rpc external.RpcClient, priceFeed external.PriceFeed, auditLog audit.Log) *Engine {
	if auditLog == nil {
		auditLog = audit.NoOp{}
	}
	return &Engine{
		Cfg:         cfg,
		Store:       position.NewStore(),
		Gate:        position.NewBuyGate(),
		Tracking:    position.NewTrackingMap(),
		SwapBuilder: swapBuilder,
		TxSubmitter: txSubmitter,
		Rpc:         rpc,
		PriceFeed:   priceFeed,
		Audit:       auditLog,
		log:         logger.New("ENGINE"),
	}
}

func (e *Engine) isLeader(target string) bool {
	for _, l := range e.Cfg.Stream.LeaderAddresses {
		if l == target {
			return true
		}
	}
	return false
}

// HandleEvent decides whether to copy a leader's buy: filter by
// target and event kind, filter by buy size, reject duplicates, fetch
// curve reserves if the decoder didn't already recover them, then
// build and submit the swap.
func (e *Engine) HandleEvent(ctx context.Context, ev *model.TradeEvent) {
	if ev.Kind != model.EventCurveBuy && ev.Kind != model.EventPoolBuy {
		return
	}
	if !e.isLeader(ev.Target) {
		return
	}

	devBuySol := float64(abs64(ev.VolumeChangeLamports)) / 1e9
	if devBuySol < float64(e.Cfg.Trading.MinDevBuyLamports)/1e9 || devBuySol > float64(e.Cfg.Trading.MaxDevBuyLamports)/1e9 {
		e.log.Printf("BUY AMOUNT EXCEEDS MAX mint=%s dev_buy_sol=%.4f", ev.Mint, devBuySol)
		e.recordAudit(ctx, ev, "ignored", "amount_filter", 0)
		return
	}

	if existing := e.Store.Find(ev.Mint); !e.Gate.Enabled() || existing != nil {
		e.log.Printf("DUPLICATE TOKEN mint=%s", ev.Mint)
		e.recordAudit(ctx, ev, "ignored", "duplicate", 0)
		return
	}

	e.Gate.Disable()

	curve := ev.CurveReserves
	if ev.Kind == model.EventCurveBuy && curve == nil {
		acct, err := e.Rpc.GetBondingCurveAccount(ctx, ev.Mint, ev.BondingCurve)
		if err != nil {
			e.log.Error("failed to fetch bonding curve account for %s: %v", ev.Mint, err)
			e.Gate.Enable()
			e.recordAudit(ctx, ev, "aborted", "rpc_error", 0)
			return
		}
		curve = &model.CurveReserves{
			CurveAddr:           acct.Addr,
			VirtualQuoteReserve: acct.VirtualQuoteReserve,
			VirtualBaseReserve:  acct.VirtualBaseReserve,
		}
	}

	amountIn := devBuySol
	if ev.TokenAmountUI > 0 && ev.TokenAmountUI < devBuySol {
		// Size-matching heuristic: when the target's own post-trade
		// token balance is below its dev-buy size, that balance becomes
		// the buy amount. The default buy amount is the leader's dev-buy
		// SOL; there is no separately configured fixed buy amount.
		e.log.Printf("USING TOKEN AMOUNT mint=%s token_amount=%.6f", ev.Mint, ev.TokenAmountUI)
		amountIn = ev.TokenAmountUI
	}

	swap, err := e.SwapBuilder.Build(ctx, ev.Mint, curve, ev.PoolReserves, external.SwapConfig{
		Direction:   external.Buy,
		InType:      external.AmountFixed,
		AmountIn:    amountIn,
		SlippageBps: e.Cfg.Trading.DefaultSlippageBps,
	})
	if err != nil {
		e.log.Error("swap build failed for %s: %v", ev.Mint, err)
		e.Store.Insert(&model.Position{Mint: ev.Mint, Status: model.StatusFailure, OpenedAt: nowUTC()})
		e.Gate.Enable()
		e.recordAudit(ctx, ev, "failure", "build_error", 0)
		return
	}

	sigs, err := e.TxSubmitter.Submit(ctx, ev.RecentBlockhash, swap)
	if err != nil || len(sigs) == 0 {
		e.log.Error("submit failed for %s: %v", ev.Mint, err)
		e.Store.Insert(&model.Position{Mint: ev.Mint, Status: model.StatusFailure, OpenedAt: nowUTC()})
		e.Gate.Enable()
		e.recordAudit(ctx, ev, "failure", "submit_error", 0)
		return
	}

	e.Store.Insert(&model.Position{
		Mint:     ev.Mint,
		BuyPrice: swap.QuotePrice,
		Status:   model.StatusBought,
		OpenedAt: nowUTC(),
	})
	e.log.Printf("BOUGHT mint=%s price=%.8f sig=%s", ev.Mint, swap.QuotePrice, sigs[0])
	e.recordAudit(ctx, ev, "bought", "accepted", 0)
}

// DispatchSell submits a sell for mint per decision, through the same
// Builder->Submitter path buys use, with direction=Sell, in_type=Pct.
func (e *Engine) DispatchSell(ctx context.Context, mint string, decision model.Decision) {
	if decision.Kind == model.Hold {
		return
	}
	pos := e.Store.Find(mint)
	if pos == nil || pos.Status != model.StatusBought {
		return
	}

	pct := decision.Pct
	if decision.Kind == model.FullSell {
		pct = 100
	}

	swap, err := e.SwapBuilder.Build(ctx, mint, nil, nil, external.SwapConfig{
		Direction:   external.Sell,
		InType:      external.AmountPct,
		AmountIn:    pct / 100,
		SlippageBps: 100,
	})
	if err != nil {
		e.log.Error("sell build failed for %s: %v", mint, err)
		return
	}

	blockhash, err := e.Rpc.GetLatestBlockhash(ctx)
	if err != nil {
		e.log.Error("failed to fetch blockhash for sell of %s: %v", mint, err)
		return
	}

	sigs, err := e.TxSubmitter.Submit(ctx, blockhash, swap)
	if err != nil || len(sigs) == 0 {
		e.log.Error("sell submit failed for %s: %v", mint, err)
		return
	}

	if decision.Kind == model.FullSell {
		e.Store.UpdateStatus(mint, model.StatusSold)
		e.Tracking.Delete(mint)
		e.Gate.Enable()
		e.log.Printf("SOLD mint=%s reason=%s", mint, decision.Reason)
	} else {
		pos.SellPrice = swap.QuotePrice
		e.log.Printf("PARTIAL SELL mint=%s pct=%.2f reason=%s", mint, decision.Pct, decision.Reason)
	}
	e.recordAudit(ctx, &model.TradeEvent{Mint: mint}, decision.Kind.String(), decision.Reason, 0)
}

func (e *Engine) recordAudit(ctx context.Context, ev *model.TradeEvent, decision, reason string, pnlPct float64) {
	_ = e.Audit.Write(ctx, audit.Record{
		ObservedAt: nowUTC(),
		EventKind:  ev.Kind.String(),
		Mint:       ev.Mint,
		Target:     ev.Target,
		Decision:   decision,
		Reason:     reason,
		PNLPct:     pnlPct,
	})
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// nowUTC is a thin indirection so tests can't accidentally depend on
// wall-clock time drifting mid-assertion.
var nowUTC = func() time.Time { return time.Now().UTC() }
