package engine

import (
	"context"
	"testing"
	"time"

	"copytrader/internal/audit"
	"copytrader/internal/config"
	"copytrader/internal/external/fakes"
	"copytrader/internal/model"
)

func testEngine() (*Engine, *fakes.SwapBuilder, *fakes.TxSubmitter) {
	cfg := &config.Config{
		Stream: config.StreamConfig{LeaderAddresses: []string{"L"}},
		Trading: config.TradingConfig{
			MinDevBuyLamports: 0,
			MaxDevBuyLamports: 100_000_000_000,
			MaxWaitTime:       60 * time.Second,
		},
	}
	sb := &fakes.SwapBuilder{}
	ts := &fakes.TxSubmitter{}
	rpc := &fakes.RpcClient{}
	pf := fakes.NewPriceFeed()
	e := New(cfg, sb, ts, rpc, pf, audit.NoOp{})
	return e, sb, ts
}

func TestHandleEvent_CopyBuyAccepted(t *testing.T) {
	e, sb, _ := testEngine()
	ev := &model.TradeEvent{
		Kind:                 model.EventCurveBuy,
		Target:               "L",
		Mint:                 "M",
		VolumeChangeLamports: -5_000_000_000,
		CurveReserves:        &model.CurveReserves{CurveAddr: "curve"},
	}

	e.HandleEvent(context.Background(), ev)

	if sb.CallCount() != 1 {
		t.Fatalf("expected SwapBuilder.Build called once, got %d", sb.CallCount())
	}
	pos := e.Store.Find("M")
	if pos == nil || pos.Status != model.StatusBought {
		t.Fatalf("expected a Bought position, got %+v", pos)
	}
	if e.Gate.Enabled() {
		t.Fatal("expected buy gate disabled after a successful buy")
	}
}

func TestHandleEvent_DuplicateRejected(t *testing.T) {
	e, sb, _ := testEngine()
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought})

	ev := &model.TradeEvent{
		Kind:                 model.EventCurveBuy,
		Target:               "L",
		Mint:                 "M",
		VolumeChangeLamports: -5_000_000_000,
		CurveReserves:        &model.CurveReserves{},
	}
	e.HandleEvent(context.Background(), ev)

	if sb.CallCount() != 0 {
		t.Fatalf("expected no SwapBuilder call for a duplicate, got %d", sb.CallCount())
	}
}

func TestHandleEvent_AmountFilter(t *testing.T) {
	e, sb, _ := testEngine()
	e.Cfg.Trading.MaxDevBuyLamports = 10_000_000_000

	ev := &model.TradeEvent{
		Kind:                 model.EventCurveBuy,
		Target:               "L",
		Mint:                 "M",
		VolumeChangeLamports: -200_000_000_000,
		CurveReserves:        &model.CurveReserves{},
	}
	e.HandleEvent(context.Background(), ev)

	if sb.CallCount() != 0 {
		t.Fatalf("expected no SwapBuilder call when amount exceeds max, got %d", sb.CallCount())
	}
	if !e.Gate.Enabled() {
		t.Fatal("expected buy gate to remain enabled when the buy is filtered out")
	}
}

func TestHandleEvent_IgnoresNonLeaderAndNonBuyKinds(t *testing.T) {
	e, sb, _ := testEngine()

	e.HandleEvent(context.Background(), &model.TradeEvent{Kind: model.EventCurveSell, Target: "L", Mint: "M"})
	e.HandleEvent(context.Background(), &model.TradeEvent{Kind: model.EventCurveBuy, Target: "NotLeader", Mint: "M"})

	if sb.CallCount() != 0 {
		t.Fatalf("expected no SwapBuilder calls, got %d", sb.CallCount())
	}
}

func TestHandleEvent_SizeMatchingHeuristic(t *testing.T) {
	e, sb, _ := testEngine()
	ev := &model.TradeEvent{
		Kind:                 model.EventCurveBuy,
		Target:               "L",
		Mint:                 "M",
		VolumeChangeLamports: -5_000_000_000,
		TokenAmountUI:        1.5,
		CurveReserves:        &model.CurveReserves{},
	}
	e.HandleEvent(context.Background(), ev)

	if sb.CallCount() != 1 {
		t.Fatalf("expected exactly one build, got %d", sb.CallCount())
	}
}

func TestDispatchSell_FullSellReopensGate(t *testing.T) {
	e, sb, ts := testEngine()
	e.Gate.Disable()
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, BuyPrice: 1})

	e.DispatchSell(context.Background(), "M", model.FullSellDecision("emergency"))

	if sb.CallCount() != 1 || ts.Submitted != 1 {
		t.Fatalf("expected one build and one submit, got build=%d submit=%d", sb.CallCount(), ts.Submitted)
	}
	pos := e.Store.Find("M")
	if pos.Status != model.StatusSold {
		t.Fatalf("expected position sold, got %s", pos.Status)
	}
	if !e.Gate.Enabled() {
		t.Fatal("expected buy gate re-opened after the only open position sold")
	}
}

func TestDispatchSell_PartialSellKeepsPositionOpen(t *testing.T) {
	e, _, _ := testEngine()
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, BuyPrice: 1})

	e.DispatchSell(context.Background(), "M", model.PartialSellDecision(40, "retracement_300"))

	pos := e.Store.Find("M")
	if pos.Status != model.StatusBought {
		t.Fatalf("expected position to remain Bought after a partial sell, got %s", pos.Status)
	}
}

func TestDispatchSell_HoldDecisionIsNoOp(t *testing.T) {
	e, sb, _ := testEngine()
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, BuyPrice: 1})

	e.DispatchSell(context.Background(), "M", model.HoldDecision())

	if sb.CallCount() != 0 {
		t.Fatalf("expected no build for a Hold decision, got %d", sb.CallCount())
	}
}

func TestForceSellSweep_TimeoutTriggersFullSell(t *testing.T) {
	e, _, _ := testEngine()
	e.Gate.Disable()

	restore := stubNow(t, time.Now().UTC())
	opened := nowUTC().Add(-61 * time.Second)
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, OpenedAt: opened, BuyPrice: 1})
	defer restore()

	e.ForceSellSweep(context.Background())

	pos := e.Store.Find("M")
	if pos == nil || pos.Status != model.StatusSold {
		t.Fatalf("expected position sold after force-sell timeout, got %+v", pos)
	}
	if !e.Gate.Enabled() {
		t.Fatal("expected buy gate re-opened after the only open position sold")
	}
}

func TestForceSellSweep_WithinWaitTimeLeavesPositionOpen(t *testing.T) {
	e, _, _ := testEngine()
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, OpenedAt: nowUTC(), BuyPrice: 1})

	e.ForceSellSweep(context.Background())

	pos := e.Store.Find("M")
	if pos.Status != model.StatusBought {
		t.Fatalf("expected position to remain open, got %s", pos.Status)
	}
}

func TestPNLTick_DispatchesOnNonHoldDecision(t *testing.T) {
	e, sb, _ := testEngine()
	pf := e.PriceFeed.(*fakes.PriceFeed)
	pf.Set("M", 12.0) // +1100% over BuyPrice=1, crosses the 1000% take-profit tier
	e.Store.Insert(&model.Position{Mint: "M", Status: model.StatusBought, OpenedAt: nowUTC(), BuyPrice: 1})

	e.PNLTick(context.Background())

	if sb.CallCount() == 0 {
		t.Fatal("expected PNLTick to dispatch a sell once PNL crosses a take-profit tier")
	}
}

// stubNow overrides nowUTC for the duration of a test and returns a
// restore func; not safe for use across parallel tests.
func stubNow(t *testing.T, fixed time.Time) func() {
	t.Helper()
	prev := nowUTC
	nowUTC = func() time.Time { return fixed }
	return func() { nowUTC = prev }
}
