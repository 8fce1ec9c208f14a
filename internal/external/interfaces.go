// Package external defines the collaborators the trade engine treats
// as opaque: swap construction and signing, transaction submission,
// RPC pool-state queries, and price feeds. Only RpcClient has a
// concrete in-repo implementation (internal/external/solanarpc); the
// others remain interfaces the caller supplies.
package external

import (
	"context"

	"copytrader/internal/model"
)

// Direction is the side of a swap.
type Direction int

const (
	Buy Direction = iota
	Sell
)

// AmountKind distinguishes a fixed-size amount (used for buys) from a
// percentage of the held position (used for sells).
type AmountKind int

const (
	AmountFixed AmountKind = iota
	AmountPct
)

// SwapConfig parameterizes a single swap request.
type SwapConfig struct {
	Direction  Direction
	InType     AmountKind
	AmountIn   float64
	SlippageBps uint64
}

// BuiltSwap is what a SwapBuilder hands back: the instructions needed
// to submit the swap plus the quote price observed while building it.
type BuiltSwap struct {
	Instructions []byte // opaque, submitter-specific wire instructions
	QuotePrice   float64
}

// SwapBuilder constructs (and signs, if required) the instructions
// for a swap against either a bonding curve or a pool, given whichever
// reserves the decoder already recovered.
type SwapBuilder interface {
	Build(ctx context.Context, mint string, curve *model.CurveReserves, pool *model.PoolReserves, cfg SwapConfig) (*BuiltSwap, error)
}

// TxSubmitter submits a built swap's instructions against a recent
// blockhash and returns the resulting transaction signature(s).
type TxSubmitter interface {
	Submit(ctx context.Context, recentBlockhash string, swap *BuiltSwap) ([]string, error)
}

// BondingCurveAccount is the subset of on-chain curve state the
// engine needs when a decoded CurveReserves is absent.
type BondingCurveAccount struct {
	Addr                string
	VirtualQuoteReserve uint64
	VirtualBaseReserve  uint64
}

// RpcClient is the engine's read-only view of the chain.
type RpcClient interface {
	GetBondingCurveAccount(ctx context.Context, mint, curveProgramID string) (*BondingCurveAccount, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
}

// PriceFeed resolves a mint's current quote price for the PNL tick.
type PriceFeed interface {
	GetTokenPrice(ctx context.Context, mint string) (float64, error)
}
