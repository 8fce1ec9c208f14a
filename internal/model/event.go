// Package model holds the plain data types shared by the decoder,
// the position store and the exit policy. Nothing in this package
// performs I/O or takes a lock.
package model

// EventKind classifies a decoded TradeEvent.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventMint
	EventCurveBuy
	EventCurveSell
	EventPoolBuy
	EventPoolSell
)

func (k EventKind) String() string {
	switch k {
	case EventMint:
		return "mint"
	case EventCurveBuy:
		return "curve_buy"
	case EventCurveSell:
		return "curve_sell"
	case EventPoolBuy:
		return "pool_buy"
	case EventPoolSell:
		return "pool_sell"
	default:
		return "unknown"
	}
}

// CurveReserves is populated for CurveBuy/CurveSell events.
type CurveReserves struct {
	CurveAddr           string
	VirtualQuoteReserve uint64
	VirtualBaseReserve  uint64
}

// PoolReserves is populated for PoolBuy/PoolSell events.
type PoolReserves struct {
	PoolID      string
	BaseMint    string
	QuoteMint   string
	BaseVault   string
	QuoteVault  string
	BaseReserve uint64
	QuoteReserve uint64
	Creator     string
	// CoinCreator mirrors the original's PoolInfo.coin_creator. The
	// decoder does not set it, so it stays zero-valued. Not part of any
	// invariant.
	CoinCreator string
}

// TradeEvent is an immutable decoded observation produced by the decoder.
//
// PoolReserves is never set for Curve* kinds and CurveReserves never
// for Pool* kinds. For Pool* kinds PoolReserves is always non-nil; for
// Curve* kinds CurveReserves is non-nil only when the decoder found the
// curve address and its post-balance, and is otherwise left nil.
type TradeEvent struct {
	Kind EventKind

	Slot            uint64
	Signature       string
	RecentBlockhash string

	Target       string
	Mint         string
	BondingCurve string

	VolumeChangeLamports int64
	TokenAmountUI        float64

	Amount      *uint64
	MaxQuoteIn  *uint64
	MinQuoteOut *uint64
	BaseIn      *uint64
	BaseOut     *uint64

	// Mint-only fields.
	Name   string
	Symbol string
	URI    string

	CurveReserves *CurveReserves
	PoolReserves  *PoolReserves
}
