// Package decode implements the log decoder: it reconstructs a
// typed TradeEvent from a transaction's account keys/balances and its
// raw log lines. Decode performs no I/O and takes no lock — every
// exported function here is pure and total (it never panics).
package decode

import (
	"encoding/base64"
	"encoding/binary"
	"math/bits"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"copytrader/internal/model"
)

// Log pattern tokens checked by classify, in classification priority
// order. These are the literal substrings
// the upstream program logs, abstracted the same way the original
// monitor keys off PUMP_FUN_BUY_LOG_INSTRUCTION /
// PUMP_FUN_BUY_OR_SELL_PROGRAM_DATA_PREFIX and friends.
const (
	mintDataPrefix       = "PROG_DATA_MINT"
	buyLogMarker         = "BUY_LOG"
	sellLogMarker        = "SELL_LOG"
	curveProgramDataTag  = "PROG_DATA_CURVE"
	poolBuyLogMarker     = "POOL_BUY_LOG"
	poolSellLogMarker    = "POOL_SELL_LOG"
	poolBuyProgramData   = "PROG_DATA_POOL_BUY"
	poolSellProgramData  = "PROG_DATA_POOL_SELL"
	poolProgramLogPrefix = "Program "
	buyEventMarker       = "BuyEvent"
	sellEventMarker      = "SellEvent"
)

// Bonding-curve virtual reserve constants used when recomputing
// reserves after a buy/sell from the observed post-balance.
const (
	InitialVirtualQuote uint64 = 30_000_000_000
	InitialVirtualBase  uint64 = 1_073_000_000_000_000
)

// Classify holds the configured program ids passed to the decoder.
// PoolProgramID is used to recognise pool logs and instructions;
// ExcludeProgramID is carried along but not consulted by Decode.
type Classify struct {
	PoolProgramID    string
	ExcludeProgramID []string
}

// RawTransaction is the subset of an upstream transaction update the
// decoder needs: account keys in order, instruction program-id refs,
// and pre/post lamport balances aligned by account-key index.
type RawTransaction struct {
	Signature       string
	Slot            uint64
	RecentBlockhash string
	AccountKeys     []string
	PreBalances     []int64
	PostBalances    []int64
	// Instructions lists each top-level instruction's program id and
	// the indices into AccountKeys it references, positionally.
	Instructions []Instruction
	// PostTokenBalances is every token account touched by the
	// transaction, each tagged with the owning wallet so the decoder
	// can pick out the target's own post-trade token balance.
	PostTokenBalances []TokenBalance
}

// TokenBalance is one entry of a transaction's post_token_balances:
// the owning wallet and its UI (human-scaled) token amount at a given
// account index after the transaction.
type TokenBalance struct {
	AccountIndex int
	Owner        string
	UIAmount     float64
}

// tokenAmountForOwner returns the UI token amount owned by owner, or 0
// if owner holds no token account touched by this transaction.
func tokenAmountForOwner(balances []TokenBalance, owner string) float64 {
	if owner == "" {
		return 0
	}
	for _, b := range balances {
		if b.Owner == owner {
			return b.UIAmount
		}
	}
	return 0
}

// lastTokenBalance returns the owner and UI amount of the last entry
// in balances, the same "last one touched wins" rule the trader
// target is recovered by when a curve buy/sell carries no other
// indication of which wallet traded.
func lastTokenBalance(balances []TokenBalance) (owner string, uiAmount float64) {
	for _, b := range balances {
		owner = b.Owner
		uiAmount = b.UIAmount
	}
	return
}

type Instruction struct {
	ProgramID      string
	AccountIndexes []int
}

// DecodeError enumerates the decoder's failure modes. The decoder
// never panics; every failure path returns one of these.
type DecodeError struct {
	Kind string
}

func (e *DecodeError) Error() string { return "decode: " + e.Kind }

var (
	ErrMissingTransaction = &DecodeError{Kind: "missing_transaction"}
	ErrMissingBlockhash   = &DecodeError{Kind: "missing_blockhash"}
	ErrMissingAccounts    = &DecodeError{Kind: "missing_accounts"}
	ErrUnclassified       = &DecodeError{Kind: "unclassified"}
	ErrInvalidKey         = &DecodeError{Kind: "invalid_key"}
)

// Decode classifies logs and parses the matching payload into a
// TradeEvent. It is the sole entry point for C1.
func Decode(tx RawTransaction, logs []string, cls Classify) (*model.TradeEvent, error) {
	if tx.Signature == "" {
		return nil, ErrMissingTransaction
	}
	if tx.RecentBlockhash == "" {
		return nil, ErrMissingBlockhash
	}
	if len(tx.AccountKeys) == 0 {
		return nil, ErrMissingAccounts
	}

	kind, err := classify(logs, cls)
	if err != nil {
		return nil, err
	}

	ev := &model.TradeEvent{
		Kind:            kind,
		Slot:            tx.Slot,
		Signature:       tx.Signature,
		RecentBlockhash: tx.RecentBlockhash,
	}

	switch kind {
	case model.EventMint:
		if err := decodeMint(logs, ev); err != nil {
			return ev, err
		}
	case model.EventCurveBuy, model.EventCurveSell:
		decodeCurveSide(tx, logs, ev)
	case model.EventPoolBuy, model.EventPoolSell:
		decodePoolSide(tx, logs, cls, ev)
	}

	return ev, nil
}

// classify walks logs in order and returns the first matching kind,
// per spec's classification table.
func classify(logs []string, cls Classify) (model.EventKind, error) {
	hasCurveProgramData := anyContains(logs, curveProgramDataTag)
	hasPoolBuyProgramData := anyContains(logs, poolBuyProgramData)
	hasPoolSellProgramData := anyContains(logs, poolSellProgramData)
	hasBuyEvent := anyContains(logs, buyEventMarker)
	hasSellEvent := anyContains(logs, sellEventMarker)

	for _, l := range logs {
		switch {
		case strings.HasPrefix(l, mintDataPrefix):
			return model.EventMint, nil
		case strings.Contains(l, buyLogMarker) && hasCurveProgramData:
			return model.EventCurveBuy, nil
		case strings.Contains(l, sellLogMarker) && hasCurveProgramData:
			return model.EventCurveSell, nil
		case strings.Contains(l, poolBuyLogMarker) && hasPoolBuyProgramData:
			return model.EventPoolBuy, nil
		case strings.Contains(l, poolSellLogMarker) && hasPoolSellProgramData:
			return model.EventPoolSell, nil
		case strings.Contains(l, poolProgramLogPrefix) && cls.PoolProgramID != "" && strings.Contains(l, cls.PoolProgramID):
			if hasBuyEvent {
				return model.EventPoolBuy, nil
			}
			if hasSellEvent {
				return model.EventPoolSell, nil
			}
		}
	}
	return model.EventUnknown, ErrUnclassified
}

func anyContains(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// payloadBytes base64-decodes the whitespace-delimited third field of
// the first log line carrying prefix (the "Program data: <b64>" shape).
func payloadBytes(logs []string, prefix string) ([]byte, bool) {
	for _, l := range logs {
		if !strings.HasPrefix(l, prefix) && !strings.Contains(l, prefix) {
			continue
		}
		fields := strings.Fields(l)
		if len(fields) < 3 {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil {
			continue
		}
		return data, true
	}
	return nil, false
}

// decodeMint parses the mint announcement payload: 8-byte
// discriminator, then three length-prefixed strings, then three
// 32-byte keys. On any bounds violation it returns what has been
// parsed so far plus an error; it never panics.
func decodeMint(logs []string, ev *model.TradeEvent) error {
	data, ok := payloadBytes(logs, mintDataPrefix)
	if !ok || len(data) < 8 {
		return ErrUnclassified
	}
	data = data[8:]

	var err error
	ev.Name, data, err = readString(data)
	if err != nil {
		return err
	}
	ev.Symbol, data, err = readString(data)
	if err != nil {
		return err
	}
	ev.URI, data, err = readString(data)
	if err != nil {
		return err
	}

	mint, data, err := readKey(data)
	if err != nil {
		return err
	}
	ev.Mint = mint

	curve, data, err := readKey(data)
	if err != nil {
		return err
	}
	ev.BondingCurve = curve

	target, _, err := readKey(data)
	if err != nil {
		return err
	}
	ev.Target = target
	return nil
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, ErrUnclassified
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint64(n) > uint64(len(data)) {
		return "", nil, ErrUnclassified
	}
	s := string(data[:n])
	return s, data[n:], nil
}

func readKey(data []byte) (string, []byte, error) {
	if len(data) < 32 {
		return "", nil, ErrInvalidKey
	}
	return base58.Encode(data[:32]), data[32:], nil
}

// decodeCurveSide decodes a CurveBuy/CurveSell payload: offsets 8..40
// are the mint key, 40..48 a little-endian u64 amount, 48..56 either
// max_quote_in (buy) or min_quote_out (sell). Missing trailing bytes
// leave that field nil rather than erroring.
func decodeCurveSide(tx RawTransaction, logs []string, ev *model.TradeEvent) {
	findCurveAddrFromLogs(logs, ev)
	ev.VolumeChangeLamports = volumeChange(tx, ev.BondingCurve)
	ev.Target, ev.TokenAmountUI = lastTokenBalance(tx.PostTokenBalances)

	data, ok := payloadBytes(logs, curveProgramDataTag)
	if !ok || len(data) < 8 {
		return
	}
	data = data[8:]

	if len(data) >= 32 {
		ev.Mint = base58.Encode(data[:32])
		data = data[32:]
	}
	if len(data) >= 8 {
		amt := binary.LittleEndian.Uint64(data[:8])
		ev.Amount = &amt
		data = data[8:]
	}
	if len(data) >= 8 {
		v := binary.LittleEndian.Uint64(data[:8])
		if ev.Kind == model.EventCurveBuy {
			ev.MaxQuoteIn = &v
		} else {
			ev.MinQuoteOut = &v
		}
	}

	if ev.BondingCurve != "" {
		ev.CurveReserves = recomputeVirtualReserves(tx, ev.BondingCurve)
	}
}

// findCurveAddrFromLogs scrapes the "bonding curve:" marker the
// original monitor also relies on, since the curve address is not
// otherwise present in the event payload itself.
func findCurveAddrFromLogs(logs []string, ev *model.TradeEvent) {
	for _, l := range logs {
		if idx := strings.Index(l, "bonding curve:"); idx >= 0 {
			rest := strings.TrimSpace(l[idx+len("bonding curve:"):])
			fields := strings.Fields(rest)
			if len(fields) > 0 {
				ev.BondingCurve = fields[0]
			}
			return
		}
	}
}

// volumeChange locates addr in tx.AccountKeys and returns the lamport
// delta post-pre at that index; a missing index defaults to 0.
func volumeChange(tx RawTransaction, addr string) int64 {
	if addr == "" {
		return 0
	}
	idx := indexOf(tx.AccountKeys, addr)
	if idx < 0 || idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return 0
	}
	return tx.PostBalances[idx] - tx.PreBalances[idx]
}

func indexOf(keys []string, addr string) int {
	for i, k := range keys {
		if k == addr {
			return i
		}
	}
	return -1
}

// recomputeVirtualReserves applies the constant-product update from
// the observed post-balance of the curve account, using 128-bit
// intermediate arithmetic truncated to 64 bits.
func recomputeVirtualReserves(tx RawTransaction, curveAddr string) *model.CurveReserves {
	idx := indexOf(tx.AccountKeys, curveAddr)
	if idx < 0 || idx >= len(tx.PostBalances) {
		return nil
	}
	postBalance := tx.PostBalances[idx]
	if postBalance < 0 {
		postBalance = 0
	}
	newVirtualQuote := InitialVirtualQuote + uint64(postBalance)
	if newVirtualQuote == 0 {
		return &model.CurveReserves{CurveAddr: curveAddr}
	}
	product := uint128Mul(InitialVirtualQuote, InitialVirtualBase)
	newVirtualBase := uint128Div(product, newVirtualQuote)
	return &model.CurveReserves{
		CurveAddr:           curveAddr,
		VirtualQuoteReserve: newVirtualQuote,
		VirtualBaseReserve:  newVirtualBase,
	}
}

// uint128Mul/uint128Div perform a widened multiply+divide, since a*b
// can overflow 64 bits for realistic reserve magnitudes.
func uint128Mul(a, b uint64) [2]uint64 {
	hi, lo := mul64(a, b)
	return [2]uint64{hi, lo}
}

func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) | w0
	return
}

func uint128Div(v [2]uint64, d uint64) uint64 {
	if d == 0 || v[0] >= d {
		return 0
	}
	q, _ := bits.Div64(v[0], v[1], d)
	return q
}

// decodePoolSide walks the transaction's instructions to find the
// first one targeting the configured AMM pool program, then indexes
// its referenced account keys positionally. Additional numeric fields
// are recovered by a textual key:value scan of the log lines rather
// than a binary decode, since the pool program's actual event encoding
// isn't available to this decoder.
func decodePoolSide(tx RawTransaction, logs []string, cls Classify, ev *model.TradeEvent) {
	var ix *Instruction
	for i := range tx.Instructions {
		if tx.Instructions[i].ProgramID == cls.PoolProgramID {
			ix = &tx.Instructions[i]
			break
		}
	}

	pr := &model.PoolReserves{}
	if ix != nil {
		pr.PoolID = accountAt(tx, ix.AccountIndexes, 0)
		ev.Target = accountAt(tx, ix.AccountIndexes, 1)
		pr.BaseMint = accountAt(tx, ix.AccountIndexes, 3)
		pr.QuoteMint = accountAt(tx, ix.AccountIndexes, 4)
		pr.BaseVault = accountAt(tx, ix.AccountIndexes, 7)
		pr.QuoteVault = accountAt(tx, ix.AccountIndexes, 8)
	}
	ev.PoolReserves = pr
	ev.VolumeChangeLamports = volumeChange(tx, pr.QuoteVault)
	ev.TokenAmountUI = tokenAmountForOwner(tx.PostTokenBalances, ev.Target)

	scanned := scanKeyValueLogs(logs)
	if v, ok := scanned["base_amount_in"]; ok {
		u := uint64(v)
		ev.BaseIn = &u
	}
	if v, ok := scanned["min_quote_amount_out"]; ok {
		u := uint64(v)
		ev.MinQuoteOut = &u
	}
	if v, ok := scanned["base_amount_out"]; ok {
		u := uint64(v)
		ev.BaseOut = &u
	}
	if v, ok := scanned["max_quote_amount_in"]; ok {
		u := uint64(v)
		ev.MaxQuoteIn = &u
	}
	if v, ok := scanned["pool_base_token_reserves"]; ok {
		pr.BaseReserve = uint64(v)
	}
	if v, ok := scanned["pool_quote_token_reserves"]; ok {
		pr.QuoteReserve = uint64(v)
	}
}

// accountAt returns tx.AccountKeys[indexes[pos]] or "" when either the
// instruction has fewer referenced accounts than pos, or the
// referenced key index itself is out of range — a short account list
// never panics, it just yields a zero-key field.
func accountAt(tx RawTransaction, indexes []int, pos int) string {
	if pos >= len(indexes) {
		return ""
	}
	keyIdx := indexes[pos]
	if keyIdx < 0 || keyIdx >= len(tx.AccountKeys) {
		return ""
	}
	return tx.AccountKeys[keyIdx]
}

// scanKeyValueLogs extracts "key: value" numeric markers from log
// lines for the fields the pool program logs in text rather than its
// binary event payload.
func scanKeyValueLogs(logs []string) map[string]float64 {
	out := make(map[string]float64)
	markers := []string{
		"base_amount_out:", "max_quote_amount_in:",
		"base_amount_in:", "min_quote_amount_out:",
		"pool_base_token_reserves:", "pool_quote_token_reserves:",
	}
	for _, l := range logs {
		for _, marker := range markers {
			idx := strings.Index(l, marker)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(l[idx+len(marker):])
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], ","), 64)
			if err != nil {
				continue
			}
			key := strings.TrimSuffix(marker, ":")
			out[key] = v
		}
	}
	return out
}
