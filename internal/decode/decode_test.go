package decode

import (
	"encoding/base64"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"

	"copytrader/internal/model"
)

func encodeString(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

func fakeKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func buildMintPayload(name, symbol, uri string, mint, curve, target []byte) []byte {
	var out []byte
	out = append(out, make([]byte, 8)...) // discriminator
	out = append(out, encodeString(name)...)
	out = append(out, encodeString(symbol)...)
	out = append(out, encodeString(uri)...)
	out = append(out, mint...)
	out = append(out, curve...)
	out = append(out, target...)
	return out
}

func mintLog(payload []byte) string {
	return mintDataPrefix + " x " + base64.StdEncoding.EncodeToString(payload)
}

func TestDecode_MintRoundTrip(t *testing.T) {
	mint := fakeKey(1)
	curve := fakeKey(2)
	target := fakeKey(3)
	payload := buildMintPayload("DogCoin", "DOG", "ipfs://uri", mint, curve, target)

	logs := []string{mintLog(payload)}
	tx := RawTransaction{Signature: "sig", RecentBlockhash: "bh", AccountKeys: []string{"a"}}

	ev, err := Decode(tx, logs, Classify{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != model.EventMint {
		t.Fatalf("expected EventMint, got %v", ev.Kind)
	}
	if ev.Name != "DogCoin" || ev.Symbol != "DOG" || ev.URI != "ipfs://uri" {
		t.Fatalf("mint fields not round-tripped: %+v", ev)
	}
	if ev.Mint != base58.Encode(mint) || ev.BondingCurve != base58.Encode(curve) || ev.Target != base58.Encode(target) {
		t.Fatalf("mint keys not round-tripped: %+v", ev)
	}
}

func TestDecode_MintTruncatedAfterFirstString(t *testing.T) {
	var payload []byte
	payload = append(payload, make([]byte, 8)...)
	payload = append(payload, encodeString("OnlyName")...)
	// Truncated: no symbol/uri/keys follow.

	logs := []string{mintLog(payload)}
	tx := RawTransaction{Signature: "sig", RecentBlockhash: "bh", AccountKeys: []string{"a"}}

	ev, err := Decode(tx, logs, Classify{})
	if err == nil {
		t.Fatal("expected a decode error for truncated payload")
	}
	if ev.Name != "OnlyName" {
		t.Fatalf("expected partial decode to retain Name, got %+v", ev)
	}
	if ev.Symbol != "" || ev.Mint != "" {
		t.Fatalf("expected trailing fields defaulted, got %+v", ev)
	}
}

func buildCurvePayload(mint []byte, amount, secondary uint64) []byte {
	var out []byte
	out = append(out, make([]byte, 8)...)
	out = append(out, mint...)
	amtBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(amtBuf, amount)
	out = append(out, amtBuf...)
	secBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(secBuf, secondary)
	out = append(out, secBuf...)
	return out
}

func TestDecode_CurveBuyRoundTrip(t *testing.T) {
	mint := fakeKey(7)
	payload := buildCurvePayload(mint, 1234, 5678)
	logs := []string{
		buyLogMarker,
		curveProgramDataTag + " x " + base64.StdEncoding.EncodeToString(payload),
	}
	tx := RawTransaction{Signature: "sig", RecentBlockhash: "bh", AccountKeys: []string{"a"}}

	ev, err := Decode(tx, logs, Classify{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != model.EventCurveBuy {
		t.Fatalf("expected EventCurveBuy, got %v", ev.Kind)
	}
	if ev.Mint != base58.Encode(mint) {
		t.Fatalf("mint mismatch: %s", ev.Mint)
	}
	if ev.Amount == nil || *ev.Amount != 1234 {
		t.Fatalf("expected amount 1234, got %v", ev.Amount)
	}
	if ev.MaxQuoteIn == nil || *ev.MaxQuoteIn != 5678 {
		t.Fatalf("expected max_quote_in 5678, got %v", ev.MaxQuoteIn)
	}
}

// exactVirtualBase computes the true floor(a*b/d) with arbitrary
// precision, independent of the decoder's own widened-multiply/divide
// implementation, so the test catches an incorrect uint128Div.
func exactVirtualBase(quote, base, newQuote uint64) uint64 {
	product := new(big.Int).Mul(big.NewInt(0).SetUint64(quote), big.NewInt(0).SetUint64(base))
	q := new(big.Int).Div(product, big.NewInt(0).SetUint64(newQuote))
	return q.Uint64()
}

func TestDecode_CurveBuy_RecomputesVirtualReserves(t *testing.T) {
	mint := fakeKey(9)
	payload := buildCurvePayload(mint, 1, 1)
	curveAddr := "CurveAddr111"
	const postBalance = 7_500_000_000
	logs := []string{
		buyLogMarker,
		curveProgramDataTag + " x " + base64.StdEncoding.EncodeToString(payload),
		"Program log: bonding curve: " + curveAddr,
	}
	tx := RawTransaction{
		Signature:       "sig",
		RecentBlockhash: "bh",
		AccountKeys:     []string{"a", curveAddr},
		PreBalances:     []int64{0, 1_000_000_000},
		PostBalances:    []int64{0, postBalance},
	}

	ev, err := Decode(tx, logs, Classify{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.CurveReserves == nil {
		t.Fatal("expected CurveReserves to be populated")
	}

	wantQuote := InitialVirtualQuote + uint64(postBalance)
	wantBase := exactVirtualBase(InitialVirtualQuote, InitialVirtualBase, wantQuote)

	if ev.CurveReserves.VirtualQuoteReserve != wantQuote {
		t.Fatalf("virtual quote reserve: got %d, want %d", ev.CurveReserves.VirtualQuoteReserve, wantQuote)
	}
	if ev.CurveReserves.VirtualBaseReserve != wantBase {
		t.Fatalf("virtual base reserve: got %d, want %d (off by %d)",
			ev.CurveReserves.VirtualBaseReserve, wantBase,
			int64(ev.CurveReserves.VirtualBaseReserve)-int64(wantBase))
	}
	if ev.VolumeChangeLamports != postBalance-1_000_000_000 {
		t.Fatalf("volume change: got %d", ev.VolumeChangeLamports)
	}
}

func TestDecode_CurveBuy_PopulatesTokenAmountAndTargetFromPostTokenBalances(t *testing.T) {
	mint := fakeKey(11)
	payload := buildCurvePayload(mint, 1, 1)
	logs := []string{
		buyLogMarker,
		curveProgramDataTag + " x " + base64.StdEncoding.EncodeToString(payload),
	}
	tx := RawTransaction{
		Signature:       "sig",
		RecentBlockhash: "bh",
		AccountKeys:     []string{"a"},
		PostTokenBalances: []TokenBalance{
			{AccountIndex: 3, Owner: "TraderWallet", UIAmount: 42.5},
		},
	}

	ev, err := Decode(tx, logs, Classify{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Target != "TraderWallet" {
		t.Fatalf("expected target derived from post_token_balances owner, got %q", ev.Target)
	}
	if ev.TokenAmountUI != 42.5 {
		t.Fatalf("expected token amount 42.5, got %v", ev.TokenAmountUI)
	}
}

func TestDecode_PoolSide_PopulatesTokenAmountForTarget(t *testing.T) {
	tx := RawTransaction{
		Signature:       "sig",
		RecentBlockhash: "bh",
		AccountKeys:     []string{"pool", "trader", "x", "basemint", "quotemint", "y", "z", "basevault", "quotevault"},
		Instructions: []Instruction{
			{ProgramID: "POOL_PROGRAM", AccountIndexes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8}},
		},
		PostTokenBalances: []TokenBalance{
			{AccountIndex: 0, Owner: "someoneElse", UIAmount: 999},
			{AccountIndex: 1, Owner: "trader", UIAmount: 17.25},
		},
	}
	logs := []string{poolBuyLogMarker, poolBuyProgramData + " x " + base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 0, 0, 0, 0, 0})}
	cls := Classify{PoolProgramID: "POOL_PROGRAM"}

	ev, err := Decode(tx, logs, cls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Target != "trader" {
		t.Fatalf("expected target 'trader', got %q", ev.Target)
	}
	if ev.TokenAmountUI != 17.25 {
		t.Fatalf("expected token amount matched by owner, got %v", ev.TokenAmountUI)
	}
}

func TestDecode_PoolSide_ShortAccountKeysYieldsZeroKeys(t *testing.T) {
	tx := RawTransaction{
		Signature:       "sig",
		RecentBlockhash: "bh",
		AccountKeys:     []string{"pool", "user", "x"}, // shorter than position 8
		Instructions: []Instruction{
			{ProgramID: "POOL_PROGRAM", AccountIndexes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8}},
		},
	}
	logs := []string{
		poolBuyLogMarker,
		poolBuyProgramData + " x " + base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 0, 0, 0, 0, 0}),
	}
	cls := Classify{PoolProgramID: "POOL_PROGRAM"}

	ev, err := Decode(tx, logs, cls)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != model.EventPoolBuy {
		t.Fatalf("expected EventPoolBuy, got %v", ev.Kind)
	}
	if ev.PoolReserves == nil {
		t.Fatal("expected PoolReserves to be populated")
	}
	// positions 0/1 reference keys in range; positions 3..8 reference key
	// indices past the end of AccountKeys and default to "".
	if ev.PoolReserves.PoolID != "pool" {
		t.Fatalf("expected pool id 'pool', got %q", ev.PoolReserves.PoolID)
	}
	if ev.Target != "user" {
		t.Fatalf("expected target 'user', got %q", ev.Target)
	}
	pr := ev.PoolReserves
	if pr.BaseMint != "" || pr.QuoteMint != "" || pr.BaseVault != "" || pr.QuoteVault != "" {
		t.Fatalf("expected out-of-range positions left as zero keys, got %+v", pr)
	}
}

func TestDecode_Unclassified(t *testing.T) {
	tx := RawTransaction{Signature: "sig", RecentBlockhash: "bh", AccountKeys: []string{"a"}}
	_, err := Decode(tx, []string{"nothing interesting"}, Classify{})
	if err != ErrUnclassified {
		t.Fatalf("expected ErrUnclassified, got %v", err)
	}
}

func TestDecode_MissingTransactionFields(t *testing.T) {
	if _, err := Decode(RawTransaction{}, nil, Classify{}); err != ErrMissingTransaction {
		t.Fatalf("expected ErrMissingTransaction, got %v", err)
	}
	if _, err := Decode(RawTransaction{Signature: "s"}, nil, Classify{}); err != ErrMissingBlockhash {
		t.Fatalf("expected ErrMissingBlockhash, got %v", err)
	}
	if _, err := Decode(RawTransaction{Signature: "s", RecentBlockhash: "b"}, nil, Classify{}); err != ErrMissingAccounts {
		t.Fatalf("expected ErrMissingAccounts, got %v", err)
	}
}
