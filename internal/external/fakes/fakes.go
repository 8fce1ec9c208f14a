// Package fakes provides in-memory external.SwapBuilder/TxSubmitter/
// RpcClient/PriceFeed implementations for tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"copytrader/internal/external"
	"copytrader/internal/model"
)

// SwapBuilder records every Build call and returns a canned result or
// error.
type SwapBuilder struct {
	mu      sync.Mutex
	Calls   []string // mints passed to Build
	Result  *external.BuiltSwap
	Err     error
}

func (f *SwapBuilder) Build(ctx context.Context, mint string, curve *model.CurveReserves, pool *model.PoolReserves, cfg external.SwapConfig) (*external.BuiltSwap, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, mint)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &external.BuiltSwap{Instructions: []byte("fake"), QuotePrice: 1}, nil
}

func (f *SwapBuilder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// TxSubmitter returns a canned signature list or error.
type TxSubmitter struct {
	mu        sync.Mutex
	Submitted int
	Signature string
	Err       error
}

func (f *TxSubmitter) Submit(ctx context.Context, recentBlockhash string, swap *external.BuiltSwap) ([]string, error) {
	f.mu.Lock()
	f.Submitted++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	sig := f.Signature
	if sig == "" {
		sig = "fake-sig"
	}
	return []string{sig}, nil
}

// RpcClient returns canned bonding-curve/blockhash responses.
type RpcClient struct {
	Curve     *external.BondingCurveAccount
	Blockhash string
	Err       error
}

func (f *RpcClient) GetBondingCurveAccount(ctx context.Context, mint, curveProgramID string) (*external.BondingCurveAccount, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Curve == nil {
		return nil, fmt.Errorf("no fake curve configured")
	}
	return f.Curve, nil
}

func (f *RpcClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Blockhash, nil
}

// PriceFeed returns a fixed price per mint.
type PriceFeed struct {
	mu     sync.Mutex
	Prices map[string]float64
}

func NewPriceFeed() *PriceFeed {
	return &PriceFeed{Prices: make(map[string]float64)}
}

func (f *PriceFeed) Set(mint string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prices[mint] = price
}

func (f *PriceFeed) GetTokenPrice(ctx context.Context, mint string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Prices[mint]
	if !ok {
		return 0, fmt.Errorf("no price for %s", mint)
	}
	return p, nil
}
