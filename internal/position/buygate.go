package position

import "sync"

// BuyGate is a single global boolean admission rule: permit a new buy
// only if no open position exists. Callers set it false
// immediately before dispatching a buy and true again on failure or
// when the open position is sold.
type BuyGate struct {
	mu      sync.Mutex
	enabled bool
}

func NewBuyGate() *BuyGate {
	return &BuyGate{enabled: true}
}

func (g *BuyGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

func (g *BuyGate) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
}

func (g *BuyGate) Enable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
}

// Reconcile sets the gate to reflect whether any position is open,
// the correctness invariant the 5s background sweep re-establishes.
func (g *BuyGate) Reconcile(anyOpen bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = !anyOpen
}
