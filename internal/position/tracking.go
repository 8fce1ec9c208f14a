package position

import (
	"sync"

	"copytrader/internal/model"
)

// TrackingMap owns TrackingInfo, keyed by mint, independently of
// Store so the two never form a lock-order cycle.
type TrackingMap struct {
	mu  sync.Mutex
	byMint map[string]*model.TrackingInfo
}

func NewTrackingMap() *TrackingMap {
	return &TrackingMap{byMint: make(map[string]*model.TrackingInfo)}
}

// GetOrCreate returns the tracking info for mint, creating it on the
// first PNL tick after a buy.
func (t *TrackingMap) GetOrCreate(mint string) *model.TrackingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.byMint[mint]
	if !ok {
		info = model.NewTrackingInfo()
		t.byMint[mint] = info
	}
	return info
}

// Delete destroys tracking state for mint, tied to a full sell.
func (t *TrackingMap) Delete(mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byMint, mint)
}
