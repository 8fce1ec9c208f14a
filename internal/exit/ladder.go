// Package exit implements the exit decision policy: given a
// position's current and peak PNL, time held, and which take-profit
// tiers already fired, decide whether to hold, partially sell, or
// fully sell. Every function here is pure.
package exit

import "fmt"

// RetracementTier is one row of a retracement ladder: once current PNL
// has crossed RequiredPNLPct, a drop from peak of at least
// RetracementTriggerPct sells SellPct of the remaining position.
type RetracementTier struct {
	RequiredPNLPct       float64
	RetracementTriggerPct float64
	SellPct              float64
}

// standardLadder is the default retracement ladder.
var standardLadder = []RetracementTier{
	{2000, 3, 100},
	{1500, 4, 50},
	{1000, 5, 40},
	{800, 6, 35},
	{700, 6, 35},
	{600, 6, 30},
	{500, 7, 30},
	{400, 7, 30},
	{300, 8, 20},
	{200, 10, 15},
	{100, 12, 15},
	{50, 20, 10},
	{30, 30, 10},
	{20, 42, 100},
}

// aggressiveLadder applies when current_pnl > 500 and time_held > 30s.
// Since it is only selected above 500%, the top-down scan always stops
// at the 500% row or above; its final 20% row is not reached.
var aggressiveLadder = []RetracementTier{
	{2000, 3, 100},
	{1500, 4, 50},
	{1000, 5, 40},
	{800, 6, 35},
	{700, 6, 35},
	{600, 6, 30},
	{500, 7, 30},
	{400, 7, 30},
	{300, 8, 20},
	{20, 15, 100},
}

// mediumLadder applies when current_pnl > 200 (but not > 500) and
// time_held > 30s.
var mediumLadder = []RetracementTier{
	{2000, 3, 100},
	{1500, 4, 50},
	{1000, 5, 40},
	{800, 6, 35},
	{700, 6, 35},
	{600, 8, 30},
	{500, 10, 30},
	{400, 10, 30},
	{300, 10, 20},
	{200, 10, 20},
	{20, 20, 100},
}

// earlyLadder applies when time_held <= 30s, regardless of PNL. Its
// rows are identical to standardLadder's, so it reacts no faster than
// the default ladder.
var earlyLadder = []RetracementTier{
	{2000, 3, 100},
	{1500, 4, 50},
	{1000, 5, 40},
	{800, 6, 35},
	{700, 6, 35},
	{600, 6, 30},
	{500, 7, 30},
	{400, 7, 30},
	{300, 8, 20},
	{200, 10, 15},
	{100, 12, 15},
	{50, 20, 10},
	{30, 30, 10},
	{20, 42, 100},
}

// selectLadder picks the retracement ladder for the given PNL and
// elapsed hold time.
func selectLadder(currentPNLPct float64, timeHeld float64) []RetracementTier {
	switch {
	case timeHeld <= 30:
		return earlyLadder
	case currentPNLPct > 500:
		return aggressiveLadder
	case currentPNLPct > 200:
		return mediumLadder
	default:
		return standardLadder
	}
}

// takeProfitTier is one row of the take-profit table.
type takeProfitTier struct {
	thresholdPct float64
	sellPct      float64
}

var takeProfitLevels = []takeProfitTier{
	{2000, 100},
	{1500, 40},
	{1000, 40},
	{800, 20},
	{600, 20},
	{400, 20},
	{300, 20},
	{250, 20},
	{200, 20},
	{120, 20},
	{80, 20},
	{50, 10},
	{20, 10},
}

// tierKey formats a take-profit threshold into a stable dedup key, so
// retracement and take-profit tiers at the same percentage never
// collide in TrackingInfo.CompletedTakeProfitTiers.
func tierKey(thresholdPct float64) string {
	return fmt.Sprintf("take_profit_%d", int64(thresholdPct))
}
