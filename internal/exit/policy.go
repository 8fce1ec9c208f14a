package exit

import (
	"time"

	"copytrader/internal/model"
)

// retracementMinHoldTime is the minimum time held before the
// retracement rule is even considered.
const retracementMinHoldTime = 300 * time.Second

// Decide evaluates the exit policy for one position tick. Checks are
// applied in order; the first match wins:
//
//  1. retracement (only once held > 300s)
//  2. trailing stop
//  3. take-profit tiers
//  4. emergency exit
//  5. hold
//
// tracking is mutated in place when a take-profit tier fires, so the
// same tier is never paid out twice for the same position.
func Decide(currentPNLPct float64, tracking *model.TrackingInfo, timeHeld time.Duration) model.Decision {
	peakPNLPct := tracking.PeakPNLPct

	if timeHeld > retracementMinHoldTime {
		if d, ok := evaluateRetracement(currentPNLPct, peakPNLPct, timeHeld); ok {
			return d
		}
	}

	if peakPNLPct > 10 && currentPNLPct < 0.4*peakPNLPct {
		return model.FullSellDecision("trailing")
	}

	if d, ok := evaluateTakeProfit(currentPNLPct, tracking); ok {
		return d
	}

	if peakPNLPct > 100 && currentPNLPct < 20 {
		return model.FullSellDecision("emergency")
	}

	return model.HoldDecision()
}

func evaluateRetracement(currentPNLPct, peakPNLPct float64, timeHeld time.Duration) (model.Decision, bool) {
	if peakPNLPct <= 0 {
		return model.Decision{}, false
	}
	ladder := selectLadder(currentPNLPct, timeHeld.Seconds())
	for _, tier := range ladder {
		if tier.RequiredPNLPct > currentPNLPct {
			continue
		}
		retracement := (peakPNLPct - currentPNLPct) / peakPNLPct * 100
		if retracement >= tier.RetracementTriggerPct {
			return model.PartialSellDecision(tier.SellPct, "retracement"), true
		}
		return model.Decision{}, false
	}
	return model.Decision{}, false
}

func evaluateTakeProfit(currentPNLPct float64, tracking *model.TrackingInfo) (model.Decision, bool) {
	for _, tier := range takeProfitLevels {
		if tier.thresholdPct > currentPNLPct {
			continue
		}
		key := tierKey(tier.thresholdPct)
		if tracking.TierComplete(key) {
			continue
		}
		tracking.MarkTierComplete(key)
		return model.PartialSellDecision(tier.sellPct, "take_profit"), true
	}
	return model.Decision{}, false
}

// UpdatePeak advances tracking's peak PNL, never letting it decrease:
// PeakPNLPct is non-decreasing for as long as the position is held.
func UpdatePeak(tracking *model.TrackingInfo, currentPNLPct float64) {
	if currentPNLPct > tracking.PeakPNLPct {
		tracking.PeakPNLPct = currentPNLPct
	}
}
