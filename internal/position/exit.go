package position

// ExitOnBar checks whether a bar with the given open, high and low reaches the
// stop or target of s. A bar that gaps through a level fills at the open. When
// the bar touches both, stopFirst decides which one filled.
func (s Snapshot) ExitOnBar(open, high, low float64, stopFirst bool) (price float64, reason string, hit bool) {
	var stopHit, targetHit bool
	var stopPx, targetPx float64

	switch s.Side {
	case Long:
		if s.StopLoss > 0 && low <= s.StopLoss {
			stopHit, stopPx = true, min(open, s.StopLoss)
		}
		if s.TakeProfit > 0 && high >= s.TakeProfit {
			targetHit, targetPx = true, max(open, s.TakeProfit)
		}
	case Short:
		if s.StopLoss > 0 && high >= s.StopLoss {
			stopHit, stopPx = true, max(open, s.StopLoss)
		}
		if s.TakeProfit > 0 && low <= s.TakeProfit {
			targetHit, targetPx = true, min(open, s.TakeProfit)
		}
	}

	switch {
	case stopHit && targetHit:
		// An open beyond one level means that level filled first regardless of policy.
		if stopPx != s.StopLoss {
			return stopPx, ExitStopLoss, true
		}
		if targetPx != s.TakeProfit {
			return targetPx, ExitTakeProfit, true
		}
		if stopFirst {
			return stopPx, ExitStopLoss, true
		}
		return targetPx, ExitTakeProfit, true
	case stopHit:
		return stopPx, ExitStopLoss, true
	case targetHit:
		return targetPx, ExitTakeProfit, true
	}
	return 0, "", false
}
