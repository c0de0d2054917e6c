package models

import "math"

// ApplyTradeResult folds one closed trade result into the aggregate counters.
// A non-positive result counts as a loss. Running extremes and the win rate
// are refreshed; averages and derived ratios need RecomputeDerived afterwards
// because they depend on the historical trade population.
func (s *Statistic) ApplyTradeResult(result float64) {
	s.TotalTrades++
	s.TotalPnL += result

	if result > 0 {
		s.WinningTrades++
		if result > s.MaxWin {
			s.MaxWin = result
		}
	} else {
		s.LosingTrades++
		if result < s.MaxLoss {
			s.MaxLoss = result
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
}

// RecomputeDerived refreshes the average-dependent metrics from freshly
// queried win/loss averages. Invariants:
//
//	profit_factor = (avg_win*winning) / |avg_loss*losing|  when the denominator is positive
//	expectancy    = win_rate*avg_win + (1-win_rate)*avg_loss
func (s *Statistic) RecomputeDerived(avgWin, avgLoss float64) {
	s.AvgWin = avgWin
	s.AvgLoss = avgLoss

	grossWins := avgWin * float64(s.WinningTrades)
	grossLosses := math.Abs(avgLoss * float64(s.LosingTrades))
	if grossLosses > 0 {
		s.ProfitFactor = grossWins / grossLosses
	}

	s.Expectancy = s.WinRate*avgWin + (1-s.WinRate)*avgLoss
}
