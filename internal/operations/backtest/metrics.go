package backtest

import (
	"math"

	"GridTradeBot/internal/models"
)

func equityCurve(depo float64, days []models.DayResult) []EquityPoint {
	curve := make([]EquityPoint, 0, len(days)+1)
	balance := depo
	curve = append(curve, EquityPoint{Balance: balance})
	for _, d := range days {
		balance += d.DaySum
		curve = append(curve, EquityPoint{Date: d.Date, Balance: balance})
	}
	return curve
}

// maxDrawdown is the largest fall from a running peak, as a fraction of that peak
func maxDrawdown(depo float64, curve []EquityPoint) float64 {
	maxDD := 0.0
	peak := depo
	for _, p := range curve {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Balance) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio annualizes the mean over the deviation of daily returns
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Balance
		if prev == 0 {
			return 0
		}
		returns = append(returns, (curve[i].Balance-prev)/prev)
	}

	avg := 0.0
	for _, r := range returns {
		avg += r
	}
	avg /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avg, 2)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return avg * 252 / (stdDev * math.Sqrt(252))
}
