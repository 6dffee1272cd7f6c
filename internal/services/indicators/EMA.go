package indicators

// EMAService provides Exponential Moving Average calculations
type EMAService struct{}

func NewEMAService() *EMAService {
	return &EMAService{}
}

// Calculate returns the EMA of prices seeded with the SMA of the first
// period values. Entries before period-1 are zero. Nil when prices are
// shorter than period.
func (s *EMAService) Calculate(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	ema := make([]float64, len(prices))
	sum := 0.0
	for _, p := range prices[:period] {
		sum += p
	}
	ema[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema[i] = prices[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// Slope is the relative change between the last two EMA values
func (s *EMAService) Slope(ema []float64) float64 {
	n := len(ema)
	if n < 2 || ema[n-2] == 0 {
		return 0
	}
	return (ema[n-1] - ema[n-2]) / ema[n-2]
}
