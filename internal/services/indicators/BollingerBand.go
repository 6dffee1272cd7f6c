package indicators

import "math"

type BBandsService struct{}

type BBandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64 // (upper-lower)/middle
}

func NewBBandsService() *BBandsService {
	return &BBandsService{}
}

// Calculate computes bands over a sliding window of period prices. Points
// before the first full window stay zero.
func (s *BBandsService) Calculate(prices []float64, period int, deviations float64) *BBandsResult {
	if period <= 0 || len(prices) < period {
		return nil
	}

	n := len(prices)
	res := &BBandsResult{
		Upper:  make([]float64, n),
		Middle: make([]float64, n),
		Lower:  make([]float64, n),
		Width:  make([]float64, n),
	}

	var sum, sumSq float64
	for i, p := range prices {
		sum += p
		sumSq += p * p
		if i >= period {
			old := prices[i-period]
			sum -= old
			sumSq -= old * old
		}
		if i < period-1 {
			continue
		}

		mean := sum / float64(period)
		stdDev := math.Sqrt(math.Max(0, sumSq/float64(period)-mean*mean))
		res.Middle[i] = mean
		res.Upper[i] = mean + deviations*stdDev
		res.Lower[i] = mean - deviations*stdDev
		if mean != 0 {
			res.Width[i] = (res.Upper[i] - res.Lower[i]) / mean
		}
	}
	return res
}

// AverageWidth is the mean band width over the full windows of prices
func (s *BBandsService) AverageWidth(prices []float64, period int, deviations float64) float64 {
	res := s.Calculate(prices, period, deviations)
	if res == nil {
		return 0
	}
	total := 0.0
	for _, w := range res.Width[period-1:] {
		total += w
	}
	return total / float64(len(prices)-period+1)
}
