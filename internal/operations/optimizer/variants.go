package optimizer

import (
	"math"

	"GridTradeBot/internal/services/grid"
)

// Delta is the step size increment tried around a configuration: the
// fourth significant digit of price, never below one tick
func Delta(price, tick float64) float64 {
	if price <= 0 {
		return tick
	}
	d := math.Pow(10, math.Floor(math.Log10(price))-3)
	if d < tick {
		return tick
	}
	return d
}

// Variants lists the neighbours of base, base first and prior second, with
// duplicates and invalid combinations removed
func Variants(base grid.Config, prior *grid.Config, refPrice, maxRange float64, inst grid.Instrument) []grid.Config {
	seen := make(map[string]bool)
	var out []grid.Config
	add := func(c grid.Config) {
		c = c.Normalize()
		if c.Validate() != nil {
			return
		}
		fp := c.Fingerprint()
		if seen[fp] {
			return
		}
		seen[fp] = true
		out = append(out, c)
	}

	add(base)
	if prior != nil {
		add(*prior)
	}

	delta := Delta(refPrice, inst.TickSize)
	gran, minMax := 2, 2
	if base.MajorityTrade {
		gran, minMax = 1, 1
	}

	for _, step := range stepSizes(base.StepSize, delta, inst) {
		var maxes []int
		if base.Policy == grid.PolicyFan && maxRange > 0 {
			maxes = []int{atLeast(int(math.Ceil(maxRange/step-1e-9)), minMax)}
		} else {
			maxes = uniqueInts(
				atLeast(base.MaxSteps-gran, minMax),
				atLeast(base.MaxSteps, minMax),
				atLeast(base.MaxSteps+gran, minMax),
			)
		}

		for _, max := range maxes {
			for _, b := range baseSteps(max, base.MajorityTrade) {
				v := base
				v.StepSize = step
				v.MaxSteps = max
				v.BaseSteps = b
				fitOrderCounts(&v, base)
				add(v)
			}
		}
	}
	return out
}

func stepSizes(step, delta float64, inst grid.Instrument) []float64 {
	var out []float64
	for _, s := range []float64{step - delta, step, step + delta} {
		if s < delta {
			s = delta
		}
		s = inst.Round(s)
		if s <= 0 {
			continue
		}
		dup := false
		for _, o := range out {
			if grid.SamePrice(o, s) {
				dup = true
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func baseSteps(max int, majority bool) []int {
	third := max / 2
	if majority {
		third = -max
	}
	return uniqueInts(0, max, third)
}

// fitOrderCounts keeps SetOrdersCount and thresholds valid for a changed MaxSteps
func fitOrderCounts(v *grid.Config, base grid.Config) {
	v.SetOrdersCount = base.SetOrdersCount
	if v.SetOrdersCount == 0 || v.SetOrdersCount > v.MaxSteps {
		v.SetOrdersCount = v.MaxSteps
	}
	if v.BuyThresholdSteps > 0 && v.BuyThresholdSteps <= v.SetOrdersCount {
		v.BuyThresholdSteps = v.SetOrdersCount + 1
	}
	if v.SellThresholdSteps > 0 && v.SellThresholdSteps <= v.SetOrdersCount {
		v.SellThresholdSteps = v.SetOrdersCount + 1
	}
}

func atLeast(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func uniqueInts(values ...int) []int {
	var out []int
	for _, v := range values {
		dup := false
		for _, o := range out {
			if o == v {
				dup = true
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
