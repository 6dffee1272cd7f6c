package grid

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Instrument carries the exchange rules prices and lots must follow
type Instrument struct {
	Symbol    string
	TickSize  float64 // minimum price increment, 0 means none
	Precision int32   // decimal places of a price
	LotSize   float64 // instrument units per lot, 0 means 1
}

// Rounder snaps prices onto a valid price grid
type Rounder interface {
	Round(price float64) float64
}

// RoundFunc adapts a plain function to Rounder
type RoundFunc func(float64) float64

func (f RoundFunc) Round(price float64) float64 { return f(price) }

// Round rounds a price to the instrument's tick and precision
func (i Instrument) Round(price float64) float64 {
	return RoundToTick(price, i.TickSize, i.Precision)
}

// Lot returns the units per lot, defaulting to one
func (i Instrument) Lot() float64 {
	if i.LotSize <= 0 {
		return 1
	}
	return i.LotSize
}

// RoundToTick rounds to the nearest multiple of tick, then to precision
// decimal places. Precision never drops below the tick's own decimals so
// the result stays on the tick grid and a second rounding is a no-op.
func RoundToTick(price, tick float64, precision int32) float64 {
	if tick <= 0 && precision <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	if tick > 0 {
		t := decimal.NewFromFloat(tick)
		p = p.Div(t).Round(0).Mul(t)
		if places := -t.Exponent(); places > precision {
			precision = places
		}
	}
	f, _ := p.Round(precision).Float64()
	return f
}

// SamePrice compares two already rounded prices
func SamePrice(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// LadderLevels builds maxSteps levels on each side of start. The gap
// between the k-th and (k+1)-th level away from start is
// step*(1+shift*k). The result is ascending, rounded, deduplicated and
// includes start itself. Levels that would reach zero or below are dropped.
func LadderLevels(start, step, shift float64, maxSteps int, r Rounder) ([]float64, error) {
	if step <= 0 {
		return nil, ErrInvalidStepSize
	}

	levels := []float64{r.Round(start)}
	down, up := start, start
	for k := 0; k < maxSteps; k++ {
		gap := step * (1 + shift*float64(k))
		up += gap
		levels = append(levels, r.Round(up))
		down -= gap
		if down > 0 {
			levels = append(levels, r.Round(down))
		}
	}

	sort.Float64s(levels)
	uniq := levels[:0]
	for _, l := range levels {
		if l <= 0 {
			continue
		}
		if len(uniq) > 0 && SamePrice(uniq[len(uniq)-1], l) {
			continue
		}
		uniq = append(uniq, l)
	}
	return uniq, nil
}
