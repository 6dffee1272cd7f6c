package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	s := NewEMAService()
	ema := s.Calculate([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, ema, 5)
	assert.Zero(t, ema[1])
	assert.InDelta(t, 2.0, ema[2], 1e-12)
	assert.InDelta(t, 3.0, ema[3], 1e-12)
	assert.InDelta(t, 4.0, ema[4], 1e-12)
	assert.InDelta(t, 1.0/3, s.Slope(ema), 1e-12)

	assert.Nil(t, s.Calculate([]float64{1, 2}, 3))
	assert.Zero(t, s.Slope([]float64{5}))
}

func TestBollingerBands(t *testing.T) {
	s := NewBBandsService()

	flat := s.Calculate([]float64{10, 10, 10, 10}, 2, 2)
	require.NotNil(t, flat)
	assert.InDelta(t, 10, flat.Middle[3], 1e-12)
	assert.InDelta(t, 0, flat.Width[3], 1e-9)

	res := s.Calculate([]float64{9, 11, 9, 11}, 2, 2)
	require.NotNil(t, res)
	// mean 10, deviation 1
	assert.InDelta(t, 12, res.Upper[1], 1e-9)
	assert.InDelta(t, 8, res.Lower[3], 1e-9)
	assert.InDelta(t, 0.4, res.Width[2], 1e-9)
	assert.InDelta(t, 0.4, s.AverageWidth([]float64{9, 11, 9, 11}, 2, 2), 1e-9)

	assert.Nil(t, s.Calculate([]float64{1}, 2, 2))
	assert.Zero(t, s.AverageWidth([]float64{1}, 2, 2))
}
