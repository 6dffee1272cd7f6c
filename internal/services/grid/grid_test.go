package grid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundToTickIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ticks := []float64{0.01, 0.5, 0.25, 0.005, 1, 5, 0.1}

	for _, tick := range ticks {
		for i := 0; i < 500; i++ {
			p := rng.Float64() * 50000
			once := RoundToTick(p, tick, 2)
			twice := RoundToTick(once, tick, 2)
			require.Equal(t, once, twice, "price %v tick %v", p, tick)
		}
	}
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		tick      float64
		precision int32
		want      float64
	}{
		{"cents", 100.126, 0.01, 2, 100.13},
		{"half tick", 100.3, 0.5, 1, 100.5},
		{"quarter", 10.12, 0.25, 2, 10.0},
		{"precision below tick decimals", 1.005, 0.005, 1, 1.005},
		{"no tick", 3.14159, 0, 3, 3.142},
		{"nothing to do", 3.14159, 0, 0, 3.14159},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundToTick(tt.price, tt.tick, tt.precision))
		})
	}
}

func TestLadderLevels(t *testing.T) {
	inst := Instrument{TickSize: 0.01, Precision: 2}

	levels, err := LadderLevels(100, 1, 0, 3, inst)
	require.NoError(t, err)
	assert.Equal(t, []float64{97, 98, 99, 100, 101, 102, 103}, levels)

	levels, err = LadderLevels(100, 1, 0.5, 3, inst)
	require.NoError(t, err)
	assert.Equal(t, []float64{95.5, 97.5, 99, 100, 101, 102.5, 104.5}, levels)

	_, err = LadderLevels(100, 0, 0, 3, inst)
	assert.ErrorIs(t, err, ErrInvalidStepSize)
}

func TestLadderLevelsDeduplicatesAndDropsNonPositive(t *testing.T) {
	// a coarse tick collapses neighbouring levels
	levels, err := LadderLevels(2, 0.4, 0, 6, Instrument{TickSize: 1})
	require.NoError(t, err)
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}
	assert.Greater(t, levels[0], 0.0)
}

func TestNewConfigClampsBaseSteps(t *testing.T) {
	c, err := NewConfig(Config{Symbol: "X", MaxSteps: 4, BaseSteps: 9, OrderLots: 1, StepSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, c.BaseSteps)
	assert.Equal(t, 4, c.SetOrdersCount)
	assert.Equal(t, PolicyNormal, c.Policy)
	assert.Equal(t, PretestNone, c.PretestKind)

	c, err = NewConfig(Config{Symbol: "X", MaxSteps: 4, BaseSteps: -9, OrderLots: 1, StepSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, c.BaseSteps)

	c, err = NewConfig(Config{Symbol: "X", MaxSteps: 4, BaseSteps: -9, OrderLots: 1, StepSize: 1, MajorityTrade: true})
	require.NoError(t, err)
	assert.Equal(t, -4, c.BaseSteps)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Symbol: "X", Policy: PolicyNormal, PretestKind: PretestNone,
		MaxSteps: 5, OrderLots: 1, StepSize: 1, SetOrdersCount: 3}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero step", func(c *Config) { c.StepSize = 0 }, ErrInvalidStepSize},
		{"negative step", func(c *Config) { c.StepSize = -1 }, ErrInvalidStepSize},
		{"NaN step", func(c *Config) { c.StepSize = math.NaN() }, ErrInvalidStepSize},
		{"infinite step", func(c *Config) { c.StepSize = math.Inf(1) }, ErrInvalidStepSize},
		{"NaN stop up", func(c *Config) { c.StopUpPct = math.NaN() }, ErrStopPct},
		{"infinite stop down", func(c *Config) { c.StopDownPct = math.Inf(1) }, ErrStopPct},
		{"NaN shift", func(c *Config) { c.StepSizeShift = math.NaN() }, ErrStepSizeShift},
		{"symbol with equals", func(c *Config) { c.Symbol = "a=b" }, ErrSymbol},
		{"symbol with space", func(c *Config) { c.Symbol = "BTC USDT" }, ErrSymbol},
		{"no steps", func(c *Config) { c.MaxSteps = 0 }, ErrInvalidMaxSteps},
		{"no lots", func(c *Config) { c.OrderLots = 0 }, ErrInvalidOrderLots},
		{"set above max", func(c *Config) { c.SetOrdersCount = 6 }, ErrSetOrdersCount},
		{"buy threshold inside set", func(c *Config) { c.BuyThresholdSteps = 3 }, ErrThresholds},
		{"sell threshold inside set", func(c *Config) { c.SellThresholdSteps = 2 }, ErrThresholds},
		{"negative stop", func(c *Config) { c.StopDownPct = -0.1 }, ErrStopPct},
		{"negative shift", func(c *Config) { c.StepSizeShift = -0.1 }, ErrStepSizeShift},
		{"unknown policy", func(c *Config) { c.Policy = "zigzag" }, ErrPolicy},
		{"unknown pretest", func(c *Config) { c.PretestKind = "global" }, ErrPretest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), tt.want)
		})
	}
}

func TestDepo(t *testing.T) {
	c := Config{MaxSteps: 5, OrderLots: 2}
	assert.Equal(t, 1000.0, c.Depo(100, 1))
	c.MajorityTrade = true
	assert.Equal(t, 2000.0, c.Depo(100, 1))
	assert.Equal(t, 200.0, c.Depo(100, 0.1))
}

func TestCodecRoundTrip(t *testing.T) {
	configs := []Config{
		{Symbol: "BTCUSDT", Policy: PolicyFan, MaxSteps: 6, BaseSteps: 3, OrderLots: 1, StepSize: 25.5,
			StepSizeShift: 0.05, SetOrdersCount: 3, BuyThresholdSteps: 5, SellThresholdSteps: 5,
			StopUpPct: 0.02, StopDownPct: 0.05, MajorityTrade: true, PretestKind: PretestNeighbors, PretestPeriod: 5},
		{Symbol: "SBER", Policy: PolicyNormal, MaxSteps: 4, BaseSteps: -2, OrderLots: 10, StepSize: 0.1,
			SetOrdersCount: 4, MajorityTrade: true, PretestKind: PretestNone},
		{Symbol: "ETHUSDT", Policy: PolicyShift, MaxSteps: 3, OrderLots: 1, StepSize: 1.0 / 3, SetOrdersCount: 2},
		{},
	}

	for _, c := range configs {
		decoded, err := Decode(Encode(c))
		require.NoError(t, err, Encode(c))
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, s := range []string{"", "X max", "X max=abc", "X color=red", "X pretest=neighbors",
		"X step=NaN", "X step=+Inf", "X shift=nan", "X up=Inf", "X down=-Inf"} {
		_, err := Decode(s)
		assert.ErrorIs(t, err, ErrCodec, s)
	}
}

func TestNewConfigRejectsNaNStep(t *testing.T) {
	_, err := NewConfig(Config{Symbol: "X", Policy: PolicyNormal, PretestKind: PretestNone,
		MaxSteps: 3, OrderLots: 1, StepSize: math.NaN(), SetOrdersCount: 3})
	assert.ErrorIs(t, err, ErrInvalidStepSize)
}

func TestFingerprintIgnoresPretest(t *testing.T) {
	a := Config{Symbol: "X", Policy: PolicyNormal, MaxSteps: 3, OrderLots: 1, StepSize: 1, SetOrdersCount: 3}
	b := a
	b.PretestKind = PretestNeighbors
	b.PretestPeriod = 7
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.StepSize = 2
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
