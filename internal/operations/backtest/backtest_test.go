package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

var testDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	candles []models.Candle
	calls   int
	err     error
}

func (f *fakeSource) Candles(_ context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Candle
	for _, c := range f.candles {
		if c.Symbol == symbol && !c.OpenTime.Before(start) && c.OpenTime.Before(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

// oscillating builds minute candles around 100 between 10:00 and 12:00
func oscillating(day time.Time) []models.Candle {
	var out []models.Candle
	prev := 100.0
	start := day.Add(10 * time.Hour)
	for i := 0; i < 120; i++ {
		p := math.Round((100+2*math.Sin(2*math.Pi*float64(i)/30))*100) / 100
		out = append(out, models.Candle{
			Symbol:     "TEST",
			OpenTime:   start.Add(time.Duration(i) * time.Minute),
			Open:       prev,
			High:       math.Max(prev, p) + 0.1,
			Low:        math.Min(prev, p) - 0.1,
			Close:      p,
			IsComplete: true,
		})
		prev = p
	}
	return out
}

func testConfig() grid.Config {
	return grid.Config{Symbol: "TEST", Policy: grid.PolicyNormal, PretestKind: grid.PretestNone,
		MaxSteps: 5, OrderLots: 1, StepSize: 1, SetOrdersCount: 3}
}

func testOptions() Options {
	return Options{
		Instrument:   grid.Instrument{Symbol: "TEST", TickSize: 0.01, Precision: 2},
		SessionStart: 10 * time.Hour,
		SessionEnd:   12 * time.Hour,
		SleepTrading: time.Minute,
		Now:          func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) },
		Logger:       logrus.NewEntry(logger.Discard()),
	}
}

func TestSimulatorFills(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(grid.Instrument{TickSize: 0.01, Precision: 2}, 0.001, 0)

	_, err := sim.PlaceOrder(ctx, 1, exchange.SideBuy, 0, exchange.KindMarket)
	assert.ErrorIs(t, err, exchange.ErrOrderRejected)
	_, err = sim.CurrentPrice(ctx)
	assert.ErrorIs(t, err, exchange.ErrPriceUnavailable)

	sim.Feed(models.Candle{OpenTime: testDay, Open: 100, High: 100.5, Low: 99.5, Close: 100})

	buy, err := sim.PlaceOrder(ctx, 1, exchange.SideBuy, 99.001, exchange.KindLimit)
	require.NoError(t, err)
	assert.Equal(t, 99.0, buy.LimitPrice)
	sell, err := sim.PlaceOrder(ctx, 1, exchange.SideSell, 101, exchange.KindLimit)
	require.NoError(t, err)

	active, err := sim.ActiveOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	sim.Feed(models.Candle{OpenTime: testDay.Add(time.Minute), Open: 100, High: 100, Low: 98.9, Close: 99.5})

	executed, st, err := sim.OrderExecuted(ctx, buy)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, 99.0, st.ExecutedPrice)
	assert.InDelta(t, 0.099, st.Commission, 1e-9)
	executed, _, err = sim.OrderExecuted(ctx, sell)
	require.NoError(t, err)
	assert.False(t, executed)

	lots, _ := sim.InstrumentCount(ctx)
	assert.Equal(t, 1, lots)

	market, err := sim.PlaceOrder(ctx, 1, exchange.SideSell, 0, exchange.KindMarket)
	require.NoError(t, err)
	assert.Equal(t, 99.5, market.ExecutedPrice)

	marketable, err := sim.PlaceOrder(ctx, 1, exchange.SideBuy, 100, exchange.KindLimit)
	require.NoError(t, err)
	assert.True(t, marketable.Filled())
	assert.Equal(t, 99.5, marketable.ExecutedPrice)

	ok, err := sim.CancelOrder(ctx, sell)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = sim.CancelOrder(ctx, sell)
	assert.False(t, ok)
	executed, st, err = sim.OrderExecuted(ctx, sell)
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Equal(t, exchange.StatusCancelled, st.Status)

	active, _ = sim.ActiveOrders(ctx)
	assert.Empty(t, active)
}

func TestReplayTradesOscillation(t *testing.T) {
	source := &fakeSource{candles: oscillating(testDay)}
	r := NewReplayer(source, NewDayCache(nil), testOptions())

	res, err := r.Run(context.Background(), testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)

	day := res.Days[0]
	assert.Equal(t, "2024-03-04", day.Date)
	assert.Equal(t, 100.0, day.StartPrice)
	assert.Greater(t, day.Operations, 0)
	assert.GreaterOrEqual(t, day.EndLots, 0)
	assert.LessOrEqual(t, day.EndLots, 5)
	assert.Equal(t, day.EndLots, res.EndLots)
	assert.Equal(t, day.DaySum, res.Profit)
	assert.InDelta(t, res.Profit/500*100, res.ProfitPercent, 1e-9)
}

func TestMissingMinutes(t *testing.T) {
	candles := oscillating(testDay)
	assert.Equal(t, 0, missingMinutes(candles))
	assert.Equal(t, 0, missingMinutes(candles[:1]))

	holed := append(append([]models.Candle{}, candles[:10]...), candles[15:]...)
	assert.Equal(t, 5, missingMinutes(holed))
}

func TestReplayLogsDataGaps(t *testing.T) {
	candles := oscillating(testDay)
	holed := append(append([]models.Candle{}, candles[:30]...), candles[33:]...)
	source := &fakeSource{candles: holed}

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	opts := testOptions()
	opts.Logger = logrus.NewEntry(log)

	_, err := NewReplayer(source, NewDayCache(nil), opts).Run(context.Background(), testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)

	var gaps []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "minute candles missing, replaying through the gaps" {
			gaps = append(gaps, e)
		}
	}
	require.Len(t, gaps, 1)
	assert.Equal(t, 3, gaps[0].Data["gaps"])
	assert.Equal(t, "2024-03-04", gaps[0].Data["day"])
}

func TestDayCacheIdempotence(t *testing.T) {
	source := &fakeSource{candles: oscillating(testDay)}
	r := NewReplayer(source, NewDayCache(nil), testOptions())
	ctx := context.Background()

	first, err := r.Run(ctx, testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	second, err := r.Run(ctx, testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)

	assert.Equal(t, first.Days, second.Days)
	assert.Equal(t, int64(1), r.Simulations())
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, r.Cache().Len())

	// a different starting position is a different day
	_, err = r.Run(ctx, testConfig(), 2, []time.Time{testDay}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Simulations())
}

type memoryStore struct {
	rows map[DayKey]models.DayResult
}

func (m *memoryStore) FindByKey(date, fp string, lots int) (*models.DayResult, error) {
	row, ok := m.rows[DayKey{date, fp, lots}]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryStore) Save(d *models.DayResult) error {
	m.rows[DayKey{d.Date, d.Fingerprint, d.StartingLots}] = *d
	return nil
}

func TestDayCacheReadsThroughStore(t *testing.T) {
	store := &memoryStore{rows: make(map[DayKey]models.DayResult)}
	source := &fakeSource{candles: oscillating(testDay)}
	ctx := context.Background()

	first := NewReplayer(source, NewDayCache(store), testOptions())
	res, err := first.Run(ctx, testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	require.Len(t, store.rows, 1)

	// a fresh process finds the day in the store
	second := NewReplayer(source, NewDayCache(store), testOptions())
	again, err := second.Run(ctx, testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Simulations())
	assert.Equal(t, res.Profit, again.Profit)
	assert.Equal(t, 1, source.calls)
}

func TestPartialDayIsNotCached(t *testing.T) {
	opts := testOptions()
	opts.Now = func() time.Time { return testDay.Add(11*time.Hour + 30*time.Second) }
	source := &fakeSource{candles: oscillating(testDay)}
	r := NewReplayer(source, NewDayCache(nil), opts)

	res, err := r.Run(context.Background(), testConfig(), 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)
	assert.Equal(t, 0, r.Cache().Len())

	// a day that has not started yet has nothing to replay
	res, err = r.Run(context.Background(), testConfig(), 0, []time.Time{testDay.AddDate(0, 0, 1)}, false)
	require.NoError(t, err)
	assert.Empty(t, res.Days)
}

func TestDaysWithoutCandlesAreSkipped(t *testing.T) {
	source := &fakeSource{candles: oscillating(testDay)}
	r := NewReplayer(source, NewDayCache(nil), testOptions())

	days := []time.Time{testDay.AddDate(0, 0, -1), testDay}
	res, err := r.Run(context.Background(), testConfig(), 0, days, false)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)
	assert.Equal(t, "2024-03-04", res.Days[0].Date)

	source.err = errors.New("exchange down")
	_, err = NewReplayer(source, nil, testOptions()).Run(context.Background(), testConfig(), 0, days, false)
	assert.Error(t, err)
}

type fakeSelector struct {
	calls int
}

func (f *fakeSelector) Select(_ context.Context, base grid.Config, _ *grid.Config, _ time.Time) (grid.Config, error) {
	f.calls++
	base.StepSize = 2
	return base, nil
}

func TestSelectorOnlyRunsWhenNested(t *testing.T) {
	source := &fakeSource{candles: oscillating(testDay)}
	r := NewReplayer(source, NewDayCache(nil), testOptions())
	sel := &fakeSelector{}
	r.SetSelector(sel)

	cfg := testConfig()
	cfg.PretestKind = grid.PretestNeighbors
	cfg.PretestPeriod = 3

	res, err := r.Run(context.Background(), cfg, 0, []time.Time{testDay}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.calls)
	assert.Equal(t, 2.0, res.FinalConfig.StepSize)

	res, err = r.Run(context.Background(), cfg, 0, []time.Time{testDay}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.calls)
	assert.Equal(t, 1.0, res.FinalConfig.StepSize)
}

func TestMetrics(t *testing.T) {
	days := []models.DayResult{{DaySum: 10}, {DaySum: -11}, {DaySum: 21}}
	curve := equityCurve(100, days)
	require.Len(t, curve, 4)
	assert.Equal(t, 120.0, curve[3].Balance)
	assert.InDelta(t, 0.1, maxDrawdown(100, curve), 1e-9)
	assert.NotZero(t, sharpeRatio(curve))
	assert.Zero(t, sharpeRatio(curve[:2]))
}
