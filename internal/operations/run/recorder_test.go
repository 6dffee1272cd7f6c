package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"GridTradeBot/internal/models"
	"GridTradeBot/internal/repositories"
	"GridTradeBot/internal/services/accounting"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/trading"
)

func newTestRecorder(t *testing.T) (*Recorder, *repositories.RunRepository, *repositories.DealRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	runs := repositories.NewRunRepository(db)
	deals := repositories.NewDealRepository(db)
	return NewRecorder(runs, deals), runs, deals
}

func testConfig() grid.Config {
	return grid.Config{Symbol: "BTCUSDT", MaxSteps: 5, OrderLots: 1, StepSize: 1}.Normalize()
}

func TestRecorderTracksSnapshots(t *testing.T) {
	rec, runs, _ := newTestRecorder(t)
	ctx := context.Background()

	run, err := rec.Begin(testConfig())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusNew, run.Status)

	decoded, err := grid.Decode(run.Config)
	require.NoError(t, err)
	assert.Equal(t, testConfig().Fingerprint(), decoded.Fingerprint())

	require.NoError(t, rec.Record(ctx, run.ID, trading.Snapshot{
		Status: trading.StateWorking, Data: "price 100", Total: 500, Profit: 1.5, EndLots: 2,
	}))
	got, err := runs.FindByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWorking, got.Status)
	assert.Equal(t, 1.5, got.Profit)
	assert.Nil(t, got.FinishedAt)

	end := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record(ctx, run.ID, trading.Snapshot{
		Status: trading.StateFinished, Profit: 3, Errors: 1, Time: end,
	}))
	got, err = runs.FindByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFinished, got.Status)
	assert.Equal(t, 1, got.ErrorCount)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(end))

	err = rec.Record(ctx, 999, trading.Snapshot{Status: trading.StateWorking})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRecorderFail(t *testing.T) {
	rec, runs, _ := newTestRecorder(t)

	run, err := rec.Begin(testConfig())
	require.NoError(t, err)
	require.NoError(t, rec.Fail(run.ID, errors.New("exchange offline")))

	got, err := runs.FindByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "exchange offline", got.Data)
	assert.NotNil(t, got.FinishedAt)
}

func TestDealSink(t *testing.T) {
	rec, _, deals := newTestRecorder(t)
	ctx := context.Background()

	acc := accounting.New(0, 1, accounting.WithSink(rec.Deals(7)))
	acc.ApplyFilled(ctx, &exchange.Order{ID: "a", Side: exchange.SideBuy, Kind: exchange.KindLimit,
		RequestedLots: 2, ExecutedLots: 2, ExecutedPrice: 99, Commission: 0.1})
	acc.RecordFailure(ctx, exchange.SideSell, 1, 101)

	stored, err := deals.FindByRun(7)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "buy", stored[0].Side)
	assert.Equal(t, 99.0, stored[0].Price)
	assert.True(t, stored[1].Failed)

	sum, err := deals.SumCommission(7)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, sum, 1e-9)
}
