package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"GridTradeBot/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestCandleRepository(t *testing.T) {
	repo := NewCandleRepository(newTestDB(t))
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	var candles []models.Candle
	for i := 0; i < 5; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		candles = append(candles, models.Candle{Symbol: "BTCUSDT", OpenTime: open,
			CloseTime: open.Add(time.Minute - time.Millisecond), Open: 100, High: 101, Low: 99,
			Close: 100 + float64(i), IsComplete: true})
	}
	require.NoError(t, repo.SaveBatch(candles))
	// stored minutes are skipped, not duplicated
	require.NoError(t, repo.SaveBatch(candles[:2]))

	got, err := repo.FindRange("BTCUSDT", start.Add(time.Minute), start.Add(4*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 101.0, got[0].Close)
	assert.Equal(t, 103.0, got[2].Close)

	count, err := repo.CountRange("BTCUSDT", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	latest, err := repo.GetLatest("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 104.0, latest.Close)

	latest, err = repo.GetLatest("ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = repo.FindRange("", start, start)
	assert.Error(t, err)
}

func TestRunRepository(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	run := &models.Run{Symbol: "BTCUSDT", Config: "BTCUSDT max=5", Status: models.RunStatusNew, StartedAt: time.Now()}
	require.NoError(t, repo.Create(run))
	require.NotZero(t, run.ID)

	run.Status = models.RunStatusWorking
	run.Profit = 12.5
	require.NoError(t, repo.Update(run))

	got, err := repo.FindByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWorking, got.Status)
	assert.Equal(t, 12.5, got.Profit)

	done := &models.Run{Symbol: "ETHUSDT", Config: "x", Status: models.RunStatusFinished, StartedAt: time.Now()}
	require.NoError(t, repo.Create(done))

	active, err := repo.FindActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, run.ID, active[0].ID)

	missing, err := repo.FindByID(999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDayResultRepository(t *testing.T) {
	repo := NewDayResultRepository(newTestDB(t))

	day := &models.DayResult{Date: "2024-03-04", Fingerprint: "fp", StartingLots: 2,
		StartPrice: 100, EndPrice: 101, EndLots: 3, Operations: 7, DaySum: 4.5}
	require.NoError(t, repo.Save(day))

	dup := *day
	dup.ID = 0
	dup.DaySum = 99
	require.NoError(t, repo.Save(&dup))

	got, err := repo.FindByKey("2024-03-04", "fp", 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4.5, got.DaySum)
	assert.Equal(t, 7, got.Operations)

	got, err = repo.FindByKey("2024-03-04", "fp", 3)
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := repo.CountByFingerprint("fp")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDealRepository(t *testing.T) {
	repo := NewDealRepository(newTestDB(t))
	now := time.Now()

	require.NoError(t, repo.Create(&models.Deal{RunID: 1, Side: "buy", Lots: 1, Price: 100, Commission: 0.1, Time: now}))
	require.NoError(t, repo.Create(&models.Deal{RunID: 1, Side: "sell", Lots: 1, Price: 101, Commission: 0.2, Time: now}))
	require.NoError(t, repo.Create(&models.Deal{RunID: 1, Side: "buy", Lots: 1, Price: 99, Failed: true, Time: now}))
	require.NoError(t, repo.Create(&models.Deal{RunID: 2, Side: "buy", Lots: 1, Price: 50, Time: now}))

	deals, err := repo.FindByRun(1)
	require.NoError(t, err)
	require.Len(t, deals, 3)
	assert.Equal(t, "sell", deals[1].Side)

	total, err := repo.SumCommission(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, total, 1e-9)
}

func TestCommandRepository(t *testing.T) {
	repo := NewCommandRepository(newTestDB(t))

	stop := &models.Command{RunID: 4, Kind: models.CommandKindStop}
	require.NoError(t, repo.Create(stop))
	assert.Equal(t, models.CommandStatusPending, stop.Status)
	require.NoError(t, repo.Create(&models.Command{RunID: 4, Kind: "bogus"}))
	require.NoError(t, repo.Create(&models.Command{RunID: 5, Kind: models.CommandKindStop}))

	pending, err := repo.FindPending(4)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.Finish(pending[0].ID, ""))
	require.NoError(t, repo.Finish(pending[1].ID, "unknown command"))

	pending, err = repo.FindPending(4)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var failed models.Command
	require.NoError(t, repo.db.First(&failed, "kind = ?", "bogus").Error)
	assert.Equal(t, models.CommandStatusFailed, failed.Status)
	assert.Equal(t, "unknown command", failed.Error)
}
