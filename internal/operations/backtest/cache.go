package backtest

import (
	"sync"

	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
)

// DayKey addresses a replayed day by content, so concurrent writers of the
// same key always carry the same result
type DayKey struct {
	Date         string
	Fingerprint  string
	StartingLots int
}

// DayCache is safe for concurrent use by parallel replays
type DayCache struct {
	mu    sync.RWMutex
	days  map[DayKey]models.DayResult
	store DayStore
	log   *logrus.Entry
}

// NewDayCache creates a cache. A nil store keeps results in memory only.
func NewDayCache(store DayStore) *DayCache {
	return &DayCache{
		days:  make(map[DayKey]models.DayResult),
		store: store,
		log:   logger.WithField("component", "day_cache"),
	}
}

func (c *DayCache) Get(key DayKey) (models.DayResult, bool) {
	c.mu.RLock()
	day, ok := c.days[key]
	c.mu.RUnlock()
	if ok || c.store == nil {
		return day, ok
	}

	stored, err := c.store.FindByKey(key.Date, key.Fingerprint, key.StartingLots)
	if err != nil {
		c.log.WithError(err).Warn("day store lookup failed")
		return models.DayResult{}, false
	}
	if stored == nil {
		return models.DayResult{}, false
	}

	c.mu.Lock()
	c.days[key] = *stored
	c.mu.Unlock()
	return *stored, true
}

func (c *DayCache) Put(key DayKey, day models.DayResult) {
	day.Date = key.Date
	day.Fingerprint = key.Fingerprint
	day.StartingLots = key.StartingLots

	c.mu.Lock()
	c.days[key] = day
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	row := day
	row.ID = 0
	if err := c.store.Save(&row); err != nil {
		c.log.WithError(err).Warn("failed to persist day result")
	}
}

func (c *DayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.days)
}
