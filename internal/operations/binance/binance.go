package binance

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
)

const (
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond
	klineLimit   = 1000
	chunkPause   = 100 * time.Millisecond
)

type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	log         *logrus.Entry
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	// 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &BinanceClient{
		client:      futuresClient,
		rateLimiter: limiter,
		httpClient:  httpClient,
		log:         logger.WithField("component", "binance"),
	}
}

// call runs fn under the rate limiter, retrying transport failures with
// exponential backoff. Errors the API answered with are returned at once.
func (c *BinanceClient) call(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil || isAPIError(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * retryBackoff
		c.log.WithError(err).Debugf("request failed, retrying in %s", waitTime)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return err
}

func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	var klines []*futures.Kline
	err := c.call(ctx, func() error {
		var err error
		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(klineLimit).
			Do(ctx)
		return err
	})
	return klines, err
}

// MinuteCandles downloads the one minute bars of symbol with open time in
// [start, end), one request per klineLimit minutes
func (c *BinanceClient) MinuteCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	var candles []models.Candle
	chunk := klineLimit * time.Minute

	for cur := start; cur.Before(end); {
		next := cur.Add(chunk)
		if next.After(end) {
			next = end
		}

		// EndTime is inclusive on the venue side
		klines, err := c.GetKlines(ctx, symbol, "1m", cur.UnixMilli(), next.UnixMilli()-1)
		if err != nil {
			return nil, err
		}
		for _, k := range klines {
			candle, err := toCandle(symbol, k)
			if err != nil {
				c.log.WithError(err).WithField("symbol", symbol).Warn("skipping malformed kline")
				continue
			}
			candles = append(candles, candle)
		}

		c.log.WithFields(logrus.Fields{
			"symbol": symbol,
			"count":  len(klines),
			"from":   cur.Format("2006-01-02 15:04"),
			"to":     next.Format("2006-01-02 15:04"),
		}).Debug("fetched minute candles")

		cur = next
		if cur.Before(end) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(chunkPause):
			}
		}
	}
	return candles, nil
}

func toCandle(symbol string, k *futures.Kline) (models.Candle, error) {
	if k == nil {
		return models.Candle{}, errors.New("kline cannot be nil")
	}
	var err error
	parse := func(s string) float64 {
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil && err == nil {
			err = perr
		}
		return f
	}
	candle := models.Candle{
		Symbol:     symbol,
		OpenTime:   time.UnixMilli(k.OpenTime).UTC(),
		CloseTime:  time.UnixMilli(k.CloseTime).UTC(),
		Open:       parse(k.Open),
		High:       parse(k.High),
		Low:        parse(k.Low),
		Close:      parse(k.Close),
		Volume:     parse(k.Volume),
		IsComplete: true,
	}
	return candle, err
}

func isAPIError(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr)
}

func apiErrorCode(err error) int64 {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
