package binance

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

func testExchange(lotSize float64) *Exchange {
	return &Exchange{
		inst:           grid.Instrument{Symbol: "BTCUSDT", TickSize: 0.1, Precision: 1, LotSize: lotSize},
		qtyPrecision:   3,
		commissionRate: 0.0004,
	}
}

func TestToCandle(t *testing.T) {
	open := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	k := &futures.Kline{
		OpenTime:  open.UnixMilli(),
		CloseTime: open.Add(time.Minute).UnixMilli() - 1,
		Open:      "100.5",
		High:      "101",
		Low:       "99.9",
		Close:     "100.2",
		Volume:    "12.345",
	}

	c, err := toCandle("BTCUSDT", k)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", c.Symbol)
	assert.True(t, c.OpenTime.Equal(open))
	assert.Equal(t, 100.5, c.Open)
	assert.Equal(t, 101.0, c.High)
	assert.Equal(t, 99.9, c.Low)
	assert.Equal(t, 100.2, c.Close)
	assert.Equal(t, 12.345, c.Volume)

	k.High = "n/a"
	_, err = toCandle("BTCUSDT", k)
	assert.Error(t, err)

	_, err = toCandle("BTCUSDT", nil)
	assert.Error(t, err)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		in   futures.OrderStatusType
		want exchange.Status
	}{
		{futures.OrderStatusTypeNew, exchange.StatusNew},
		{futures.OrderStatusTypePartiallyFilled, exchange.StatusPartiallyFilled},
		{futures.OrderStatusTypeFilled, exchange.StatusFilled},
		{futures.OrderStatusTypeCanceled, exchange.StatusCancelled},
		{futures.OrderStatusTypeExpired, exchange.StatusCancelled},
		{futures.OrderStatusTypeRejected, exchange.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, toStatus(tt.in))
		})
	}
}

func TestSideConversion(t *testing.T) {
	assert.Equal(t, futures.SideTypeBuy, toSideType(exchange.SideBuy))
	assert.Equal(t, futures.SideTypeSell, toSideType(exchange.SideSell))
	assert.Equal(t, exchange.SideBuy, fromSideType(futures.SideTypeBuy))
	assert.Equal(t, exchange.SideSell, fromSideType(futures.SideTypeSell))
}

func TestQuantityAndLots(t *testing.T) {
	e := testExchange(0.001)
	assert.Equal(t, "0.005", e.quantity(5))
	assert.Equal(t, 5, e.lots(0.005))
	assert.Equal(t, -3, e.lots(-0.003))

	e = testExchange(0)
	assert.Equal(t, "2.000", e.quantity(2))
	assert.Equal(t, 2, e.lots(2))
}

func TestPriceFormatting(t *testing.T) {
	e := testExchange(1)
	assert.Equal(t, "100.2", e.price(100.23))
	assert.Equal(t, "100.0", e.price(99.97))
	assert.Equal(t, 100.2, e.RoundToTick(100.23))
}

func TestToState(t *testing.T) {
	e := testExchange(0.01)
	st := e.toState(&futures.Order{
		OrderID:          42,
		Status:           futures.OrderStatusTypePartiallyFilled,
		ExecutedQuantity: "0.04",
		CumQuote:         "4.02",
	})
	assert.Equal(t, "42", st.ID)
	assert.Equal(t, exchange.StatusPartiallyFilled, st.Status)
	assert.Equal(t, 4, st.ExecutedLots)
	assert.Equal(t, 100.5, st.ExecutedPrice)
	assert.InDelta(t, 4.02*0.0004, st.Commission, 1e-12)

	st = e.toState(&futures.Order{OrderID: 7, Status: futures.OrderStatusTypeNew, ExecutedQuantity: "0", CumQuote: "0"})
	assert.Zero(t, st.ExecutedLots)
	assert.Zero(t, st.ExecutedPrice)
}

func TestAPIErrorCode(t *testing.T) {
	err := fmt.Errorf("cancel: %w", &common.APIError{Code: codeUnknownOrder, Message: "Unknown order sent."})
	assert.True(t, isAPIError(err))
	assert.Equal(t, int64(codeUnknownOrder), apiErrorCode(err))

	assert.False(t, isAPIError(errors.New("connection reset")))
	assert.Zero(t, apiErrorCode(errors.New("connection reset")))
}
