package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

// codeUnknownOrder is returned when cancelling an order that no longer rests
const codeUnknownOrder = -2011

// Exchange is the live exchange.Client for one futures symbol. One lot is
// LotSize contracts of the symbol.
type Exchange struct {
	api            *BinanceClient
	inst           grid.Instrument
	qtyPrecision   int32
	commissionRate float64
	log            *logrus.Entry

	mu        sync.Mutex
	lastPrice float64
}

type ExchangeOptions struct {
	Symbol         string
	LotSize        float64
	CommissionRate float64 // fraction of traded notional
}

// NewExchange loads the symbol's filters so prices and quantities can be
// rounded before they are sent
func NewExchange(ctx context.Context, api *BinanceClient, opts ExchangeOptions) (*Exchange, error) {
	var info *futures.ExchangeInfo
	err := api.call(ctx, func() error {
		var err error
		info, err = api.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != opts.Symbol {
			continue
		}
		inst, qtyPrecision := instrumentFromSymbol(s, opts.LotSize)
		return &Exchange{
			api:            api,
			inst:           inst,
			qtyPrecision:   qtyPrecision,
			commissionRate: opts.CommissionRate,
			log:            api.log.WithField("symbol", opts.Symbol),
		}, nil
	}
	return nil, fmt.Errorf("symbol %s not listed", opts.Symbol)
}

func instrumentFromSymbol(s futures.Symbol, lotSize float64) (grid.Instrument, int32) {
	inst := grid.Instrument{
		Symbol:    s.Symbol,
		Precision: int32(s.PricePrecision),
		LotSize:   lotSize,
	}
	if f := s.PriceFilter(); f != nil {
		inst.TickSize, _ = strconv.ParseFloat(f.TickSize, 64)
	}
	return inst, int32(s.QuantityPrecision)
}

func (e *Exchange) Instrument() grid.Instrument {
	return e.inst
}

func (e *Exchange) CurrentPrice(ctx context.Context) (float64, error) {
	var prices []*futures.SymbolPrice
	err := e.api.call(ctx, func() error {
		var err error
		prices, err = e.api.client.NewListPricesService().Symbol(e.inst.Symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", exchange.ErrPriceUnavailable, err)
	}
	for _, p := range prices {
		if p.Symbol != e.inst.Symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || price <= 0 {
			return 0, exchange.ErrPriceUnavailable
		}
		e.mu.Lock()
		e.lastPrice = price
		e.mu.Unlock()
		return price, nil
	}
	return 0, exchange.ErrPriceUnavailable
}

func (e *Exchange) PlaceOrder(ctx context.Context, lots int, side exchange.Side, price float64, kind exchange.Kind) (*exchange.Order, error) {
	if lots <= 0 {
		return nil, fmt.Errorf("%w: lots must be positive", exchange.ErrOrderRejected)
	}

	svc := e.api.client.NewCreateOrderService().
		Symbol(e.inst.Symbol).
		Side(toSideType(side)).
		Quantity(e.quantity(lots))

	switch kind {
	case exchange.KindMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case exchange.KindLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(e.price(price))
	case exchange.KindBestPrice:
		if price <= 0 {
			e.mu.Lock()
			price = e.lastPrice
			e.mu.Unlock()
		}
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeIOC).
			Price(e.price(price))
	default:
		return nil, fmt.Errorf("%w: unknown order kind %q", exchange.ErrOrderRejected, kind)
	}

	var resp *futures.CreateOrderResponse
	err := e.api.call(ctx, func() error {
		var err error
		resp, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		if isAPIError(err) {
			return nil, fmt.Errorf("%w: %v", exchange.ErrOrderRejected, err)
		}
		return nil, err
	}

	order := &exchange.Order{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		Side:          side,
		Kind:          kind,
		RequestedLots: lots,
		CreatedAt:     time.Now(),
	}
	if kind == exchange.KindLimit {
		order.LimitPrice = e.inst.Round(price)
	}

	// market and IOC orders are done once accepted; read back what executed
	if kind != exchange.KindLimit {
		if _, st, err := e.OrderExecuted(ctx, order); err == nil {
			order.Apply(st)
		} else {
			e.log.WithError(err).WithField("order", order.ID).Warn("failed to read back order execution")
		}
	}
	return order, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, order *exchange.Order) (bool, error) {
	id, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid order id %q: %w", order.ID, err)
	}
	err = e.api.call(ctx, func() error {
		_, err := e.api.client.NewCancelOrderService().
			Symbol(e.inst.Symbol).
			OrderID(id).
			Do(ctx)
		return err
	})
	if err != nil {
		if apiErrorCode(err) == codeUnknownOrder {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (e *Exchange) OrderExecuted(ctx context.Context, order *exchange.Order) (bool, *exchange.OrderState, error) {
	id, err := strconv.ParseInt(order.ID, 10, 64)
	if err != nil {
		return false, nil, fmt.Errorf("invalid order id %q: %w", order.ID, err)
	}
	var o *futures.Order
	err = e.api.call(ctx, func() error {
		var err error
		o, err = e.api.client.NewGetOrderService().
			Symbol(e.inst.Symbol).
			OrderID(id).
			Do(ctx)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	st := e.toState(o)
	return st.Status == exchange.StatusFilled, st, nil
}

func (e *Exchange) ActiveOrders(ctx context.Context) ([]exchange.Order, error) {
	var open []*futures.Order
	err := e.api.call(ctx, func() error {
		var err error
		open, err = e.api.client.NewListOpenOrdersService().Symbol(e.inst.Symbol).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	orders := make([]exchange.Order, 0, len(open))
	for _, o := range open {
		price, _ := strconv.ParseFloat(o.Price, 64)
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		st := e.toState(o)
		orders = append(orders, exchange.Order{
			ID:            st.ID,
			Side:          fromSideType(o.Side),
			Kind:          exchange.KindLimit,
			RequestedLots: e.lots(qty),
			LimitPrice:    price,
			ExecutedLots:  st.ExecutedLots,
			ExecutedPrice: st.ExecutedPrice,
			Commission:    st.Commission,
		})
	}
	return orders, nil
}

func (e *Exchange) InstrumentCount(ctx context.Context) (int, error) {
	var risks []*futures.PositionRisk
	err := e.api.call(ctx, func() error {
		var err error
		risks, err = e.api.client.NewGetPositionRiskService().Symbol(e.inst.Symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, r := range risks {
		amt, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid position amount %q: %w", r.PositionAmt, err)
		}
		total += amt
	}
	return e.lots(total), nil
}

func (e *Exchange) RoundToTick(price float64) float64 {
	return e.inst.Round(price)
}

// TradingIsOpen reports whether the venue answers; futures trade around the clock
func (e *Exchange) TradingIsOpen(ctx context.Context) bool {
	err := e.api.call(ctx, func() error {
		return e.api.client.NewPingService().Do(ctx)
	})
	if err != nil {
		e.log.WithError(err).Warn("venue unreachable")
		return false
	}
	return true
}

func (e *Exchange) toState(o *futures.Order) *exchange.OrderState {
	executed, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(o.CumQuote, 64)
	st := &exchange.OrderState{
		ID:           strconv.FormatInt(o.OrderID, 10),
		Status:       toStatus(o.Status),
		ExecutedLots: e.lots(executed),
		Commission:   quote * e.commissionRate,
	}
	if executed > 0 {
		st.ExecutedPrice = e.inst.Round(quote / executed)
	}
	return st
}

func (e *Exchange) quantity(lots int) string {
	return decimal.NewFromFloat(e.inst.Lot()).
		Mul(decimal.NewFromInt(int64(lots))).
		StringFixed(e.qtyPrecision)
}

func (e *Exchange) price(p float64) string {
	return decimal.NewFromFloat(e.inst.Round(p)).StringFixed(e.inst.Precision)
}

// lots converts a contract quantity to whole lots, rounding to nearest
func (e *Exchange) lots(qty float64) int {
	l, _ := decimal.NewFromFloat(qty).
		Div(decimal.NewFromFloat(e.inst.Lot())).
		Round(0).
		Float64()
	return int(l)
}

func toSideType(s exchange.Side) futures.SideType {
	if s == exchange.SideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func fromSideType(s futures.SideType) exchange.Side {
	if s == futures.SideTypeBuy {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

func toStatus(s futures.OrderStatusType) exchange.Status {
	switch s {
	case futures.OrderStatusTypeNew:
		return exchange.StatusNew
	case futures.OrderStatusTypePartiallyFilled:
		return exchange.StatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case futures.OrderStatusTypeRejected:
		return exchange.StatusRejected
	default:
		return exchange.StatusCancelled
	}
}
