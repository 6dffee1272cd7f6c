package orderbook

import (
	"errors"
	"fmt"
	"sort"

	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
)

var (
	ErrDuplicatePrice = errors.New("order already resting at this price")
	ErrNotLimit       = errors.New("only limit orders rest in the book")
)

// Book tracks the resting limit orders of one engine. It is not safe for
// concurrent use; an engine owns its book.
type Book struct {
	buys  map[string]*exchange.Order
	sells map[string]*exchange.Order
}

func New() *Book {
	return &Book{
		buys:  make(map[string]*exchange.Order),
		sells: make(map[string]*exchange.Order),
	}
}

func (b *Book) side(s exchange.Side) map[string]*exchange.Order {
	if s == exchange.SideBuy {
		return b.buys
	}
	return b.sells
}

// Add starts tracking a resting order
func (b *Book) Add(o *exchange.Order) error {
	if o == nil {
		return errors.New("order cannot be nil")
	}
	if o.Kind != exchange.KindLimit {
		return ErrNotLimit
	}
	if b.has(o.Side, o.LimitPrice) {
		return fmt.Errorf("%w: %s %v", ErrDuplicatePrice, o.Side, o.LimitPrice)
	}
	b.side(o.Side)[o.ID] = o
	return nil
}

// Remove stops tracking an order and returns it, or nil if unknown
func (b *Book) Remove(id string) *exchange.Order {
	if o, ok := b.buys[id]; ok {
		delete(b.buys, id)
		return o
	}
	if o, ok := b.sells[id]; ok {
		delete(b.sells, id)
		return o
	}
	return nil
}

func (b *Book) Get(id string) *exchange.Order {
	if o, ok := b.buys[id]; ok {
		return o
	}
	return b.sells[id]
}

// Buys returns resting buys, highest price first
func (b *Book) Buys() []*exchange.Order {
	out := collect(b.buys)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LimitPrice > out[j].LimitPrice })
	return out
}

// Sells returns resting sells, lowest price first
func (b *Book) Sells() []*exchange.Order {
	out := collect(b.sells)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LimitPrice < out[j].LimitPrice })
	return out
}

func (b *Book) BuyPrices() []float64 {
	return prices(b.Buys())
}

func (b *Book) SellPrices() []float64 {
	return prices(b.Sells())
}

func (b *Book) HasBuyAt(price float64) bool {
	return b.has(exchange.SideBuy, price)
}

func (b *Book) HasSellAt(price float64) bool {
	return b.has(exchange.SideSell, price)
}

// RestingLots sums the unexecuted lots resting on one side
func (b *Book) RestingLots(s exchange.Side) int {
	total := 0
	for _, o := range b.side(s) {
		total += o.RequestedLots - o.ExecutedLots
	}
	return total
}

// Missing lists tracked orders absent from the exchange's active snapshot.
// Those have either executed or been cancelled outside the engine.
func (b *Book) Missing(active []exchange.Order) []*exchange.Order {
	live := make(map[string]struct{}, len(active))
	for _, o := range active {
		live[o.ID] = struct{}{}
	}

	var missing []*exchange.Order
	for _, o := range b.All() {
		if _, ok := live[o.ID]; !ok {
			missing = append(missing, o)
		}
	}
	return missing
}

func (b *Book) Len() int {
	return len(b.buys) + len(b.sells)
}

// All returns buys then sells, each in book order
func (b *Book) All() []*exchange.Order {
	return append(b.Buys(), b.Sells()...)
}

func (b *Book) has(s exchange.Side, price float64) bool {
	for _, o := range b.side(s) {
		if grid.SamePrice(o.LimitPrice, price) {
			return true
		}
	}
	return false
}

func collect(m map[string]*exchange.Order) []*exchange.Order {
	out := make([]*exchange.Order, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	// map order is random, so ties need a fixed order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func prices(orders []*exchange.Order) []float64 {
	out := make([]float64, len(orders))
	for i, o := range orders {
		out[i] = o.LimitPrice
	}
	return out
}
