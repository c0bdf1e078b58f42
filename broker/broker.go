package broker

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrSessionInvalid means the access token is not usable. Only a manual
	// re-authentication fixes it.
	ErrSessionInvalid = errors.New("broker session invalid")

	// ErrNetwork wraps transient transport failures.
	ErrNetwork = errors.New("broker network failure")
)

// Broker is the order-routing collaborator.
type Broker interface {
	IsSessionValid(ctx context.Context) bool
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error)
	AvailableMargin(ctx context.Context) (float64, error)
}

// Quoter returns last traded prices keyed by trading symbol.
type Quoter interface {
	LTP(ctx context.Context, symbols ...string) (map[string]float64, error)
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	}
	return "", false
}

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() int {
	if s == Sell {
		return -1
	}
	return 1
}

const (
	ProductMIS  = "MIS"
	ProductNRML = "NRML"

	OrderMarket = "MARKET"
	OrderLimit  = "LIMIT"
)

// Policy is the product / order-type pair an order is sent with.
type Policy struct {
	Product   string `json:"product" yaml:"product"`
	OrderType string `json:"order_type" yaml:"order_type"`
}

// IntradayMarket is the only policy new entries may use.
var IntradayMarket = Policy{Product: ProductMIS, OrderType: OrderMarket}

func (p Policy) String() string { return p.Product + "+" + p.OrderType }

type OrderRequest struct {
	TradingSymbol string
	Exchange      string
	Quantity      int
	Side          Side
	Policy
}

type OrderFill struct {
	OrderID       string
	TradingSymbol string
	Quantity      int
	Side          Side
	Price         float64
}
