// journal/journal.go
package journal

import (
	"errors"
	"time"
)

// TradeRecord is a closed position.
type TradeRecord struct {
	TradeID       string
	Symbol        string
	TradingSymbol string
	Side          string
	Quantity      int
	EntryPrice    float64
	ExitPrice     float64
	OpenTime      time.Time
	CloseTime     time.Time
	RealizedPnL   float64
	Strategy      string
	Reason        string
}

// OrderRecord is one submission attempt and its outcome.
type OrderRecord struct {
	Ref           string
	OrderID       string
	Symbol        string
	TradingSymbol string
	Side          string
	Quantity      int
	Product       string
	OrderType     string
	Status        string
	Detail        string
	Time          time.Time
}

type AlertRecord struct {
	Time     time.Time
	Category string
	Severity string
	Message  string
}

type FeatureRecord struct {
	Time   time.Time
	Symbol string
	Data   map[string]any
}

// Journal persists closed trades.
type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// OrderJournal additionally persists order attempts.
type OrderJournal interface {
	Journal
	RecordOrder(OrderRecord) error
}

// Multi writes every trade to each journal and joins the errors.
type Multi []Journal

func (m Multi) RecordTrade(t TradeRecord) error {
	var errs []error
	for _, j := range m {
		if err := j.RecordTrade(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
