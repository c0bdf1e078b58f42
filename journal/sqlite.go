package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the process journal. Times are stored in UTC so range
// queries compare consistently.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One writer; the decision cycle and the supervisor share the handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, trading_symbol, side, quantity, entry_price, exit_price, open_time, close_time, realized_pnl, strategy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.TradingSymbol, t.Side, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPnL, t.Strategy, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	if o.Time.IsZero() {
		o.Time = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO orders
		(ref, order_id, symbol, trading_symbol, side, quantity, product, order_type, status, detail, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Ref, o.OrderID, o.Symbol, o.TradingSymbol, o.Side, o.Quantity,
		o.Product, o.OrderType, o.Status, o.Detail, o.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record order %s: %w", o.Ref, err)
	}
	return nil
}

func (j *SQLite) RecordAlert(a AlertRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO alerts (time, category, severity, message) VALUES (?, ?, ?, ?)`,
		a.Time.UTC(), a.Category, a.Severity, a.Message,
	)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

// Append stores a decision feature record. "symbol" and "time" keys are
// lifted into columns when present.
func (j *SQLite) Append(record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	symbol, _ := record["symbol"].(string)
	ts := time.Now()
	if t, ok := record["time"].(time.Time); ok {
		ts = t
	}

	if _, err := j.db.Exec(`INSERT INTO features (time, symbol, data) VALUES (?, ?, ?)`,
		ts.UTC(), symbol, string(data)); err != nil {
		slog.Debug("feature append failed", slog.String("err", err.Error()))
		return fmt.Errorf("append features: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
