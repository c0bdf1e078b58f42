package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

const tradeColumns = `trade_id, symbol, trading_symbol, side, quantity, entry_price, exit_price,
	open_time, close_time, realized_pnl, strategy, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Symbol,
		&rec.TradingSymbol,
		&rec.Side,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPnL,
		&rec.Strategy,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrdersBetween returns order attempts within [start, end).
func (j *SQLite) ListOrdersBetween(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT ref, order_id, symbol, trading_symbol, side, quantity, product, order_type, status, detail, time
		FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.Ref, &o.OrderID, &o.Symbol, &o.TradingSymbol, &o.Side, &o.Quantity,
			&o.Product, &o.OrderType, &o.Status, &o.Detail, &o.Time); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListAlertsBetween returns alerts within [start, end), oldest first.
func (j *SQLite) ListAlertsBetween(start, end time.Time) ([]AlertRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, category, severity, message
		FROM alerts
		WHERE time >= ? AND time < ?
		ORDER BY id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.Time, &a.Category, &a.Severity, &a.Message); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentFeatures returns the newest limit feature records for symbol,
// newest first. An empty symbol matches every symbol.
func (j *SQLite) RecentFeatures(symbol string, limit int) ([]FeatureRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT time, symbol, data
		FROM features
		WHERE (? = '' OR symbol = ?)
		ORDER BY id DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeatureRecord
	for rows.Next() {
		var (
			f   FeatureRecord
			raw string
		)
		if err := rows.Scan(&f.Time, &f.Symbol, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &f.Data); err != nil {
			return nil, fmt.Errorf("decode feature record: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DaySummary aggregates closed trades.
type DaySummary struct {
	Date         time.Time
	Trades       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64
	NetPnL       float64
	WinRate      float64
	ProfitFactor float64
	Records      []TradeRecord
}

func Summarize(date time.Time, trades []TradeRecord) DaySummary {
	s := DaySummary{Date: date, Trades: len(trades), Records: trades}
	for _, t := range trades {
		s.NetPnL += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			s.Wins++
			s.GrossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			s.Losses++
			s.GrossLoss += -t.RealizedPnL
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}

// Day summarizes trades closed on the calendar day of date in loc.
func (j *SQLite) Day(date time.Time, loc *time.Location) (DaySummary, error) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	trades, err := j.ListTradesClosedBetween(start, start.AddDate(0, 0, 1))
	if err != nil {
		return DaySummary{}, fmt.Errorf("day summary: %w", err)
	}
	return Summarize(start, trades), nil
}
