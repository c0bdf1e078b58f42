package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var tradeHeader = []string{
	"trade_id", "symbol", "trading_symbol", "side", "quantity", "entry_price", "exit_price",
	"open_time", "close_time", "realized_pnl", "strategy", "reason",
}

// CSVJournal appends closed trades to a CSV file. The header is written
// only when the file is new.
type CSVJournal struct {
	mu     sync.Mutex
	trades *csv.Writer
	tf     *os.File
}

func NewCSV(tradesPath string) (*CSVJournal, error) {
	tf, err := os.OpenFile(tradesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	info, err := tf.Stat()
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	if info.Size() == 0 {
		if err := tw.Write(tradeHeader); err != nil {
			tf.Close()
			return nil, err
		}
		tw.Flush()
		if err := tw.Error(); err != nil {
			tf.Close()
			return nil, err
		}
	}

	return &CSVJournal{trades: tw, tf: tf}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.trades.Write([]string{
		t.TradeID,
		t.Symbol,
		t.TradingSymbol,
		t.Side,
		strconv.Itoa(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPnL),
		t.Strategy,
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	return j.tf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
