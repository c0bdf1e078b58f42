package risk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRiskRejected is returned when the governor refuses an entry.
	ErrRiskRejected = errors.New("risk rejected")
	// ErrMarginInsufficient means available margin does not cover the order.
	ErrMarginInsufficient = errors.New("insufficient margin")
)

// Violation codes.
const (
	CodeTradeCap       = "TRADE_CAP"
	CodeExposureCap    = "EXPOSURE_CAP"
	CodeDailyLoss      = "DAILY_LOSS_LIMIT"
	CodePositionValue  = "POSITION_VALUE"
	CodeInvalidRequest = "INVALID_REQUEST"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages.
func (d Decision) Reason() string {
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		msgs = append(msgs, v.Code+": "+v.Msg)
	}
	return strings.Join(msgs, "; ")
}

// Err is nil for allowed decisions and wraps ErrRiskRejected otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRiskRejected, d.Reason())
}

// Has reports whether the decision carries a violation with code.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}
