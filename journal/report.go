package journal

import (
	"bytes"
	"fmt"
	"io"
	"text/template"
	"time"
)

var reportFuncs = template.FuncMap{
	"ist": func(t time.Time, loc *time.Location) string {
		return t.In(loc).Format("15:04")
	},
}

const DayReportTemplate = `* DAY {{.Summary.Date.Format "2006-01-02 Mon"}}
:PROPERTIES:
:TRADES:      {{.Summary.Trades}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:WIN_RATE:    {{printf "%.2f" .Summary.WinRate}}
:NET_PNL:     {{printf "%.2f" .Summary.NetPnL}}
:PROFIT_FAC:  {{if ne .Summary.ProfitFactor 0.0}}{{printf "%.2f" .Summary.ProfitFactor}}{{else}}-{{end}}
:END:
{{if .Summary.Records}}
| id | symbol | side | qty | entry | exit | open | close | pnl | reason |
|----+--------+------+-----+-------+------+------+-------+-----+--------|
{{- range .Summary.Records}}
| {{.TradeID}} | {{.TradingSymbol}} | {{.Side}} | {{.Quantity}} | {{printf "%.2f" .EntryPrice}} | {{printf "%.2f" .ExitPrice}} | {{ist .OpenTime $.Loc}} | {{ist .CloseTime $.Loc}} | {{printf "%.2f" .RealizedPnL}} | {{.Reason}} |
{{- end}}
{{end}}`

var dayReport = template.Must(template.New("day").Funcs(reportFuncs).Parse(DayReportTemplate))

// WriteDayReport renders s as an org-mode section.
func WriteDayReport(w io.Writer, s DaySummary, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	if err := dayReport.Execute(&buf, struct {
		Summary DaySummary
		Loc     *time.Location
	}{s, loc}); err != nil {
		return fmt.Errorf("render day report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
