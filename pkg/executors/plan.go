package executors

import (
	"context"
	"fmt"
	"io"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/splitsync/pkg/csv"
	"github.com/yurifrl/splitsync/pkg/store"
)

// Plan runs the whole pipeline without writing and without a heartbeat.
func (e *Executor) Plan(ctx context.Context) (*Report, error) {
	dry := *e
	dry.sink = store.ReadOnly(e.sink, e.logger)
	dry.opts.SkipHeartbeat = true
	return dry.Run(ctx)
}

var (
	syncedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	filteredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)

// RenderPlan writes a human readable preview of report.
func RenderPlan(w io.Writer, report *Report) {
	for _, m := range report.Entries {
		date, amount, tags := "----------", "", ""
		if m.Record != nil {
			date = m.Record.Date
			amount = formatAmount(m.Record.Amount, m.Record.Currency)
			tags = fmt.Sprint(m.Record.Tags)
		}
		line := fmt.Sprintf("%s | %-30s | %10d | %12s | %s", date, m.Description, m.SourceID, amount, tags)

		switch m.Status {
		case Exists:
			fmt.Fprintln(w, syncedStyle.Render("= "+line))
		case Inserted, WouldInsert:
			fmt.Fprintln(w, addedStyle.Render("+ "+line))
		case Filtered:
			fmt.Fprintln(w, filteredStyle.Render("- "+line+" ("+string(m.Reason)+")"))
		case Failed:
			fmt.Fprintln(w, failedStyle.Render("! "+line+" ("+m.Error+")"))
		}
	}

	c := report.Counts
	toAdd := c.WouldInsert + c.Inserted
	if toAdd == 0 {
		fmt.Fprintf(w, "\nPlan: nothing to add, %d already in sync, %d filtered, %d failed\n", c.Exists, c.Filtered, c.Failed)
		return
	}
	fmt.Fprintf(w, "\nPlan: %d expense(s) will be added, %d already in sync, %d filtered, %d failed\n", toAdd, c.Exists, c.Filtered, c.Failed)
}

// WriteCSV exports the entries of report. With onlyNew set, only expenses that
// were or would be inserted are written.
func WriteCSV(w io.Writer, report *Report, onlyNew bool) error {
	var keep csv.FilterFunc[Entry]
	if onlyNew {
		keep = func(e Entry) bool { return e.Status == Inserted || e.Status == WouldInsert }
	}
	data, err := csv.Create(report.Entries, keep)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func formatAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	cur := money.New(0, currency).Currency()
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
