package repl

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"accounting-reports/internal/app"
	"accounting-reports/internal/core"

	"github.com/shopspring/decimal"
)

const maxCellWidth = 32

func rule(w io.Writer, ch string, n int) {
	fmt.Fprintln(w, strings.Repeat(ch, n))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(core.DisplayScale)
}

func truncate(s string) string {
	if len([]rune(s)) <= maxCellWidth {
		return s
	}
	return string([]rune(s)[:maxCellWidth-1]) + "…"
}

// PrintSources lists the data source catalog.
func PrintSources(w io.Writer, result *app.DataSourceListResult) {
	fmt.Fprintln(w)
	rule(w, "=", 62)
	fmt.Fprintf(w, "  %-58s\n", "DATA SOURCES")
	rule(w, "=", 62)
	fmt.Fprintf(w, "  %-14s %-24s %-14s %6s\n", "ID", "NAME", "PERIOD FIELD", "FIELDS")
	rule(w, "-", 62)
	for _, s := range result.Sources {
		fmt.Fprintf(w, "  %-14s %-24s %-14s %6d\n", s.ID, s.DisplayName, s.DateField, s.FieldCount)
	}
	rule(w, "=", 62)
}

// PrintFields lists the fields of one data source with their legal operators.
func PrintFields(w io.Writer, result *app.FieldListResult) {
	fmt.Fprintln(w)
	rule(w, "=", 80)
	fmt.Fprintf(w, "  FIELDS — %s\n", result.DataSource)
	rule(w, "=", 80)
	fmt.Fprintf(w, "  %-26s %-26s %-9s %s\n", "ID", "NAME", "TYPE", "OPERATORS")
	rule(w, "-", 80)
	for _, f := range result.Fields {
		ops := core.OperatorsFor(f.Type)
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = string(op)
		}
		fmt.Fprintf(w, "  %-26s %-26s %-9s %s\n", f.ID, f.DisplayName, f.Type, strings.Join(names, ","))
	}
	rule(w, "=", 80)
}

// PrintCustomReport renders a custom report as an aligned table.
func PrintCustomReport(w io.Writer, result *core.CustomReportResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s as of %s — %d row(s)\n\n", strings.ToUpper(result.DataSource), result.AsOfDate, result.RowCount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = strings.ToUpper(c.DisplayName)
	}
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = truncate(c.Value.String())
		}
		fmt.Fprintln(tw, "  "+strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func printAgingTable(w io.Writer, title, entityLabel string, asOf core.Date, currency string, summary core.AgingSummary, rows []core.AgingRow) {
	fmt.Fprintln(w)
	rule(w, "=", 112)
	fmt.Fprintf(w, "  %s as of %s (%s)\n", title, asOf, currency)
	rule(w, "=", 112)
	fmt.Fprintf(w, "  %-26s %12s %12s %12s %12s %12s %14s\n", entityLabel, "CURRENT", "1-30", "31-60", "61-90", "OVER 90", "TOTAL")
	rule(w, "-", 112)
	for _, r := range rows {
		flag := ""
		if r.Critical {
			flag = " !"
		}
		fmt.Fprintf(w, "  %-26s %12s %12s %12s %12s %12s %14s%s\n",
			truncate(r.EntityName), money(r.Buckets.Current), money(r.Buckets.Days1To30), money(r.Buckets.Days31To60),
			money(r.Buckets.Days61To90), money(r.Buckets.Over90), money(r.Total), flag)
	}
	rule(w, "-", 112)
	b := summary.Buckets
	fmt.Fprintf(w, "  %-26s %12s %12s %12s %12s %12s %14s\n", "TOTAL",
		money(b.Current), money(b.Days1To30), money(b.Days31To60), money(b.Days61To90), money(b.Over90), money(summary.TotalOutstanding))
	rule(w, "=", 112)
	fmt.Fprintf(w, "  Open items: %d   Critical: %d   Avg payment days: %s\n",
		summary.OpenItemCount, summary.CriticalCount, summary.AveragePaymentDays.StringFixed(1))
}

// PrintAPAging renders the AP aging schedule, one table per currency.
func PrintAPAging(w io.Writer, r *core.APAgingReport) {
	printAgingTable(w, "AP AGING", "VENDOR", r.AsOfDate, r.Currency, r.Summary, r.Vendors)
	for _, o := range r.OtherCurrencies {
		printAgingTable(w, "AP AGING", "VENDOR", o.AsOfDate, o.Currency, o.Summary, o.Vendors)
	}
}

// PrintARAging renders the AR aging schedule, one table per currency.
func PrintARAging(w io.Writer, r *core.ARAgingReport) {
	printAgingTable(w, "AR AGING", "CUSTOMER", r.AsOfDate, r.Currency, r.Summary, r.Customers)
	for _, o := range r.OtherCurrencies {
		printAgingTable(w, "AR AGING", "CUSTOMER", o.AsOfDate, o.Currency, o.Summary, o.Customers)
	}
}

// PrintStatement renders a customer statement with its running balance.
func PrintStatement(w io.Writer, s *core.CustomerStatement) {
	fmt.Fprintln(w)
	rule(w, "=", 86)
	fmt.Fprintf(w, "  STATEMENT — %s (%s)\n", s.Customer.Name, s.Customer.ID)
	fmt.Fprintf(w, "  Period   : %s to %s\n", s.Period.Start, s.Period.End)
	fmt.Fprintf(w, "  Currency : %s\n", s.Currency)
	rule(w, "=", 86)
	fmt.Fprintf(w, "  %-10s %-8s %-16s %-10s %12s %12s %12s\n", "DATE", "TYPE", "REFERENCE", "DUE", "CHARGE", "CREDIT", "BALANCE")
	rule(w, "-", 86)
	fmt.Fprintf(w, "  %-10s %-8s %-16s %-10s %12s %12s %12s\n", "", "", "Opening balance", "", "", "", money(s.Summary.OpeningBalance))
	for _, tx := range s.Transactions {
		fmt.Fprintf(w, "  %-10s %-8s %-16s %-10s %12s %12s %12s\n",
			tx.Date, tx.Type, truncate(tx.Reference), tx.DueDate, money(tx.Charge), money(tx.Credit), money(tx.RunningBalance))
	}
	rule(w, "-", 86)
	fmt.Fprintf(w, "  Invoiced: %s   Paid: %s   Closing balance: %s\n",
		money(s.Summary.TotalInvoiced), money(s.Summary.TotalPaid), money(s.Summary.ClosingBalance))
	rule(w, "=", 86)
}

// PrintDepreciation renders the fixed-asset register with book values.
func PrintDepreciation(w io.Writer, r *core.DepreciationReport) {
	fmt.Fprintln(w)
	rule(w, "=", 100)
	fmt.Fprintf(w, "  DEPRECIATION as of %s (%s)\n", r.AsOfDate, r.Currency)
	rule(w, "=", 100)
	fmt.Fprintf(w, "  %-8s %-22s %-18s %12s %14s %12s %6s\n", "ID", "NAME", "METHOD", "COST", "ACCUMULATED", "BOOK VALUE", "DONE")
	rule(w, "-", 100)
	for _, a := range r.Assets {
		done := ""
		if a.FullyDepreciated {
			done = "yes"
		}
		fmt.Fprintf(w, "  %-8s %-22s %-18s %12s %14s %12s %6s\n",
			a.AssetID, truncate(a.Name), a.Method, money(a.PurchasePrice.Amount),
			money(a.AccumulatedDepreciation.Amount), money(a.CurrentBookValue.Amount), done)
	}
	rule(w, "-", 100)
	fmt.Fprintf(w, "  %-8s %-22s %-18s %12s %14s %12s\n", "TOTAL", "", "",
		money(r.Summary.TotalCost), money(r.Summary.AccumulatedDepreciation), money(r.Summary.BookValue))
	rule(w, "=", 100)
}

// PrintValuation renders the inventory valuation under every method.
func PrintValuation(w io.Writer, r *core.InventoryValuationReport) {
	fmt.Fprintln(w)
	rule(w, "=", 110)
	fmt.Fprintf(w, "  INVENTORY VALUATION as of %s (%s, method %s)\n", r.AsOfDate, r.Currency, r.Method)
	rule(w, "=", 110)
	fmt.Fprintf(w, "  %-10s %-20s %10s %12s %12s %12s %12s %12s\n", "SKU", "NAME", "ON HAND", "FIFO", "LIFO", "AVERAGE", "STANDARD", "VALUE")
	rule(w, "-", 110)
	for _, it := range r.Items {
		fmt.Fprintf(w, "  %-10s %-20s %10s %12s %12s %12s %12s %12s\n",
			it.SKU, truncate(it.Name), it.QuantityOnHand.String(), money(it.FIFO.Amount), money(it.LIFO.Amount),
			money(it.Average.Amount), money(it.Standard.Amount), money(it.Value.Amount))
	}
	rule(w, "-", 110)
	s := r.Summary
	fmt.Fprintf(w, "  %-10s %-20s %10s %12s %12s %12s %12s %12s\n", "TOTAL", "", s.TotalQuantity.String(),
		money(s.TotalFIFO), money(s.TotalLIFO), money(s.TotalAverage), money(s.TotalStandard), money(s.TotalValue))
	rule(w, "=", 110)
	if s.ItemsWithExpiredLots > 0 {
		fmt.Fprintf(w, "  WARNING: %d item(s) hold expired lots.\n", s.ItemsWithExpiredLots)
	}
}

// PrintInterpretation shows the interpreted specification and, when run, its result.
func PrintInterpretation(w io.Writer, r *app.InterpretResult) {
	if r.IsClarification {
		fmt.Fprintf(w, "\n[AI]: %s\n", r.ClarificationMessage)
		return
	}
	spec := r.Specification
	fmt.Fprintf(w, "\nSOURCE:     %s\n", spec.DataSource)
	fmt.Fprintf(w, "FIELDS:     %s\n", strings.Join(spec.SelectedFields, ", "))
	for _, f := range spec.Filters {
		operand := string(f.Value)
		if len(f.Values) > 0 {
			parts := make([]string, len(f.Values))
			for i, v := range f.Values {
				parts[i] = string(v)
			}
			operand = strings.Join(parts, " .. ")
		}
		fmt.Fprintf(w, "FILTER:     %s %s %s\n", f.FieldID, f.Operator, operand)
	}
	for _, s := range spec.Sorts {
		fmt.Fprintf(w, "SORT:       %s %s\n", s.FieldID, s.Direction)
	}
	if spec.DateRange != nil {
		fmt.Fprintf(w, "PERIOD:     %s to %s\n", spec.DateRange.Start, spec.DateRange.End)
	}
	if spec.GroupBy != "" {
		fmt.Fprintf(w, "GROUP BY:   %s\n", spec.GroupBy)
	}
	if r.Reasoning != "" {
		fmt.Fprintf(w, "REASONING:  %s\n", r.Reasoning)
	}
	if r.ValidationError != "" {
		fmt.Fprintf(w, "\nThe proposed report is not valid: %s\n", r.ValidationError)
		return
	}
	if r.Result != nil {
		PrintCustomReport(w, r.Result)
	}
}
