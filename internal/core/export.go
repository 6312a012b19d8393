package core

import (
	"encoding/csv"
	"io"
)

// CSVSafe prevents CSV formula injection by prefixing cells that begin with a
// formula-triggering character with a single quote.
func CSVSafe(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// WriteReportCSV writes a custom report as CSV: one header row of column display
// names, then one record per row in report order. Only text cells are escaped, so
// negative amounts stay numeric.
func WriteReportCSV(w io.Writer, result *CustomReportResult) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c.DisplayName
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range result.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cell.Value.String()
			if cell.Value.Type() == FieldText {
				record[i] = CSVSafe(record[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatementCSV writes the statement's transactions as CSV.
func WriteStatementCSV(w io.Writer, stmt *CustomerStatement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Reference", "Due Date", "Charge", "Credit", "Balance"}); err != nil {
		return err
	}
	for _, tx := range stmt.Transactions {
		err := cw.Write([]string{
			tx.Date.String(),
			string(tx.Type),
			CSVSafe(tx.Reference),
			tx.DueDate.String(),
			tx.Charge.StringFixed(DisplayScale),
			tx.Credit.StringFixed(DisplayScale),
			tx.RunningBalance.StringFixed(DisplayScale),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
