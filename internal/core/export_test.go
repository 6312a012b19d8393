package core_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"accounting-reports/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReportCSV_EscapesTextOnly(t *testing.T) {
	result := &core.CustomReportResult{
		Columns: []core.Field{
			{ID: "name", DisplayName: "Name", Type: core.FieldText},
			{ID: "variance", DisplayName: "Variance", Type: core.FieldCurrency},
			{ID: "email", DisplayName: "Email", Type: core.FieldText},
		},
		Rows: []core.ReportRow{
			{
				{FieldID: "name", Value: core.TextValue("=HYPERLINK(\"x\")")},
				{FieldID: "variance", Value: core.MoneyValue(core.NewMoney(decimal.RequireFromString("-20"), "USD"))},
				{FieldID: "email", Value: core.NullValue(core.FieldText)},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, core.WriteReportCSV(&buf, result))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Name", "Variance", "Email"}, records[0])
	assert.Equal(t, []string{"'=HYPERLINK(\"x\")", "-20.00", ""}, records[1])
}
