package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"accounting-reports/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var composeOpts = core.ComposeOptions{AsOf: date("2026-06-30"), Calendar: core.CalendarYear}

func runReport(t *testing.T, snap *core.Snapshot, spec core.ReportSpecification) *core.CustomReportResult {
	t.Helper()
	result, err := core.RunCustomReport(context.Background(), snap, spec, composeOpts)
	require.NoError(t, err)
	require.Equal(t, len(result.Rows), result.RowCount)
	return result
}

func column(result *core.CustomReportResult, fieldID string) []string {
	out := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		v, _ := row.Get(fieldID)
		out = append(out, v.String())
	}
	return out
}

func intPtr(n int) *int { return &n }

func TestCompile_OperatorLegalityForEveryType(t *testing.T) {
	fieldOf := map[core.FieldType]string{
		core.FieldText:     "number",
		core.FieldNumber:   "days_overdue",
		core.FieldDate:     "due_date",
		core.FieldCurrency: "total",
		core.FieldBoolean:  "is_overdue",
	}
	operandOf := map[core.FieldType]core.Operand{
		core.FieldText:     "SI",
		core.FieldNumber:   "5",
		core.FieldDate:     "2026-01-01",
		core.FieldCurrency: "10",
		core.FieldBoolean:  "true",
	}
	rangeOf := map[core.FieldType][]core.Operand{
		core.FieldText:     {"A", "Z"},
		core.FieldNumber:   {"1", "9"},
		core.FieldDate:     {"2026-01-01", "2026-03-31"},
		core.FieldCurrency: {"10", "20"},
		core.FieldBoolean:  {"false", "true"},
	}
	legal := map[core.FieldType][]core.Operator{
		core.FieldText:     {core.OpEquals, core.OpNotEquals, core.OpContains},
		core.FieldNumber:   {core.OpEquals, core.OpNotEquals, core.OpGreaterThan, core.OpLessThan, core.OpBetween},
		core.FieldDate:     {core.OpEquals, core.OpNotEquals, core.OpGreaterThan, core.OpLessThan, core.OpBetween, core.OpInRange},
		core.FieldCurrency: {core.OpEquals, core.OpNotEquals, core.OpGreaterThan, core.OpLessThan, core.OpBetween},
		core.FieldBoolean:  {core.OpEquals, core.OpNotEquals},
	}

	illegal := 0
	for _, ft := range core.FieldTypes {
		for _, op := range core.Operators {
			allowed := slices.Contains(legal[ft], op)
			if !allowed {
				illegal++
			}
			t.Run(string(ft)+"/"+string(op), func(t *testing.T) {
				clause := core.FilterClause{FieldID: fieldOf[ft], Operator: op}
				switch op {
				case core.OpBetween:
					clause.Values = rangeOf[ft]
				case core.OpInRange:
					clause.Value = "this_month"
				default:
					clause.Value = operandOf[ft]
				}

				_, err := core.Compile(core.ReportSpecification{
					DataSource: "invoices",
					Filters:    []core.FilterClause{clause},
				}, composeOpts)

				assert.Equal(t, allowed, core.IsLegal(op, ft))
				if allowed {
					assert.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrInvalidFilter)
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, fieldOf[ft], ve.Field)
			})
		}
	}
	assert.Equal(t, 18, illegal)
}

func TestCompile_RequiresAsOf(t *testing.T) {
	thisMonth := []core.FilterClause{{FieldID: "invoice_date", Operator: core.OpInRange, Value: "this_month"}}

	_, err := core.Compile(core.ReportSpecification{DataSource: "invoices", Filters: thisMonth}, core.ComposeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "as_of", ve.Field)

	_, err = core.RunCustomReport(context.Background(), loadFixture(t), core.ReportSpecification{DataSource: "assets"}, core.ComposeOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	// The specification's own date is enough.
	result, err := core.RunCustomReport(context.Background(), loadFixture(t), core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number"},
		Filters:        thisMonth,
		Sorts:          []core.SortClause{{FieldID: "number"}},
		AsOf:           date("2026-06-30"),
	}, core.ComposeOptions{Calendar: core.CalendarYear})
	require.NoError(t, err)
	assert.Equal(t, []string{"SI-1003", "SI-1005"}, column(result, "number"))
}

func TestCompile_RejectsBadSpecifications(t *testing.T) {
	tests := []struct {
		name    string
		spec    core.ReportSpecification
		wantErr error
		field   string
	}{
		{
			name:    "unknown source",
			spec:    core.ReportSpecification{DataSource: "widgets"},
			wantErr: core.ErrUnknownDataSource,
			field:   "data_source",
		},
		{
			name:    "unknown selected field",
			spec:    core.ReportSpecification{DataSource: "invoices", SelectedFields: []string{"number", "colour"}},
			wantErr: core.ErrUnknownField,
			field:   "selected_fields",
		},
		{
			name: "unknown filter field",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "colour", Operator: core.OpEquals, Value: "red"},
			}},
			wantErr: core.ErrUnknownField,
			field:   "filters[0].field_id",
		},
		{
			name:    "unknown sort field",
			spec:    core.ReportSpecification{DataSource: "invoices", Sorts: []core.SortClause{{FieldID: "colour"}}},
			wantErr: core.ErrUnknownField,
			field:   "sorts[0].field_id",
		},
		{
			name:    "bad sort direction",
			spec:    core.ReportSpecification{DataSource: "invoices", Sorts: []core.SortClause{{FieldID: "number", Direction: "sideways"}}},
			wantErr: core.ErrInvalidInput,
			field:   "sorts[0].direction",
		},
		{
			name:    "unknown group field",
			spec:    core.ReportSpecification{DataSource: "invoices", GroupBy: "colour"},
			wantErr: core.ErrUnknownField,
			field:   "group_by",
		},
		{
			name: "contains on currency",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "balance_due", Operator: core.OpContains, Value: "10"},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "balance_due",
		},
		{
			name: "greater_than on text",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "number", Operator: core.OpGreaterThan, Value: "SI-1"},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "number",
		},
		{
			name: "in_range on number",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "days_overdue", Operator: core.OpInRange, Value: "this_month"},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "days_overdue",
		},
		{
			name: "malformed number operand",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "balance_due", Operator: core.OpGreaterThan, Value: "lots"},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "balance_due",
		},
		{
			name: "malformed date operand",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "due_date", Operator: core.OpLessThan, Value: "yesterday-ish"},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "due_date",
		},
		{
			name: "between with one bound",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "total", Operator: core.OpBetween, Values: []core.Operand{"10"}},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "total",
		},
		{
			name: "between bounds reversed",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "total", Operator: core.OpBetween, Values: []core.Operand{"1000", "10"}},
			}},
			wantErr: core.ErrInvalidFilter,
			field:   "total",
		},
		{
			name: "unknown named period",
			spec: core.ReportSpecification{DataSource: "invoices", Filters: []core.FilterClause{
				{FieldID: "invoice_date", Operator: core.OpInRange, Value: "next_decade"},
			}},
			wantErr: core.ErrInvalidDateRange,
		},
		{
			name:    "inverted date range",
			spec:    core.ReportSpecification{DataSource: "invoices", DateRange: &core.DateRange{Start: date("2026-02-01"), End: date("2026-01-01")}},
			wantErr: core.ErrInvalidDateRange,
		},
		{
			name:    "negative limit",
			spec:    core.ReportSpecification{DataSource: "invoices", Limit: intPtr(-1)},
			wantErr: core.ErrInvalidInput,
			field:   "limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.Compile(tt.spec, composeOpts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, core.IsCallerError(err))
			if tt.field != "" {
				var ve *core.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.field, ve.Field)
			}
		})
	}
}

func TestCompile_UnknownFieldListsAlternatives(t *testing.T) {
	_, err := core.Compile(core.ReportSpecification{DataSource: "payments", SelectedFields: []string{"amt"}}, composeOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
	assert.Contains(t, err.Error(), "payment_date")
}

func TestRunCustomReport_FilterSortSelect(t *testing.T) {
	snap := loadFixture(t)

	result := runReport(t, snap, core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number", "balance_due"},
		Filters:        []core.FilterClause{{FieldID: "balance_due", Operator: core.OpGreaterThan, Value: "0"}},
		Sorts:          []core.SortClause{{FieldID: "balance_due", Direction: core.SortDesc}},
	})

	assert.Equal(t, "invoices", result.DataSource)
	assert.Equal(t, "2026-06-30", result.AsOfDate.String())
	require.Len(t, result.Columns, 2)
	assert.Equal(t, "number", result.Columns[0].ID)
	assert.Equal(t, core.FieldCurrency, result.Columns[1].Type)

	assert.Equal(t, []string{"SI-1001", "SI-1003", "SI-1002", "SI-1005"}, column(result, "number"))
	assert.Equal(t, []string{"1000.00", "750.00", "300.00", "100.00"}, column(result, "balance_due"))

	b, err := json.Marshal(result.Rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":"SI-1001","balance_due":{"amount":"1000.00","currency":"USD"}}`, string(b))
	assert.Less(t, strings.Index(string(b), `"number"`), strings.Index(string(b), `"balance_due"`))
}

func TestRunCustomReport_EmptySelectionReturnsAllFields(t *testing.T) {
	snap := loadFixture(t)
	fields, err := core.FieldsFor("vendors")
	require.NoError(t, err)

	result := runReport(t, snap, core.ReportSpecification{DataSource: "vendors"})
	assert.Equal(t, fields, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Len(t, result.Rows[0], len(fields))
}

func TestRunCustomReport_Operators(t *testing.T) {
	snap := loadFixture(t)
	tests := []struct {
		name   string
		filter core.FilterClause
		want   []string
	}{
		{"text equals ignores case", core.FilterClause{FieldID: "customer_name", Operator: core.OpEquals, Value: "alpha corp"}, []string{"SI-1001", "SI-1002"}},
		{"text contains", core.FilterClause{FieldID: "customer_name", Operator: core.OpContains, Value: "BETA"}, []string{"SI-1003", "SI-1004", "SI-1005"}},
		{"text not_equals", core.FilterClause{FieldID: "status", Operator: core.OpNotEquals, Value: "open"}, []string{"SI-1002", "SI-1004", "SI-1005"}},
		{"number greater_than", core.FilterClause{FieldID: "days_overdue", Operator: core.OpGreaterThan, Value: "30"}, []string{"SI-1001"}},
		{"boolean equals", core.FilterClause{FieldID: "is_overdue", Operator: core.OpEquals, Value: "true"}, []string{"SI-1001", "SI-1002"}},
		{"currency between is inclusive", core.FilterClause{FieldID: "total", Operator: core.OpBetween, Values: []core.Operand{"500", "1000"}}, []string{"SI-1001", "SI-1002", "SI-1003"}},
		{"currency less_than", core.FilterClause{FieldID: "total", Operator: core.OpLessThan, Value: "500"}, []string{"SI-1004", "SI-1005"}},
		{"date less_than", core.FilterClause{FieldID: "due_date", Operator: core.OpLessThan, Value: "2026-06-01"}, []string{"SI-1001", "SI-1004"}},
		{"named period", core.FilterClause{FieldID: "invoice_date", Operator: core.OpInRange, Value: "this_month"}, []string{"SI-1003", "SI-1005"}},
		{"explicit period", core.FilterClause{FieldID: "invoice_date", Operator: core.OpInRange, Values: []core.Operand{"2026-04-01", "2026-05-31"}}, []string{"SI-1001", "SI-1002"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runReport(t, snap, core.ReportSpecification{
				DataSource:     "invoices",
				SelectedFields: []string{"number"},
				Filters:        []core.FilterClause{tt.filter},
				Sorts:          []core.SortClause{{FieldID: "number"}},
			})
			assert.Equal(t, tt.want, column(result, "number"))
		})
	}
}

func TestRunCustomReport_NullsOnlyMatchNotEquals(t *testing.T) {
	snap := loadFixture(t)
	// C2 has no email.
	tests := []struct {
		filter core.FilterClause
		want   []string
	}{
		{core.FilterClause{FieldID: "email", Operator: core.OpNotEquals, Value: "x@example.com"}, []string{"C1", "C2"}},
		{core.FilterClause{FieldID: "email", Operator: core.OpEquals, Value: "AP@alpha.example"}, []string{"C1"}},
		{core.FilterClause{FieldID: "email", Operator: core.OpContains, Value: "example"}, []string{"C1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter.Operator), func(t *testing.T) {
			result := runReport(t, snap, core.ReportSpecification{
				DataSource: "customers",
				Filters:    []core.FilterClause{tt.filter},
			})
			assert.Equal(t, tt.want, column(result, "id"))
		})
	}
}

func TestRunCustomReport_OperandsFromJSON(t *testing.T) {
	snap := loadFixture(t)
	var spec core.ReportSpecification
	require.NoError(t, json.Unmarshal([]byte(`{
		"data_source": "invoices",
		"selected_fields": ["number"],
		"filters": [
			{"field_id": "days_overdue", "operator": "greater_than", "value": 10},
			{"field_id": "is_overdue", "operator": "equals", "value": true}
		],
		"sorts": [{"field_id": "number", "direction": "asc"}]
	}`), &spec))

	result := runReport(t, snap, spec)
	assert.Equal(t, []string{"SI-1001", "SI-1002"}, column(result, "number"))
}

func TestRunCustomReport_DuplicateSortReplacesDirection(t *testing.T) {
	snap := loadFixture(t)
	result := runReport(t, snap, core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number"},
		Sorts: []core.SortClause{
			{FieldID: "total", Direction: core.SortAsc},
			{FieldID: "number", Direction: core.SortAsc},
			{FieldID: "total", Direction: core.SortDesc},
		},
	})
	assert.Equal(t, []string{"SI-1001", "SI-1003", "SI-1002", "SI-1004", "SI-1005"}, column(result, "number"))
}

func TestRunCustomReport_Limit(t *testing.T) {
	snap := loadFixture(t)
	spec := core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number"},
		Sorts:          []core.SortClause{{FieldID: "number", Direction: core.SortDesc}},
		Limit:          intPtr(2),
	}
	result := runReport(t, snap, spec)
	assert.Equal(t, []string{"SI-1005", "SI-1004"}, column(result, "number"))

	spec.Limit = intPtr(0)
	result = runReport(t, snap, spec)
	assert.Empty(t, result.Rows)
	assert.Zero(t, result.RowCount)
}

func TestRunCustomReport_DateRange(t *testing.T) {
	snap := loadFixture(t)
	q1 := &core.DateRange{Start: date("2026-01-01"), End: date("2026-03-31")}

	invoices := runReport(t, snap, core.ReportSpecification{DataSource: "invoices", SelectedFields: []string{"number"}, DateRange: q1})
	assert.Equal(t, []string{"SI-1004"}, column(invoices, "number"))

	// Aggregate sources scope the documents they roll up.
	customers := runReport(t, snap, core.ReportSpecification{
		DataSource:     "customers",
		SelectedFields: []string{"id", "invoice_count", "total_sales", "outstanding_balance"},
		DateRange:      q1,
	})
	assert.Equal(t, []string{"C1", "C2"}, column(customers, "id"))
	assert.Equal(t, []string{"0", "1"}, column(customers, "invoice_count"))
	assert.Equal(t, []string{"0.00", "400.00"}, column(customers, "total_sales"))
	assert.Equal(t, []string{"0.00", "0.00"}, column(customers, "outstanding_balance"))
}

func TestRunCustomReport_GroupBy(t *testing.T) {
	snap := loadFixture(t)
	spec := core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"customer_id", "total", "balance_due"},
		GroupBy:        "customer_id",
	}
	result := runReport(t, snap, spec)
	assert.Equal(t, []string{"C1", "C2"}, column(result, "customer_id"))
	assert.Equal(t, []string{"1500.00", "1250.00"}, column(result, "total"))
	assert.Equal(t, []string{"1300.00", "850.00"}, column(result, "balance_due"))

	snap.Invoices = append(snap.Invoices, core.Document{
		ID: "INV-9", Number: "SI-1009", PartyID: "C1", Date: date("2026-06-01"), DueDate: date("2026-07-01"),
		Amount: core.NewMoney(decimal.NewFromInt(10), "EUR"), Status: core.DocumentStatusOpen,
	})
	_, err := core.RunCustomReport(context.Background(), snap, spec, composeOpts)
	assert.ErrorIs(t, err, core.ErrCurrencyMismatch)
}

func TestRunCustomReport_ComputedSources(t *testing.T) {
	snap := loadFixture(t)

	assets := runReport(t, snap, core.ReportSpecification{
		DataSource:     "assets",
		SelectedFields: []string{"id", "book_value"},
		AsOf:           date("2026-01-01"),
	})
	assert.Equal(t, "2026-01-01", assets.AsOfDate.String())
	assert.Equal(t, []string{"8000.00", "1000.00"}, column(assets, "book_value"))

	inventory := runReport(t, snap, core.ReportSpecification{
		DataSource:     "inventory",
		SelectedFields: []string{"item_id", "valuation_method", "fifo_value", "lifo_value"},
		Filters:        []core.FilterClause{{FieldID: "quantity_on_hand", Operator: core.OpGreaterThan, Value: "0"}},
	})
	require.Len(t, inventory.Rows, 1)
	assert.Equal(t, []string{"fifo"}, column(inventory, "valuation_method"))
	assert.Equal(t, []string{"1240.00"}, column(inventory, "fifo_value"))
	assert.Equal(t, []string{"1300.00"}, column(inventory, "lifo_value"))
}

func TestCompiledReport_ReusableAndReadOnly(t *testing.T) {
	snap := loadFixture(t)
	compiled, err := core.Compile(core.ReportSpecification{
		DataSource: "invoices",
		Sorts:      []core.SortClause{{FieldID: "balance_due", Direction: core.SortDesc}},
		GroupBy:    "status",
	}, composeOpts)
	require.NoError(t, err)
	assert.Equal(t, "invoices", compiled.Source().ID)

	first, err := compiled.Execute(context.Background(), snap)
	require.NoError(t, err)
	second, err := compiled.Execute(context.Background(), snap)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	require.Len(t, snap.Invoices, 5)
	assert.Equal(t, "1000.00 USD", snap.Invoices[0].Amount.String())
	assert.Equal(t, core.DocumentStatusOpen, snap.Invoices[0].Status)
}

func TestRunCustomReport_Cancelled(t *testing.T) {
	snap := loadFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := core.RunCustomReport(ctx, snap, core.ReportSpecification{DataSource: "invoices"}, composeOpts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}
