package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// cancelCheckInterval is how many rows are filtered between context checks.
const cancelCheckInterval = 512

// ── Specification ─────────────────────────────────────────────────────────────

// Operand is a filter operand as supplied by the caller. It is parsed against the
// field's type when the specification is compiled. JSON numbers and booleans are
// accepted as well as strings.
type Operand string

func (o *Operand) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = Operand(s)
		return nil
	}
	if string(b) == "null" {
		*o = ""
		return nil
	}
	*o = Operand(b)
	return nil
}

// FilterClause restricts rows by one field. Value carries the single operand;
// Values carries [low, high] for between and for a two-date in_range. in_range
// may instead name a relative period in Value (see NamedRanges).
type FilterClause struct {
	FieldID  string    `json:"field_id"`
	Operator Operator  `json:"operator"`
	Value    Operand   `json:"value,omitempty"`
	Values   []Operand `json:"values,omitempty"`
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortClause struct {
	FieldID   string        `json:"field_id"`
	Direction SortDirection `json:"direction"`
}

// ReportSpecification is an immutable description of a custom report. An empty
// SelectedFields list selects every field of the source in catalog order.
type ReportSpecification struct {
	DataSource     string         `json:"data_source"`
	SelectedFields []string       `json:"selected_fields"`
	Filters        []FilterClause `json:"filters,omitempty"`
	Sorts          []SortClause   `json:"sorts,omitempty"`
	DateRange      *DateRange     `json:"date_range,omitempty"`
	GroupBy        string         `json:"group_by,omitempty"`
	Limit          *int           `json:"limit,omitempty"`
	AsOf           Date           `json:"as_of"`
}

// ComposeOptions are the deployment defaults a specification runs under.
type ComposeOptions struct {
	// AsOf is used when the specification carries none. One of the two is required.
	AsOf                   Date
	Calendar               FiscalCalendar
	DecliningFactor        decimal.Decimal
	DefaultValuationMethod ValuationMethod
}

// ── Result ────────────────────────────────────────────────────────────────────

// Cell is one field of an output row.
type Cell struct {
	FieldID string
	Value   Value
}

// ReportRow is an ordered field id to value mapping. It marshals as a JSON object
// whose keys keep the selected field order.
type ReportRow []Cell

// Get returns the value of a field in the row.
func (r ReportRow) Get(fieldID string) (Value, bool) {
	for _, c := range r {
		if c.FieldID == fieldID {
			return c.Value, true
		}
	}
	return Value{}, false
}

func (r ReportRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.FieldID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type CustomReportResult struct {
	DataSource string      `json:"data_source"`
	AsOfDate   Date        `json:"as_of_date"`
	Columns    []Field     `json:"columns"`
	Rows       []ReportRow `json:"rows"`
	RowCount   int         `json:"row_count"`
}

// ── Compilation ───────────────────────────────────────────────────────────────

type compiledFilter struct {
	field    Field
	col      int
	op       Operator
	operands []Value
}

type compiledSort struct {
	col  int
	desc bool
}

// CompiledReport is a validated specification with every operand parsed. It can
// be executed any number of times against different snapshots.
type CompiledReport struct {
	source    *DataSource
	selected  []int
	filters   []compiledFilter
	sorts     []compiledSort
	groupCol  int
	limit     int
	asOf      Date
	dateRange *DateRange
	opts      ComposeOptions
}

// Source returns the data source the report reads.
func (c *CompiledReport) Source() *DataSource { return c.source }

// Compile validates spec and resolves it against the field catalog. Every caller
// error is detected here, before any data is read. The as-of date comes from spec,
// else opts.AsOf; with neither set compilation fails, since named periods and
// computed fields depend on it.
func Compile(spec ReportSpecification, opts ComposeOptions) (*CompiledReport, error) {
	source, err := LookupSource(spec.DataSource)
	if err != nil {
		return nil, err
	}
	c := &CompiledReport{source: source, groupCol: -1, limit: -1, opts: opts, asOf: spec.AsOf}
	if c.asOf.IsZero() {
		c.asOf = opts.AsOf
	}
	if c.asOf.IsZero() {
		return nil, newValidationError(ErrInvalidInput, "as_of", "an as-of date is required")
	}

	if spec.DateRange != nil {
		if err := spec.DateRange.Validate(); err != nil {
			return nil, err
		}
		r := *spec.DateRange
		c.dateRange = &r
	}

	lookup := func(param, id string) (Field, int, error) {
		f, idx, ok := source.Field(strings.TrimSpace(id))
		if !ok {
			return Field{}, -1, newValidationError(ErrUnknownField, param, "%q is not a field of %s (fields: %s)",
				id, source.ID, strings.Join(sortedFieldIDs(source), ", "))
		}
		return f, idx, nil
	}

	if len(spec.SelectedFields) == 0 {
		for i := range source.Fields {
			c.selected = append(c.selected, i)
		}
	}
	seen := make(map[int]bool)
	for _, id := range spec.SelectedFields {
		_, idx, err := lookup("selected_fields", id)
		if err != nil {
			return nil, err
		}
		if !seen[idx] {
			seen[idx] = true
			c.selected = append(c.selected, idx)
		}
	}

	for i, fc := range spec.Filters {
		f, idx, err := lookup(fmt.Sprintf("filters[%d].field_id", i), fc.FieldID)
		if err != nil {
			return nil, err
		}
		cf, err := compileFilter(f, idx, fc, c.asOf, opts.Calendar)
		if err != nil {
			return nil, err
		}
		c.filters = append(c.filters, cf)
	}

	sortPos := make(map[int]int)
	for i, sc := range spec.Sorts {
		_, idx, err := lookup(fmt.Sprintf("sorts[%d].field_id", i), sc.FieldID)
		if err != nil {
			return nil, err
		}
		var desc bool
		switch SortDirection(strings.ToLower(string(sc.Direction))) {
		case "", SortAsc:
		case SortDesc:
			desc = true
		default:
			return nil, newValidationError(ErrInvalidInput, fmt.Sprintf("sorts[%d].direction", i), "direction must be asc or desc, got %q", sc.Direction)
		}
		if pos, dup := sortPos[idx]; dup {
			c.sorts[pos].desc = desc
			continue
		}
		sortPos[idx] = len(c.sorts)
		c.sorts = append(c.sorts, compiledSort{col: idx, desc: desc})
	}

	if spec.GroupBy != "" {
		_, idx, err := lookup("group_by", spec.GroupBy)
		if err != nil {
			return nil, err
		}
		c.groupCol = idx
	}

	if spec.Limit != nil {
		if *spec.Limit < 0 {
			return nil, newValidationError(ErrInvalidInput, "limit", "limit cannot be negative, got %d", *spec.Limit)
		}
		c.limit = *spec.Limit
	}
	return c, nil
}

func compileFilter(f Field, col int, fc FilterClause, asOf Date, cal FiscalCalendar) (compiledFilter, error) {
	cf := compiledFilter{field: f, col: col, op: fc.Operator}
	invalid := func(format string, args ...any) error {
		return newValidationError(ErrInvalidFilter, f.ID, format, args...)
	}
	if !IsLegal(fc.Operator, f.Type) {
		return cf, invalid("operator %q is not allowed for %s fields (allowed: %s)", fc.Operator, f.Type, joinOperators(OperatorsFor(f.Type)))
	}

	switch fc.Operator {
	case OpBetween:
		if len(fc.Values) != 2 {
			return cf, invalid("between needs exactly two values, got %d", len(fc.Values))
		}
		low, err := parseOperand(f, fc.Values[0])
		if err != nil {
			return cf, err
		}
		high, err := parseOperand(f, fc.Values[1])
		if err != nil {
			return cf, err
		}
		if c, _ := compareValues(low, high); c > 0 {
			return cf, invalid("between lower bound %s is above upper bound %s", low, high)
		}
		cf.operands = []Value{low, high}
	case OpInRange:
		var r DateRange
		switch {
		case len(fc.Values) == 2:
			start, err := ParseDate(string(fc.Values[0]))
			if err != nil {
				return cf, invalid("in_range start %q is not a YYYY-MM-DD date", fc.Values[0])
			}
			end, err := ParseDate(string(fc.Values[1]))
			if err != nil {
				return cf, invalid("in_range end %q is not a YYYY-MM-DD date", fc.Values[1])
			}
			r = DateRange{Start: start, End: end}
			if err := r.Validate(); err != nil {
				return cf, err
			}
		case len(fc.Values) == 0 && fc.Value != "":
			var err error
			if r, err = cal.ResolveNamedRange(string(fc.Value), asOf); err != nil {
				return cf, err
			}
		default:
			return cf, invalid("in_range needs a period name (%s) or two dates", strings.Join(NamedRanges, ", "))
		}
		cf.operands = []Value{DateValue(r.Start), DateValue(r.End)}
	default:
		v, err := parseOperand(f, fc.Value)
		if err != nil {
			return cf, err
		}
		cf.operands = []Value{v}
	}
	return cf, nil
}

// parseOperand converts a raw operand to the field's value type. Currency operands
// are plain amounts and compare against the amount only.
func parseOperand(f Field, raw Operand) (Value, error) {
	s := strings.TrimSpace(string(raw))
	bad := func() (Value, error) {
		return Value{}, newValidationError(ErrInvalidFilter, f.ID, "%q is not a valid %s value", string(raw), f.Type)
	}
	switch f.Type {
	case FieldText:
		return TextValue(string(raw)), nil
	case FieldNumber, FieldCurrency:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return bad()
		}
		return NumberValue(d), nil
	case FieldDate:
		if s == "" {
			return bad()
		}
		d, err := ParseDate(s)
		if err != nil {
			return bad()
		}
		return DateValue(d), nil
	case FieldBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return bad()
		}
		return BoolValue(b), nil
	}
	return bad()
}

func joinOperators(ops []Operator) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, ", ")
}

// ── Execution ─────────────────────────────────────────────────────────────────

// matches evaluates the filter against a row value. Nulls only satisfy not_equals.
func (f compiledFilter) matches(v Value) bool {
	if v.IsNull() {
		return f.op == OpNotEquals
	}
	cmp := func(operand Value) int {
		switch f.field.Type {
		case FieldCurrency:
			return v.money.Amount.Cmp(operand.num)
		case FieldText:
			return strings.Compare(strings.ToLower(v.text), strings.ToLower(operand.text))
		}
		c, _ := compareValues(v, operand)
		return c
	}
	switch f.op {
	case OpEquals:
		return cmp(f.operands[0]) == 0
	case OpNotEquals:
		return cmp(f.operands[0]) != 0
	case OpGreaterThan:
		return cmp(f.operands[0]) > 0
	case OpLessThan:
		return cmp(f.operands[0]) < 0
	case OpContains:
		return strings.Contains(strings.ToLower(v.text), strings.ToLower(f.operands[0].text))
	case OpBetween, OpInRange:
		return cmp(f.operands[0]) >= 0 && cmp(f.operands[1]) <= 0
	}
	return false
}

// Execute runs the compiled report against one snapshot. The snapshot is only
// read. Cancellation is honoured between stages and periodically while filtering;
// a cancelled run returns the context error and no rows.
func (c *CompiledReport) Execute(ctx context.Context, snap *Snapshot) (*CustomReportResult, error) {
	sc := &sourceContext{
		snap:      snap,
		dateRange: c.dateRange,
		asOf:      c.asOf,
		depreciation: DepreciationOptions{
			Calendar:        c.opts.Calendar,
			DecliningFactor: c.opts.DecliningFactor,
		},
		valuation: ValuationOptions{DefaultMethod: c.opts.DefaultValuationMethod},
	}

	rows, err := c.source.materialize(sc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dateCol := -1
	if c.dateRange != nil && c.source.DateField != "" {
		_, dateCol, _ = c.source.Field(c.source.DateField)
	}
	kept := rows[:0:0]
	for i, row := range rows {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if dateCol >= 0 {
			d := row[dateCol]
			if d.IsNull() || !c.dateRange.Contains(d.Date()) {
				continue
			}
		}
		ok := true
		for _, f := range c.filters {
			if !f.matches(row[f.col]) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, row)
		}
	}

	if c.groupCol >= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if kept, err = c.group(kept); err != nil {
			return nil, err
		}
	}

	if len(c.sorts) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sort.SliceStable(kept, func(i, j int) bool {
			for _, s := range c.sorts {
				cmp := sortCompare(kept[i][s.col], kept[j][s.col])
				if cmp == 0 {
					continue
				}
				if s.desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if c.limit >= 0 && len(kept) > c.limit {
		kept = kept[:c.limit]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &CustomReportResult{
		DataSource: c.source.ID,
		AsOfDate:   sc.asOf,
		Columns:    make([]Field, len(c.selected)),
		Rows:       make([]ReportRow, len(kept)),
		RowCount:   len(kept),
	}
	for i, idx := range c.selected {
		result.Columns[i] = c.source.Fields[idx]
	}
	for i, row := range kept {
		out := make(ReportRow, len(c.selected))
		for j, idx := range c.selected {
			out[j] = Cell{FieldID: c.source.Fields[idx].ID, Value: row[idx]}
		}
		result.Rows[i] = out
	}
	return result, nil
}

// group collapses rows sharing a group-by value, in order of first appearance.
// Number and currency fields are summed; other fields keep the first row's value.
func (c *CompiledReport) group(rows [][]Value) ([][]Value, error) {
	keyField := c.source.Fields[c.groupCol]
	keyCurrency := ""
	order := make([]string, 0)
	groups := make(map[string][]Value)
	for _, row := range rows {
		kv := row[c.groupCol]
		if keyField.Type == FieldCurrency && !kv.IsNull() {
			switch {
			case keyCurrency == "":
				keyCurrency = kv.money.Currency
			case kv.money.Currency != keyCurrency:
				return nil, &CurrencyMismatchError{Op: "group by " + keyField.ID, Left: keyCurrency, Right: kv.money.Currency}
			}
		}
		key := kv.groupKey()
		acc, ok := groups[key]
		if !ok {
			acc = make([]Value, len(row))
			copy(acc, row)
			groups[key] = acc
			order = append(order, key)
			continue
		}
		for i, f := range c.source.Fields {
			if i == c.groupCol || row[i].IsNull() {
				continue
			}
			switch f.Type {
			case FieldNumber:
				if acc[i].IsNull() {
					acc[i] = row[i]
				} else {
					acc[i] = NumberValue(acc[i].num.Add(row[i].num))
				}
			case FieldCurrency:
				if acc[i].IsNull() {
					acc[i] = row[i]
					continue
				}
				sum, err := acc[i].money.Add(row[i].money)
				if err != nil {
					var mismatch *CurrencyMismatchError
					if errors.As(err, &mismatch) {
						mismatch.Op = "sum of " + f.ID
					}
					return nil, err
				}
				acc[i] = MoneyValue(sum)
			}
		}
	}
	out := make([][]Value, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out, nil
}

// RunCustomReport compiles spec and executes it against snap.
func RunCustomReport(ctx context.Context, snap *Snapshot, spec ReportSpecification, opts ComposeOptions) (*CustomReportResult, error) {
	compiled, err := Compile(spec, opts)
	if err != nil {
		return nil, err
	}
	return compiled.Execute(ctx, snap)
}
