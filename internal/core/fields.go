package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldType is the value type of a report field. It decides which filter operators
// are legal and how values compare.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldCurrency FieldType = "currency"
	FieldBoolean  FieldType = "boolean"
)

// FieldTypes lists every field type.
var FieldTypes = []FieldType{FieldText, FieldNumber, FieldDate, FieldCurrency, FieldBoolean}

func (t FieldType) IsValid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldCurrency, FieldBoolean:
		return true
	}
	return false
}

// Operator is a filter comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpBetween     Operator = "between"
	OpInRange     Operator = "in_range"
)

// Operators lists every operator.
var Operators = []Operator{OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpBetween, OpInRange}

// operatorLegality is the authoritative operator-to-type table. A filter whose
// operator is not listed for its field's type never executes.
var operatorLegality = map[FieldType][]Operator{
	FieldText:     {OpEquals, OpNotEquals, OpContains},
	FieldNumber:   {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpBetween},
	FieldDate:     {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpBetween, OpInRange},
	FieldCurrency: {OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpBetween},
	FieldBoolean:  {OpEquals, OpNotEquals},
}

// OperatorsFor returns the operators legal for t, or nil for an unknown type.
func OperatorsFor(t FieldType) []Operator {
	ops := operatorLegality[t]
	if ops == nil {
		return nil
	}
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// IsLegal reports whether op may be applied to a field of type t.
func IsLegal(op Operator, t FieldType) bool {
	for _, o := range operatorLegality[t] {
		if o == op {
			return true
		}
	}
	return false
}

// Field describes one selectable, filterable column of a data source.
type Field struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SourceTable string    `json:"source_table"`
	DisplayName string    `json:"display_name"`
	Type        FieldType `json:"type"`
}

// ── Typed values ──────────────────────────────────────────────────────────────

// Value is one typed cell. The zero Value is a null of no particular type.
type Value struct {
	typ   FieldType
	valid bool
	text  string
	num   decimal.Decimal
	date  Date
	money MonetaryAmount
	flag  bool
}

func TextValue(s string) Value { return Value{typ: FieldText, valid: true, text: s} }
func NumberValue(d decimal.Decimal) Value { return Value{typ: FieldNumber, valid: true, num: d} }
func IntValue(n int) Value { return NumberValue(decimal.NewFromInt(int64(n))) }
func MoneyValue(m MonetaryAmount) Value { return Value{typ: FieldCurrency, valid: true, money: m} }
func BoolValue(b bool) Value { return Value{typ: FieldBoolean, valid: true, flag: b} }
func NullValue(t FieldType) Value { return Value{typ: t} }

// DateValue returns a date value, or a null date for the zero Date.
func DateValue(d Date) Value {
	if d.IsZero() {
		return NullValue(FieldDate)
	}
	return Value{typ: FieldDate, valid: true, date: d}
}

func (v Value) Type() FieldType { return v.typ }
func (v Value) IsNull() bool { return !v.valid }
func (v Value) Text() string { return v.text }
func (v Value) Number() decimal.Decimal { return v.num }
func (v Value) Date() Date { return v.date }
func (v Value) Money() MonetaryAmount { return v.money }
func (v Value) Bool() bool { return v.flag }

// String renders the value for text output (CSV, terminal tables).
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.typ {
	case FieldText:
		return v.text
	case FieldNumber:
		return v.num.String()
	case FieldDate:
		return v.date.String()
	case FieldCurrency:
		return v.money.Amount.StringFixed(DisplayScale)
	case FieldBoolean:
		if v.flag {
			return "true"
		}
		return "false"
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	switch v.typ {
	case FieldNumber:
		return json.Marshal(v.num)
	case FieldDate:
		return json.Marshal(v.date)
	case FieldCurrency:
		return json.Marshal(v.money)
	case FieldBoolean:
		return json.Marshal(v.flag)
	default:
		return json.Marshal(v.text)
	}
}

// compareValues orders two non-null values of the same type. Currency values must
// share a currency.
func compareValues(a, b Value) (int, error) {
	switch a.typ {
	case FieldNumber:
		return a.num.Cmp(b.num), nil
	case FieldCurrency:
		if a.money.Currency != b.money.Currency {
			return 0, &CurrencyMismatchError{Op: "compare", Left: a.money.Currency, Right: b.money.Currency}
		}
		return a.money.Amount.Cmp(b.money.Amount), nil
	case FieldDate:
		switch {
		case a.date.Before(b.date):
			return -1, nil
		case a.date.After(b.date):
			return 1, nil
		}
		return 0, nil
	case FieldBoolean:
		switch {
		case a.flag == b.flag:
			return 0, nil
		case !a.flag:
			return -1, nil
		}
		return 1, nil
	default:
		return strings.Compare(a.text, b.text), nil
	}
}

// sortCompare orders values for sorting: nulls first, then by value. Currency
// amounts of different currencies order by currency code so sorting never fails.
func sortCompare(a, b Value) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return -1
	case !b.valid:
		return 1
	}
	if a.typ == FieldCurrency && a.money.Currency != b.money.Currency {
		return strings.Compare(a.money.Currency, b.money.Currency)
	}
	c, _ := compareValues(a, b)
	return c
}

// groupKey is the exact-equality key of a value within one field.
func (v Value) groupKey() string {
	if !v.valid {
		return "\x00null"
	}
	if v.typ == FieldNumber {
		return v.num.String()
	}
	if v.typ == FieldCurrency {
		return v.money.Amount.String()
	}
	return v.String()
}
