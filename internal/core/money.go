package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DisplayScale is the number of decimal places amounts are reported with.
	DisplayScale int32 = 2
	// InternalScale is the precision kept for intermediate quotients (average costs,
	// rates) so that rounding drift does not accumulate across many rows.
	InternalScale int32 = 6
)

// MonetaryAmount is a decimal value in a single currency. The zero value has no
// currency and is only useful as an accumulator seed via Sum.
type MonetaryAmount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds an amount, normalising the currency code to upper case.
func NewMoney(amount decimal.Decimal, currency string) MonetaryAmount {
	return MonetaryAmount{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency string) MonetaryAmount {
	return NewMoney(decimal.Zero, currency)
}

// ParseMoney parses a decimal string into an amount.
func ParseMoney(amount, currency string) (MonetaryAmount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return MonetaryAmount{}, newValidationError(ErrInvalidInput, "amount", "%q is not a decimal number", amount)
	}
	return NewMoney(d, currency), nil
}

func (m MonetaryAmount) sameCurrency(op string, o MonetaryAmount) error {
	if m.Currency != o.Currency {
		return &CurrencyMismatchError{Op: op, Left: m.Currency, Right: o.Currency}
	}
	return nil
}

// Add returns m + o. Both amounts must share a currency.
func (m MonetaryAmount) Add(o MonetaryAmount) (MonetaryAmount, error) {
	if err := m.sameCurrency("add", o); err != nil {
		return MonetaryAmount{}, err
	}
	return MonetaryAmount{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

// Sub returns m - o. Both amounts must share a currency.
func (m MonetaryAmount) Sub(o MonetaryAmount) (MonetaryAmount, error) {
	if err := m.sameCurrency("subtract", o); err != nil {
		return MonetaryAmount{}, err
	}
	return MonetaryAmount{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Mul scales m by a dimensionless factor (quantity, rate). No rounding is applied.
func (m MonetaryAmount) Mul(factor decimal.Decimal) MonetaryAmount {
	return MonetaryAmount{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Div divides m by a dimensionless divisor, rounding half-up at InternalScale.
func (m MonetaryAmount) Div(divisor decimal.Decimal) (MonetaryAmount, error) {
	if divisor.IsZero() {
		return MonetaryAmount{}, newValidationError(ErrInvalidInput, "divisor", "division by zero")
	}
	return MonetaryAmount{Amount: m.Amount.DivRound(divisor, InternalScale), Currency: m.Currency}, nil
}

// Convert returns m expressed in target using an explicit exchange rate
// (units of target per unit of m's currency), rounded to DisplayScale.
func (m MonetaryAmount) Convert(rate decimal.Decimal, target string) (MonetaryAmount, error) {
	if !rate.IsPositive() {
		return MonetaryAmount{}, newValidationError(ErrInvalidInput, "rate", "exchange rate must be positive, got %s", rate)
	}
	return NewMoney(RoundHalfUp(m.Amount.Mul(rate), DisplayScale), target), nil
}

// Round returns m rounded half-up to DisplayScale.
func (m MonetaryAmount) Round() MonetaryAmount {
	return MonetaryAmount{Amount: RoundHalfUp(m.Amount, DisplayScale), Currency: m.Currency}
}

func (m MonetaryAmount) IsZero() bool     { return m.Amount.IsZero() }
func (m MonetaryAmount) IsNegative() bool { return m.Amount.IsNegative() }
func (m MonetaryAmount) IsPositive() bool { return m.Amount.IsPositive() }

// Equal reports whether both amount and currency match.
func (m MonetaryAmount) Equal(o MonetaryAmount) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

func (m MonetaryAmount) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(DisplayScale), m.Currency)
}

// MarshalJSON renders the amount at display scale so payloads are stable.
func (m MonetaryAmount) MarshalJSON() ([]byte, error) {
	type wire struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	return json.Marshal(wire{Amount: m.Amount.StringFixed(DisplayScale), Currency: m.Currency})
}

// Sum totals amounts that must all be in currency.
func Sum(currency string, amounts ...MonetaryAmount) (MonetaryAmount, error) {
	total := ZeroMoney(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return MonetaryAmount{}, err
		}
	}
	return total, nil
}

// RoundHalfUp rounds d to places, with halves rounded away from zero.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}
