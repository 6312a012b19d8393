package core_test

import (
	"testing"

	"accounting-reports/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCustomerStatement(t *testing.T) {
	snap := loadFixture(t)

	stmt, err := core.BuildCustomerStatement(snap, "C1", core.DateRange{Start: date("2026-01-01"), End: date("2026-06-30")})
	require.NoError(t, err)

	assert.Equal(t, "Alpha Corp", stmt.Customer.Name)
	assert.Equal(t, "USD", stmt.Currency)
	require.Len(t, stmt.Transactions, 3)

	want := []struct {
		typ     core.StatementLineType
		ref     string
		balance string
	}{
		{core.StatementInvoice, "SI-1001", "1000"},
		{core.StatementInvoice, "SI-1002", "1500"},
		{core.StatementPayment, "SI-1002 (bank)", "1300"},
	}
	for i, w := range want {
		tx := stmt.Transactions[i]
		assert.Equal(t, w.typ, tx.Type, "line %d", i)
		assert.Equal(t, w.ref, tx.Reference, "line %d", i)
		assert.Equal(t, w.balance, tx.RunningBalance.String(), "line %d", i)
	}

	s := stmt.Summary
	assert.True(t, s.OpeningBalance.IsZero())
	assert.Equal(t, "1500", s.TotalInvoiced.String())
	assert.Equal(t, "200", s.TotalPaid.String())
	assert.Equal(t, "1300", s.ClosingBalance.String())
	assert.True(t, s.ClosingBalance.Equal(s.OpeningBalance.Add(s.TotalInvoiced).Sub(s.TotalPaid)))

	// INV-1 is 60 days past due, the rest of INV-2 is 15.
	assert.Equal(t, "1000", stmt.Aging.Days31To60.String())
	assert.Equal(t, "300", stmt.Aging.Days1To30.String())
	assert.True(t, stmt.Aging.Total().Equal(s.ClosingBalance))
}

func TestBuildCustomerStatement_OpeningBalance(t *testing.T) {
	snap := loadFixture(t)

	stmt, err := core.BuildCustomerStatement(snap, "C1", core.DateRange{Start: date("2026-05-01"), End: date("2026-06-30")})
	require.NoError(t, err)
	assert.Equal(t, "1000", stmt.Summary.OpeningBalance.String())
	require.Len(t, stmt.Transactions, 2)
	assert.Equal(t, "1300", stmt.Summary.ClosingBalance.String())
}

func TestBuildCustomerStatement_SkipsDrafts(t *testing.T) {
	snap := loadFixture(t)

	// C2: INV-3 open, INV-4 paid in February, INV-5 draft.
	stmt, err := core.BuildCustomerStatement(snap, "C2", core.DateRange{Start: date("2026-01-01"), End: date("2026-06-30")})
	require.NoError(t, err)
	for _, tx := range stmt.Transactions {
		assert.NotEqual(t, "SI-1005", tx.Reference)
	}
	assert.Equal(t, "750", stmt.Summary.ClosingBalance.String())
}

func TestBuildCustomerStatement_Errors(t *testing.T) {
	snap := loadFixture(t)
	period := core.DateRange{Start: date("2026-01-01"), End: date("2026-06-30")}

	_, err := core.BuildCustomerStatement(snap, "NOPE", period)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = core.BuildCustomerStatement(snap, "C1", core.DateRange{Start: date("2026-07-01"), End: date("2026-06-30")})
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)

	snap.Invoices = append(snap.Invoices, core.Document{
		ID: "INV-9", Number: "SI-1009", PartyID: "C1", Date: date("2026-06-01"), DueDate: date("2026-07-01"),
		Amount: core.NewMoney(decimal.NewFromInt(10), "EUR"), Status: core.DocumentStatusOpen,
	})
	_, err = core.BuildCustomerStatement(snap, "C1", period)
	assert.ErrorIs(t, err, core.ErrCurrencyMismatch)
}
