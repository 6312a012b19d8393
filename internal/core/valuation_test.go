package core_test

import (
	"testing"

	"accounting-reports/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widget() core.InventoryItem {
	expires := date("2026-03-01")
	return core.InventoryItem{
		ItemID:         "ITEM-1",
		SKU:            "WID-1",
		Name:           "Widget",
		QuantityOnHand: decimal.NewFromInt(120),
		StandardCost:   usd("10.50"),
		Lots: []core.CostLayer{
			{LotNumber: "L1", QuantityReceived: decimal.NewFromInt(100), UnitCost: decimal.NewFromInt(10), ReceivedDate: date("2026-01-05")},
			{LotNumber: "L2", QuantityReceived: decimal.NewFromInt(50), UnitCost: decimal.NewFromInt(12), ReceivedDate: date("2026-03-05"), ExpirationDate: &expires},
		},
	}
}

func TestValueItem_AllMethods(t *testing.T) {
	v, err := core.ValueItem(widget(), core.ValuationOptions{AsOf: date("2026-06-30")})
	require.NoError(t, err)

	assert.Equal(t, "1240", v.FIFO.Amount.String())
	assert.Equal(t, "1300", v.LIFO.Amount.String())
	assert.Equal(t, "1280", v.Average.Amount.String())
	assert.Equal(t, "1260", v.Standard.Amount.String())
	assert.Equal(t, "-20", v.StandardVariance.Amount.String())
	assert.Equal(t, "10.666667", v.AverageUnitCost.String())
	assert.Equal(t, "150", v.QuantityReceived.String())
	assert.Equal(t, 1, v.ExpiredLots)

	// No method anywhere: FIFO.
	assert.Equal(t, core.ValuationFIFO, v.Method)
	assert.True(t, v.Value.Equal(v.FIFO))
}

func TestValueItem_MethodPrecedence(t *testing.T) {
	item := widget()
	item.ValuationMethod = core.ValuationAverage

	tests := []struct {
		name string
		opts core.ValuationOptions
		want core.ValuationMethod
	}{
		{"item method wins over default", core.ValuationOptions{DefaultMethod: core.ValuationLIFO}, core.ValuationAverage},
		{"override wins over item", core.ValuationOptions{Method: core.ValuationStandard}, core.ValuationStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := core.ValueItem(item, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Method)
			assert.True(t, v.Value.Equal(v.ValueFor(tt.want)))
		})
	}
}

func TestValueItem_ZeroStock(t *testing.T) {
	item := widget()
	item.QuantityOnHand = decimal.Zero

	v, err := core.ValueItem(item, core.ValuationOptions{})
	require.NoError(t, err)
	for _, m := range core.ValuationMethods {
		assert.True(t, v.ValueFor(m).IsZero(), string(m))
	}
}

func TestValueItem_InsufficientLayers(t *testing.T) {
	item := widget()
	item.QuantityOnHand = decimal.NewFromInt(151)

	_, err := core.ValueItem(item, core.ValuationOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientLayerQuantity)
	assert.True(t, core.IsCallerError(err))
}

func TestValueItem_DoesNotMutateLayers(t *testing.T) {
	item := widget()
	_, err := core.ValueItem(item, core.ValuationOptions{Method: core.ValuationLIFO})
	require.NoError(t, err)
	assert.Equal(t, "100", item.Lots[0].QuantityReceived.String())
	assert.Equal(t, "50", item.Lots[1].QuantityReceived.String())
}

func TestParseValuationMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    core.ValuationMethod
		wantErr bool
	}{
		{"", "", false},
		{"FIFO", core.ValuationFIFO, false},
		{" lifo ", core.ValuationLIFO, false},
		{"weighted_average", core.ValuationAverage, false},
		{"standard", core.ValuationStandard, false},
		{"hifo", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := core.ParseValuationMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildInventoryValuation(t *testing.T) {
	snap := loadFixture(t)

	report, err := core.BuildInventoryValuation(snap.Items, core.ValuationOptions{AsOf: date("2026-06-30"), Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "USD", report.Currency)
	assert.Equal(t, core.ValuationFIFO, report.Method)

	s := report.Summary
	assert.Equal(t, 2, s.ItemCount)
	assert.Equal(t, 1, s.ZeroStockItems)
	assert.Equal(t, 0, s.ItemsWithExpiredLots)
	assert.Equal(t, "1240", s.TotalFIFO.String())
	assert.Equal(t, "1300", s.TotalLIFO.String())
	// Widget uses FIFO, Bolt (no stock) average.
	assert.Equal(t, "1240", s.TotalValue.String())

	_, err = core.BuildInventoryValuation(snap.Items, core.ValuationOptions{Method: "hifo"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
