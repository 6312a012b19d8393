package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ValuationMethod selects how on-hand inventory is costed.
type ValuationMethod string

const (
	// ValuationFIFO values stock at the cost of the oldest layers.
	ValuationFIFO ValuationMethod = "fifo"
	// ValuationLIFO values stock at the cost of the newest layers.
	ValuationLIFO ValuationMethod = "lifo"
	// ValuationAverage values stock at the weighted average cost of every layer received.
	ValuationAverage ValuationMethod = "average"
	// ValuationStandard values stock at the item's fixed standard cost.
	ValuationStandard ValuationMethod = "standard"
)

// DefaultValuationMethod is used when neither the request nor the item names one.
const DefaultValuationMethod = ValuationFIFO

// ValuationMethods lists every method in report column order.
var ValuationMethods = []ValuationMethod{ValuationFIFO, ValuationLIFO, ValuationAverage, ValuationStandard}

func (v ValuationMethod) IsValid() bool {
	switch v {
	case ValuationFIFO, ValuationLIFO, ValuationAverage, ValuationStandard:
		return true
	default:
		return false
	}
}

func (v ValuationMethod) String() string { return string(v) }

// UsesLayers reports whether the method consumes cost layers in order.
func (v ValuationMethod) UsesLayers() bool {
	return v == ValuationFIFO || v == ValuationLIFO
}

func (v ValuationMethod) Description() string {
	switch v {
	case ValuationFIFO:
		return "First-In-First-Out: on-hand stock carries the cost of the oldest layers"
	case ValuationLIFO:
		return "Last-In-First-Out: on-hand stock carries the cost of the newest layers"
	case ValuationAverage:
		return "Weighted Average: average cost over every layer ever received"
	case ValuationStandard:
		return "Standard Cost: fixed standard cost per unit, independent of layers"
	default:
		return "Unknown valuation method"
	}
}

// ParseValuationMethod accepts method names case-insensitively, plus the
// "weighted_average" alias. The empty string parses to the empty method.
func ParseValuationMethod(s string) (ValuationMethod, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "":
		return "", nil
	case "weighted_average", "weighted-average", "avg":
		return ValuationAverage, nil
	}
	m := ValuationMethod(key)
	if !m.IsValid() {
		return "", newValidationError(ErrInvalidInput, "method", "unknown valuation method %q (want fifo, lifo, average or standard)", s)
	}
	return m, nil
}

// ItemValuation is one item valued under all four methods from the same layers.
type ItemValuation struct {
	ItemID           string          `json:"item_id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	LotCount         int             `json:"lot_count"`
	ExpiredLots      int             `json:"expired_lots"`
	AverageUnitCost  decimal.Decimal `json:"average_unit_cost"`
	FIFO             MonetaryAmount  `json:"fifo"`
	LIFO             MonetaryAmount  `json:"lifo"`
	Average          MonetaryAmount  `json:"average"`
	Standard         MonetaryAmount  `json:"standard"`
	Method           ValuationMethod `json:"method"`
	Value            MonetaryAmount  `json:"value"`
	// StandardVariance is FIFO minus standard. It is informational and need not reconcile.
	StandardVariance MonetaryAmount `json:"standard_variance"`
}

// ValueFor returns the item's value under m.
func (v ItemValuation) ValueFor(m ValuationMethod) MonetaryAmount {
	switch m {
	case ValuationLIFO:
		return v.LIFO
	case ValuationAverage:
		return v.Average
	case ValuationStandard:
		return v.Standard
	default:
		return v.FIFO
	}
}

// ValuationOptions parameterise a valuation run. Method, when set, overrides the
// method stored on each item; DefaultMethod applies to items that carry none.
type ValuationOptions struct {
	AsOf          Date
	Method        ValuationMethod
	DefaultMethod ValuationMethod
	Currency      string
}

func (o ValuationOptions) methodFor(item InventoryItem) ValuationMethod {
	switch {
	case o.Method != "":
		return o.Method
	case item.ValuationMethod != "":
		return item.ValuationMethod
	case o.DefaultMethod != "":
		return o.DefaultMethod
	default:
		return DefaultValuationMethod
	}
}

// consumeLayers values qty units taking layers in the given index order. The layer
// slice is only read.
func consumeLayers(layers []CostLayer, qty decimal.Decimal, newestFirst bool) decimal.Decimal {
	value := decimal.Zero
	remaining := qty
	for i := range layers {
		if !remaining.IsPositive() {
			break
		}
		idx := i
		if newestFirst {
			idx = len(layers) - 1 - i
		}
		take := decimal.Min(remaining, layers[idx].QuantityReceived)
		value = value.Add(take.Mul(layers[idx].UnitCost))
		remaining = remaining.Sub(take)
	}
	return value
}

// ValueItem values item under FIFO, LIFO, weighted average and standard cost.
// Layers must be ordered oldest-received first. Claiming more on hand than the
// layers ever received fails with InsufficientLayerQuantityError.
func ValueItem(item InventoryItem, opts ValuationOptions) (ItemValuation, error) {
	method := opts.methodFor(item)
	if !method.IsValid() {
		return ItemValuation{}, newValidationError(ErrInvalidInput, "method", "item %s: unknown valuation method %q", item.ItemID, method)
	}
	if item.QuantityOnHand.IsNegative() {
		return ItemValuation{}, newValidationError(ErrInvalidInput, "quantity_on_hand", "item %s: negative quantity on hand %s", item.ItemID, item.QuantityOnHand)
	}
	cur := item.StandardCost.Currency
	if cur == "" {
		cur = strings.ToUpper(opts.Currency)
	}

	received := decimal.Zero
	totalCost := decimal.Zero
	expired := 0
	for _, l := range item.Lots {
		if l.QuantityReceived.IsNegative() || l.UnitCost.IsNegative() {
			return ItemValuation{}, newValidationError(ErrInvalidInput, "lots", "item %s lot %s: negative quantity or unit cost", item.ItemID, l.LotNumber)
		}
		received = received.Add(l.QuantityReceived)
		totalCost = totalCost.Add(l.QuantityReceived.Mul(l.UnitCost))
		if l.ExpirationDate != nil && !opts.AsOf.IsZero() && l.ExpirationDate.Before(opts.AsOf) {
			expired++
		}
	}
	if item.QuantityOnHand.GreaterThan(received) {
		return ItemValuation{}, &InsufficientLayerQuantityError{ItemID: item.ItemID, OnHand: item.QuantityOnHand, Received: received}
	}

	onHand := item.QuantityOnHand
	fifo := RoundHalfUp(consumeLayers(item.Lots, onHand, false), DisplayScale)
	lifo := RoundHalfUp(consumeLayers(item.Lots, onHand, true), DisplayScale)
	avgUnit, avg := decimal.Zero, decimal.Zero
	if received.IsPositive() {
		avgUnit = totalCost.DivRound(received, InternalScale)
		avg = totalCost.Mul(onHand).DivRound(received, DisplayScale)
	}
	std := RoundHalfUp(item.StandardCost.Amount.Mul(onHand), DisplayScale)

	v := ItemValuation{
		ItemID:           item.ItemID,
		SKU:              item.SKU,
		Name:             item.Name,
		Category:         item.Category,
		QuantityOnHand:   onHand,
		QuantityReceived: received,
		LotCount:         len(item.Lots),
		ExpiredLots:      expired,
		AverageUnitCost:  avgUnit,
		FIFO:             NewMoney(fifo, cur),
		LIFO:             NewMoney(lifo, cur),
		Average:          NewMoney(avg, cur),
		Standard:         NewMoney(std, cur),
		Method:           method,
		StandardVariance: NewMoney(fifo.Sub(std), cur),
	}
	v.Value = v.ValueFor(method)
	return v, nil
}

type ValuationSummary struct {
	ItemCount            int             `json:"item_count"`
	TotalQuantity        decimal.Decimal `json:"total_quantity"`
	TotalFIFO            decimal.Decimal `json:"total_fifo"`
	TotalLIFO            decimal.Decimal `json:"total_lifo"`
	TotalAverage         decimal.Decimal `json:"total_average"`
	TotalStandard        decimal.Decimal `json:"total_standard"`
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalVariance        decimal.Decimal `json:"total_variance"`
	ItemsWithExpiredLots int             `json:"items_with_expired_lots"`
	ZeroStockItems       int             `json:"zero_stock_items"`
}

type InventoryValuationReport struct {
	AsOfDate Date             `json:"as_of_date"`
	Currency string           `json:"currency"`
	Method   ValuationMethod  `json:"method"`
	Summary  ValuationSummary `json:"summary"`
	Items    []ItemValuation  `json:"items"`
}

// BuildInventoryValuation values every item and totals the results. The report's
// Method is the override when one is given, otherwise the default; per-item selected
// values follow each item's own method.
func BuildInventoryValuation(items []InventoryItem, opts ValuationOptions) (*InventoryValuationReport, error) {
	if opts.Method != "" && !opts.Method.IsValid() {
		return nil, newValidationError(ErrInvalidInput, "method", "unknown valuation method %q", opts.Method)
	}
	reportMethod := opts.Method
	if reportMethod == "" {
		reportMethod = opts.DefaultMethod
	}
	if reportMethod == "" {
		reportMethod = DefaultValuationMethod
	}
	report := &InventoryValuationReport{
		AsOfDate: opts.AsOf,
		Currency: strings.ToUpper(opts.Currency),
		Method:   reportMethod,
		Items:    make([]ItemValuation, 0, len(items)),
	}
	for i, item := range items {
		v, err := ValueItem(item, opts)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			report.Currency = v.FIFO.Currency
		} else if v.FIFO.Currency != report.Currency {
			return nil, &CurrencyMismatchError{Op: "inventory valuation", Left: report.Currency, Right: v.FIFO.Currency}
		}
		report.Items = append(report.Items, v)

		s := &report.Summary
		s.ItemCount++
		s.TotalQuantity = s.TotalQuantity.Add(v.QuantityOnHand)
		s.TotalFIFO = s.TotalFIFO.Add(v.FIFO.Amount)
		s.TotalLIFO = s.TotalLIFO.Add(v.LIFO.Amount)
		s.TotalAverage = s.TotalAverage.Add(v.Average.Amount)
		s.TotalStandard = s.TotalStandard.Add(v.Standard.Amount)
		s.TotalValue = s.TotalValue.Add(v.Value.Amount)
		s.TotalVariance = s.TotalVariance.Add(v.StandardVariance.Amount)
		if v.ExpiredLots > 0 {
			s.ItemsWithExpiredLots++
		}
		if v.QuantityOnHand.IsZero() {
			s.ZeroStockItems++
		}
	}
	return report, nil
}
