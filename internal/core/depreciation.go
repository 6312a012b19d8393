package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultDecliningFactor is the double-declining-balance multiplier.
var DefaultDecliningFactor = decimal.NewFromInt(2)

var twelve = decimal.NewFromInt(12)

// DepreciationOptions parameterise a depreciation run.
type DepreciationOptions struct {
	// AsOf is the report date. Depreciation accrues up to (not including) this day.
	AsOf Date
	// Calendar defines the schedule periods.
	Calendar FiscalCalendar
	// DecliningFactor is the declining-balance multiplier (2 = double declining,
	// 1.5 = 150% declining). Zero means DefaultDecliningFactor.
	DecliningFactor decimal.Decimal
}

func (o DepreciationOptions) factor() decimal.Decimal {
	if o.DecliningFactor.IsPositive() {
		return o.DecliningFactor
	}
	return DefaultDecliningFactor
}

// DepreciationScheduleEntry is one fiscal year of an asset's schedule.
// EndingValue = BeginningValue - Depreciation.
type DepreciationScheduleEntry struct {
	Year                    int             `json:"year"`
	PeriodStart             Date            `json:"period_start"`
	PeriodEnd               Date            `json:"period_end"`
	BeginningValue          decimal.Decimal `json:"beginning_value"`
	Depreciation            decimal.Decimal `json:"depreciation"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	EndingValue             decimal.Decimal `json:"ending_value"`
}

// AssetDepreciation is the derived depreciation state of one asset as of a date.
// Nothing here is stored; it is recomputed from the asset record on every run.
type AssetDepreciation struct {
	AssetID                   string                      `json:"asset_id"`
	Name                      string                      `json:"name"`
	Category                  string                      `json:"category"`
	Method                    DepreciationMethod          `json:"method"`
	PurchaseDate              Date                        `json:"purchase_date"`
	PurchasePrice             MonetaryAmount              `json:"purchase_price"`
	ResidualValue             MonetaryAmount              `json:"residual_value"`
	UsefulLifeMonths          int                         `json:"useful_life_months"`
	AnnualRate                decimal.Decimal             `json:"annual_rate"`
	LifeEndDate               Date                        `json:"life_end_date"`
	AccumulatedDepreciation   MonetaryAmount              `json:"accumulated_depreciation"`
	CurrentBookValue          MonetaryAmount              `json:"current_book_value"`
	CurrentPeriodDepreciation MonetaryAmount              `json:"current_period_depreciation"`
	FullyDepreciated          bool                        `json:"fully_depreciated"`
	Schedule                  []DepreciationScheduleEntry `json:"schedule"`
}

func validateAsset(a Asset) error {
	switch {
	case a.PurchaseDate.IsZero():
		return newValidationError(ErrInvalidInput, "purchase_date", "asset %s has no purchase date", a.ID)
	case a.UsefulLifeMonths <= 0:
		return newValidationError(ErrInvalidInput, "useful_life_months", "asset %s: useful life must be positive, got %d", a.ID, a.UsefulLifeMonths)
	case a.PurchasePrice.IsNegative():
		return newValidationError(ErrInvalidInput, "purchase_price", "asset %s: purchase price cannot be negative", a.ID)
	case a.ResidualValue.IsNegative():
		return newValidationError(ErrInvalidInput, "residual_value", "asset %s: residual value cannot be negative", a.ID)
	case a.ResidualValue.GreaterThan(a.PurchasePrice.Amount):
		return newValidationError(ErrInvalidInput, "residual_value", "asset %s: residual value %s exceeds purchase price %s",
			a.ID, a.ResidualValue, a.PurchasePrice.Amount)
	case a.Method != "" && !a.Method.IsValid():
		return newValidationError(ErrInvalidInput, "method", "asset %s: unknown depreciation method %q", a.ID, a.Method)
	}
	return nil
}

// DepreciateAsset computes accumulated depreciation, book value and the fiscal-year
// schedule of a from its purchase date through the earlier of the end of its useful
// life and opts.AsOf. An empty method means straight-line.
func DepreciateAsset(a Asset, opts DepreciationOptions) (AssetDepreciation, error) {
	if opts.AsOf.IsZero() {
		return AssetDepreciation{}, newValidationError(ErrInvalidInput, "as_of", "as-of date is required")
	}
	if err := validateAsset(a); err != nil {
		return AssetDepreciation{}, err
	}
	method := a.Method
	if method == "" {
		method = StraightLine
	}
	cur := a.PurchasePrice.Currency
	price := a.PurchasePrice.Amount
	life := decimal.NewFromInt(int64(a.UsefulLifeMonths))
	lifeEnd := a.PurchaseDate.AddMonths(a.UsefulLifeMonths)
	stop := minDate(lifeEnd, opts.AsOf)

	out := AssetDepreciation{
		AssetID:          a.ID,
		Name:             a.Name,
		Category:         a.Category,
		Method:           method,
		PurchaseDate:     a.PurchaseDate,
		PurchasePrice:    a.PurchasePrice,
		ResidualValue:    NewMoney(a.ResidualValue, cur),
		UsefulLifeMonths: a.UsefulLifeMonths,
		LifeEndDate:      lifeEnd,
		Schedule:         []DepreciationScheduleEntry{},
	}

	var rate decimal.Decimal
	if method == DecliningBalance {
		rate = opts.factor().Mul(twelve).DivRound(life, InternalScale)
	} else {
		rate = twelve.DivRound(life, InternalScale)
	}
	out.AnnualRate = rate

	base := price.Sub(a.ResidualValue)
	cumulativeSL := func(t Date) decimal.Decimal {
		months := MonthsBetween(a.PurchaseDate, t)
		if months.GreaterThan(life) {
			months = life
		}
		return RoundHalfUp(base.Mul(months).Div(life), DisplayScale)
	}

	accumulated := decimal.Zero
	for period := opts.Calendar.PeriodFor(a.PurchaseDate); stop.After(period.Start); {
		next := period.End.AddDays(1)
		segStart := maxDate(period.Start, a.PurchaseDate)
		segEnd := minDate(next, stop)
		if segEnd.After(segStart) {
			beginning := price.Sub(accumulated)
			var dep decimal.Decimal
			switch method {
			case StraightLine:
				dep = cumulativeSL(segEnd).Sub(accumulated)
			case DecliningBalance:
				fraction := MonthsBetween(segStart, segEnd).DivRound(twelve, InternalScale)
				dep = RoundHalfUp(beginning.Mul(rate).Mul(fraction), DisplayScale)
				if segEnd.Equal(lifeEnd) || beginning.Sub(dep).LessThan(a.ResidualValue) {
					dep = beginning.Sub(a.ResidualValue)
				}
			}
			accumulated = accumulated.Add(dep)
			out.Schedule = append(out.Schedule, DepreciationScheduleEntry{
				Year:                    period.Year,
				PeriodStart:             segStart,
				PeriodEnd:               segEnd.AddDays(-1),
				BeginningValue:          beginning,
				Depreciation:            dep,
				AccumulatedDepreciation: accumulated,
				EndingValue:             beginning.Sub(dep),
			})
		}
		if !next.Before(stop) {
			break
		}
		period = opts.Calendar.PeriodFor(next)
	}

	bookValue := price.Sub(accumulated)
	out.AccumulatedDepreciation = NewMoney(accumulated, cur)
	out.CurrentBookValue = NewMoney(bookValue, cur)
	out.FullyDepreciated = bookValue.Equal(a.ResidualValue)
	out.CurrentPeriodDepreciation = ZeroMoney(cur)
	if n := len(out.Schedule); n > 0 {
		current := opts.Calendar.PeriodFor(opts.AsOf)
		if last := out.Schedule[n-1]; last.Year == current.Year && !last.PeriodEnd.Before(current.Start) {
			out.CurrentPeriodDepreciation = NewMoney(last.Depreciation, cur)
		}
	}
	return out, nil
}

// ── Report ────────────────────────────────────────────────────────────────────

type CategoryDepreciation struct {
	Category                string          `json:"category"`
	AssetCount              int             `json:"asset_count"`
	TotalCost               decimal.Decimal `json:"total_cost"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	BookValue               decimal.Decimal `json:"book_value"`
}

type DepreciationSummary struct {
	AssetCount                int                    `json:"asset_count"`
	FullyDepreciatedCount     int                    `json:"fully_depreciated_count"`
	TotalCost                 decimal.Decimal        `json:"total_cost"`
	AccumulatedDepreciation   decimal.Decimal        `json:"accumulated_depreciation"`
	BookValue                 decimal.Decimal        `json:"book_value"`
	CurrentPeriodDepreciation decimal.Decimal        `json:"current_period_depreciation"`
	ByCategory                []CategoryDepreciation `json:"by_category"`
}

type DepreciationReport struct {
	AsOfDate        Date                `json:"as_of_date"`
	Currency        string              `json:"currency"`
	DecliningFactor decimal.Decimal     `json:"declining_factor"`
	Summary         DepreciationSummary `json:"summary"`
	Assets          []AssetDepreciation `json:"assets"`
}

// BuildDepreciationReport depreciates every asset and totals the results. All assets
// must share one currency; defaultCurrency labels an empty report.
func BuildDepreciationReport(assets []Asset, opts DepreciationOptions, defaultCurrency string) (*DepreciationReport, error) {
	report := &DepreciationReport{
		AsOfDate:        opts.AsOf,
		Currency:        defaultCurrency,
		DecliningFactor: opts.factor(),
		Assets:          make([]AssetDepreciation, 0, len(assets)),
		Summary:         DepreciationSummary{ByCategory: []CategoryDepreciation{}},
	}
	categories := make(map[string]*CategoryDepreciation)
	for i, a := range assets {
		if i == 0 {
			report.Currency = a.PurchasePrice.Currency
		} else if a.PurchasePrice.Currency != report.Currency {
			return nil, &CurrencyMismatchError{Op: "depreciation report", Left: report.Currency, Right: a.PurchasePrice.Currency}
		}
		dep, err := DepreciateAsset(a, opts)
		if err != nil {
			return nil, err
		}
		report.Assets = append(report.Assets, dep)

		s := &report.Summary
		s.AssetCount++
		if dep.FullyDepreciated {
			s.FullyDepreciatedCount++
		}
		s.TotalCost = s.TotalCost.Add(dep.PurchasePrice.Amount)
		s.AccumulatedDepreciation = s.AccumulatedDepreciation.Add(dep.AccumulatedDepreciation.Amount)
		s.BookValue = s.BookValue.Add(dep.CurrentBookValue.Amount)
		s.CurrentPeriodDepreciation = s.CurrentPeriodDepreciation.Add(dep.CurrentPeriodDepreciation.Amount)

		c, ok := categories[a.Category]
		if !ok {
			c = &CategoryDepreciation{Category: a.Category}
			categories[a.Category] = c
		}
		c.AssetCount++
		c.TotalCost = c.TotalCost.Add(dep.PurchasePrice.Amount)
		c.AccumulatedDepreciation = c.AccumulatedDepreciation.Add(dep.AccumulatedDepreciation.Amount)
		c.BookValue = c.BookValue.Add(dep.CurrentBookValue.Amount)
	}
	for _, c := range categories {
		report.Summary.ByCategory = append(report.Summary.ByCategory, *c)
	}
	sort.Slice(report.Summary.ByCategory, func(i, j int) bool {
		return report.Summary.ByCategory[i].Category < report.Summary.ByCategory[j].Category
	})
	return report, nil
}
