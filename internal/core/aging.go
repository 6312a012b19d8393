package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ── Aging types ───────────────────────────────────────────────────────────────

// AgingBuckets holds one amount per aging bucket, all in Currency.
type AgingBuckets struct {
	Currency   string          `json:"currency"`
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"1-30"`
	Days31To60 decimal.Decimal `json:"31-60"`
	Days61To90 decimal.Decimal `json:"61-90"`
	Over90     decimal.Decimal `json:"over90"`
}

func (b *AgingBuckets) slot(bucket AgingBucket) *decimal.Decimal {
	switch bucket {
	case BucketCurrent:
		return &b.Current
	case Bucket1To30:
		return &b.Days1To30
	case Bucket31To60:
		return &b.Days31To60
	case Bucket61To90:
		return &b.Days61To90
	default:
		return &b.Over90
	}
}

func (b *AgingBuckets) add(bucket AgingBucket, amount decimal.Decimal) {
	s := b.slot(bucket)
	*s = s.Add(amount)
}

func (b *AgingBuckets) merge(o AgingBuckets) {
	for _, bucket := range AgingBucketOrder {
		b.add(bucket, *o.slot(bucket))
	}
}

// Get returns the amount in one bucket.
func (b AgingBuckets) Get(bucket AgingBucket) MonetaryAmount {
	return NewMoney(*b.slot(bucket), b.Currency)
}

// Total is the sum of all five buckets.
func (b AgingBuckets) Total() decimal.Decimal {
	return b.Current.Add(b.Days1To30).Add(b.Days31To60).Add(b.Days61To90).Add(b.Over90)
}

// IsCritical reports a nonzero balance more than 60 days past due.
func (b AgingBuckets) IsCritical() bool {
	return !b.Days61To90.IsZero() || !b.Over90.IsZero()
}

// OpenItem is an unpaid or partially paid invoice or bill.
type OpenItem struct {
	DocumentID     string         `json:"document_id"`
	DocumentNumber string         `json:"document_number"`
	EntityID       string         `json:"entity_id"`
	EntityName     string         `json:"entity_name"`
	DocumentDate   Date           `json:"document_date"`
	DueDate        Date           `json:"due_date"`
	Outstanding    MonetaryAmount `json:"outstanding"`
}

// SettledItem is a fully paid document, used for the average payment delay.
type SettledItem struct {
	DocumentID   string         `json:"document_id"`
	DocumentDate Date           `json:"document_date"`
	PaymentDate  Date           `json:"payment_date"`
	Amount       MonetaryAmount `json:"amount"`
}

// AgingRow is one entity's (customer's or vendor's) aged balance.
type AgingRow struct {
	EntityID      string          `json:"entity_id"`
	EntityName    string          `json:"entity_name"`
	Buckets       AgingBuckets    `json:"buckets"`
	Total         decimal.Decimal `json:"total_outstanding"`
	OpenItems     int             `json:"open_items"`
	OldestDueDate Date            `json:"oldest_due_date"`
	Critical      bool            `json:"critical"`
}

type AgingSummary struct {
	Buckets            AgingBuckets    `json:"buckets"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	EntityCount        int             `json:"entity_count"`
	OpenItemCount      int             `json:"open_item_count"`
	CriticalCount      int             `json:"critical_count"`
	CriticalEntities   []string        `json:"critical_entities"`
	AveragePaymentDays decimal.Decimal `json:"average_payment_days"`
}

// AgingResult is a single-currency aging schedule.
type AgingResult struct {
	AsOfDate Date         `json:"as_of_date"`
	Currency string       `json:"currency"`
	Summary  AgingSummary `json:"summary"`
	Rows     []AgingRow   `json:"rows"`
}

// AgingRequest is the input to ComputeAging. Settled items count towards the
// average payment delay when their payment date lies in [PeriodStart, AsOf];
// a zero PeriodStart means no lower bound. DefaultCurrency labels the empty
// report produced when there is nothing to age.
type AgingRequest struct {
	AsOf            Date
	PeriodStart     Date
	DefaultCurrency string
	Open            []OpenItem
	Settled         []SettledItem
}

// ── Engine ────────────────────────────────────────────────────────────────────

// ComputeAging buckets open items by age as of req.AsOf. Amounts are never summed
// across currencies: one result is returned per currency, ordered by currency code.
// Items with a zero outstanding amount are skipped entirely.
func ComputeAging(req AgingRequest) ([]AgingResult, error) {
	if req.AsOf.IsZero() {
		return nil, newValidationError(ErrInvalidInput, "as_of", "as-of date is required")
	}
	if !req.PeriodStart.IsZero() && req.PeriodStart.After(req.AsOf) {
		return nil, newValidationError(ErrInvalidDateRange, "period_start", "period start %s is after as-of %s", req.PeriodStart, req.AsOf)
	}

	type entityAcc struct {
		row   AgingRow
		first int // input position, for deterministic ordering of equal totals
	}
	perCurrency := make(map[string]map[string]*entityAcc)
	openCount := make(map[string]int)

	for i, item := range req.Open {
		if item.Outstanding.IsZero() {
			continue
		}
		if item.Outstanding.IsNegative() {
			return nil, newValidationError(ErrInvalidInput, "outstanding", "document %s has negative outstanding amount %s", item.DocumentID, item.Outstanding)
		}
		bucket, err := BucketByAge(item.DueDate, req.AsOf)
		if err != nil {
			return nil, err
		}
		cur := item.Outstanding.Currency
		entities, ok := perCurrency[cur]
		if !ok {
			entities = make(map[string]*entityAcc)
			perCurrency[cur] = entities
		}
		acc, ok := entities[item.EntityID]
		if !ok {
			acc = &entityAcc{
				row:   AgingRow{EntityID: item.EntityID, EntityName: item.EntityName, Buckets: AgingBuckets{Currency: cur}},
				first: i,
			}
			entities[item.EntityID] = acc
		}
		acc.row.Buckets.add(bucket, item.Outstanding.Amount)
		acc.row.OpenItems++
		if acc.row.OldestDueDate.IsZero() || item.DueDate.Before(acc.row.OldestDueDate) {
			acc.row.OldestDueDate = item.DueDate
		}
		openCount[cur]++
	}

	paymentDays := averagePaymentDays(req.Settled, req.PeriodStart, req.AsOf)

	currencies := make([]string, 0, len(perCurrency))
	for cur := range perCurrency {
		currencies = append(currencies, cur)
	}
	for cur := range paymentDays {
		if _, ok := perCurrency[cur]; !ok {
			currencies = append(currencies, cur)
		}
	}
	if len(currencies) == 0 {
		currencies = append(currencies, req.DefaultCurrency)
	}
	sort.Strings(currencies)

	results := make([]AgingResult, 0, len(currencies))
	for _, cur := range currencies {
		accs := make([]*entityAcc, 0, len(perCurrency[cur]))
		for _, acc := range perCurrency[cur] {
			accs = append(accs, acc)
		}
		sort.Slice(accs, func(i, j int) bool {
			ti, tj := accs[i].row.Buckets.Total(), accs[j].row.Buckets.Total()
			if !ti.Equal(tj) {
				return ti.GreaterThan(tj)
			}
			return accs[i].first < accs[j].first
		})

		summary := AgingSummary{
			Buckets:          AgingBuckets{Currency: cur},
			OpenItemCount:    openCount[cur],
			CriticalEntities: []string{},
		}
		rows := make([]AgingRow, 0, len(accs))
		for _, acc := range accs {
			row := acc.row
			row.Total = row.Buckets.Total()
			row.Critical = row.Buckets.IsCritical()
			if row.Critical {
				summary.CriticalCount++
				summary.CriticalEntities = append(summary.CriticalEntities, row.EntityID)
			}
			summary.Buckets.merge(row.Buckets)
			rows = append(rows, row)
		}
		summary.EntityCount = len(rows)
		summary.TotalOutstanding = summary.Buckets.Total()
		summary.AveragePaymentDays = paymentDays[cur]

		results = append(results, AgingResult{AsOfDate: req.AsOf, Currency: cur, Summary: summary, Rows: rows})
	}
	return results, nil
}

// averagePaymentDays returns, per currency, the amount-weighted mean of
// (payment date - document date) over settled items paid within the period.
func averagePaymentDays(settled []SettledItem, from, to Date) map[string]decimal.Decimal {
	weighted := make(map[string]decimal.Decimal)
	weights := make(map[string]decimal.Decimal)
	for _, s := range settled {
		if s.PaymentDate.IsZero() || s.DocumentDate.IsZero() || !s.Amount.Amount.IsPositive() {
			continue
		}
		if s.PaymentDate.After(to) || (!from.IsZero() && s.PaymentDate.Before(from)) {
			continue
		}
		days := decimal.NewFromInt(int64(DaysBetween(s.DocumentDate, s.PaymentDate)))
		cur := s.Amount.Currency
		weighted[cur] = weighted[cur].Add(days.Mul(s.Amount.Amount))
		weights[cur] = weights[cur].Add(s.Amount.Amount)
	}
	out := make(map[string]decimal.Decimal, len(weights))
	for cur, w := range weights {
		out[cur] = weighted[cur].DivRound(w, DisplayScale)
	}
	return out
}

// ── Snapshot extraction ───────────────────────────────────────────────────────

// agingInputs derives open and settled items from posted documents as of asOf.
// Documents dated after asOf did not exist yet and are ignored.
func agingInputs(docs []Document, payments map[string][]Payment, names map[string]string, asOf Date) ([]OpenItem, []SettledItem, error) {
	var open []OpenItem
	var settled []SettledItem
	for _, doc := range docs {
		if !doc.Status.IsPosted() || doc.Date.After(asOf) {
			continue
		}
		bal, err := balanceAsOf(doc, payments[doc.ID], asOf)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case bal.outstanding.IsPositive():
			open = append(open, OpenItem{
				DocumentID:     doc.ID,
				DocumentNumber: doc.Number,
				EntityID:       doc.PartyID,
				EntityName:     names[doc.PartyID],
				DocumentDate:   doc.Date,
				DueDate:        doc.DueDate,
				Outstanding:    bal.outstanding,
			})
		case !bal.lastPayment.IsZero():
			settled = append(settled, SettledItem{
				DocumentID:   doc.ID,
				DocumentDate: doc.Date,
				PaymentDate:  bal.lastPayment,
				Amount:       doc.Amount,
			})
		}
	}
	return open, settled, nil
}
