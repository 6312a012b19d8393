package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar day (UTC midnight). It serialises as YYYY-MM-DD and as null
// when zero.
type Date struct{ time.Time }

// NewDate builds a calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses YYYY-MM-DD. The empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, newValidationError(ErrInvalidInput, "date", "%q is not a YYYY-MM-DD date", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

// AddMonths shifts the date by n months, clamping the day to the target month's
// length (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	total := int(d.Month()) - 1 + n
	year := d.Year() + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	m := time.Month(month + 1)
	day := d.Day()
	if last := daysInMonth(year, m); day > last {
		day = last
	}
	return NewDate(year, m, day)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func maxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysBetween returns to - from in whole calendar days (negative when to < from).
func DaysBetween(from, to Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}

// MonthsBetween returns the number of months elapsed from start to end: whole months
// counted from start's day-of-month, plus the day-count fraction of the month in
// progress. Zero when end is not after start.
func MonthsBetween(start, end Date) decimal.Decimal {
	if !end.After(start) {
		return decimal.Zero
	}
	whole := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	for whole > 0 && start.AddMonths(whole).After(end) {
		whole--
	}
	anchor := start.AddMonths(whole)
	next := start.AddMonths(whole + 1)
	elapsed := DaysBetween(anchor, end)
	if elapsed == 0 {
		return decimal.NewFromInt(int64(whole))
	}
	frac := decimal.NewFromInt(int64(elapsed)).DivRound(decimal.NewFromInt(int64(DaysBetween(anchor, next))), InternalScale)
	return decimal.NewFromInt(int64(whole)).Add(frac)
}

// ── Aging buckets ─────────────────────────────────────────────────────────────

// AgingBucket classifies an outstanding balance by how long it is past due.
type AgingBucket string

const (
	BucketCurrent AgingBucket = "current"
	Bucket1To30   AgingBucket = "1-30"
	Bucket31To60  AgingBucket = "31-60"
	Bucket61To90  AgingBucket = "61-90"
	BucketOver90  AgingBucket = "over90"
)

// AgingBucketOrder lists the buckets from youngest to oldest.
var AgingBucketOrder = []AgingBucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// BucketByAge classifies a due date against asOf. Age is asOf - dueDate in whole
// days; anything not yet past due (age <= 0) is current.
func BucketByAge(dueDate, asOf Date) (AgingBucket, error) {
	if dueDate.IsZero() {
		return "", newValidationError(ErrInvalidInput, "due_date", "due date is required")
	}
	if asOf.IsZero() {
		return "", newValidationError(ErrInvalidInput, "as_of", "as-of date is required")
	}
	age := DaysBetween(dueDate, asOf)
	switch {
	case age <= 0:
		return BucketCurrent, nil
	case age <= 30:
		return Bucket1To30, nil
	case age <= 60:
		return Bucket31To60, nil
	case age <= 90:
		return Bucket61To90, nil
	default:
		return BucketOver90, nil
	}
}

// ── Date ranges & fiscal periods ──────────────────────────────────────────────

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Validate requires both bounds and Start <= End.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return newValidationError(ErrInvalidDateRange, "date_range", "start and end dates are required")
	}
	if r.Start.After(r.End) {
		return newValidationError(ErrInvalidDateRange, "date_range", "start %s is after end %s", r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// FiscalPeriod is one fiscal year. Year is the calendar year in which it ends.
type FiscalPeriod struct {
	Year  int  `json:"year"`
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// FiscalCalendar resolves fiscal years that begin on the first day of StartMonth.
type FiscalCalendar struct {
	StartMonth time.Month
}

// CalendarYear is the fiscal calendar whose years coincide with calendar years.
var CalendarYear = FiscalCalendar{StartMonth: time.January}

func (c FiscalCalendar) startMonth() time.Month {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return time.January
	}
	return c.StartMonth
}

// PeriodFor returns the fiscal year containing d.
func (c FiscalCalendar) PeriodFor(d Date) FiscalPeriod {
	sm := c.startMonth()
	year := d.Year()
	if d.Month() < sm {
		year--
	}
	start := NewDate(year, sm, 1)
	end := start.AddMonths(12).AddDays(-1)
	return FiscalPeriod{Year: end.Year(), Start: start, End: end}
}

// quarterFor returns the fiscal quarter containing d.
func (c FiscalCalendar) quarterFor(d Date) DateRange {
	fy := c.PeriodFor(d)
	idx := 0
	for q := 1; q < 4; q++ {
		if !d.Before(fy.Start.AddMonths(3 * q)) {
			idx = q
		}
	}
	start := fy.Start.AddMonths(3 * idx)
	return DateRange{Start: start, End: start.AddMonths(3).AddDays(-1)}
}

// NamedRanges lists the relative period names accepted by ResolveNamedRange.
var NamedRanges = []string{
	"today", "yesterday", "this_week", "last_week", "this_month", "last_month",
	"this_quarter", "last_quarter", "this_year", "last_year",
	"this_fiscal_year", "last_fiscal_year", "last_7_days", "last_30_days", "last_90_days",
}

// ResolveNamedRange turns a relative period name into concrete dates as of asOf.
// Weeks start on Monday; quarters follow the fiscal calendar.
func (c FiscalCalendar) ResolveNamedRange(name string, asOf Date) (DateRange, error) {
	if asOf.IsZero() {
		return DateRange{}, newValidationError(ErrInvalidDateRange, "as_of", "as-of date is required to resolve %q", name)
	}
	monthStart := NewDate(asOf.Year(), asOf.Month(), 1)
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "today":
		return DateRange{Start: asOf, End: asOf}, nil
	case "yesterday":
		y := asOf.AddDays(-1)
		return DateRange{Start: y, End: y}, nil
	case "this_week", "last_week":
		offset := (int(asOf.Weekday()) + 6) % 7
		start := asOf.AddDays(-offset)
		if key == "last_week" {
			start = start.AddDays(-7)
		}
		return DateRange{Start: start, End: start.AddDays(6)}, nil
	case "this_month":
		return DateRange{Start: monthStart, End: monthStart.AddMonths(1).AddDays(-1)}, nil
	case "last_month":
		start := monthStart.AddMonths(-1)
		return DateRange{Start: start, End: monthStart.AddDays(-1)}, nil
	case "this_quarter":
		return c.quarterFor(asOf), nil
	case "last_quarter":
		q := c.quarterFor(asOf)
		return c.quarterFor(q.Start.AddDays(-1)), nil
	case "this_year":
		return DateRange{Start: NewDate(asOf.Year(), time.January, 1), End: NewDate(asOf.Year(), time.December, 31)}, nil
	case "last_year":
		return DateRange{Start: NewDate(asOf.Year()-1, time.January, 1), End: NewDate(asOf.Year()-1, time.December, 31)}, nil
	case "this_fiscal_year":
		fy := c.PeriodFor(asOf)
		return DateRange{Start: fy.Start, End: fy.End}, nil
	case "last_fiscal_year":
		fy := c.PeriodFor(c.PeriodFor(asOf).Start.AddDays(-1))
		return DateRange{Start: fy.Start, End: fy.End}, nil
	case "last_7_days":
		return DateRange{Start: asOf.AddDays(-6), End: asOf}, nil
	case "last_30_days":
		return DateRange{Start: asOf.AddDays(-29), End: asOf}, nil
	case "last_90_days":
		return DateRange{Start: asOf.AddDays(-89), End: asOf}, nil
	}
	return DateRange{}, newValidationError(ErrInvalidDateRange, "in_range", "unknown period %q", name)
}
