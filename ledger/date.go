package ledger

import "time"

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar day in UTC. The ledger orders entries by date first,
// insertion order second, so sub-day precision is deliberately dropped.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

// AddMonths moves the date n months forward, clamping the day to the length
// of the target month (Jan 31 + 1 month = Feb 28, not Mar 3). Installment
// and recurrence series rely on this: a purchase on the 31st lands on the
// last day of shorter months instead of spilling into the next one.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Year(), d.Month(), d.Day()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}
	return NewDate(firstOfTarget.Year(), firstOfTarget.Month(), day)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.normalize().AddDate(0, 0, n))
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) String() string {
	return d.normalize().Format("2006-01-02")
}
