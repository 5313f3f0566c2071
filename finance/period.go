/*
period.go - Credit-card billing period boundaries

PURPOSE:
  Maps a purchase date onto the invoice period it belongs to, for a card
  with closing day D:

    day(d) >  D  ->  [D+1 of this month,     D of next month]
    day(d) <= D  ->  [D+1 of previous month, D of this month]

  The invoice is labeled by the Year/Month of the period END. The same
  computation serves invoice lookup/creation and the "which invoice is
  currently open" dashboard query - two call sites, one function, so they
  can never disagree.

CLAMPING:
  A closing day of 31 lands on the last day of shorter months. The period
  start is always the day after the previous (clamped) closing date.
*/
package finance

import (
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// BillingPeriod is one invoice's date coverage, inclusive on both ends.
type BillingPeriod struct {
	Start ledger.Date
	End   ledger.Date
}

// Contains reports whether d falls inside the period.
func (p BillingPeriod) Contains(d ledger.Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// closingDateIn returns closing day D clamped into the given month.
func closingDateIn(year int, month time.Month, closingDay int) ledger.Date {
	day := closingDay
	if last := ledger.DaysInMonth(year, month); day > last {
		day = last
	}
	return ledger.NewDate(year, month, day)
}

// PeriodFor returns the billing period covering a purchase made on date d,
// for a card closing on day closingDay.
func PeriodFor(closingDay int, d ledger.Date) BillingPeriod {
	closingThisMonth := closingDateIn(d.Year(), d.Month(), closingDay)

	var end ledger.Date
	if d.After(closingThisMonth) {
		// Belongs to the period ending next month.
		next := ledger.NewDate(d.Year(), d.Month(), 1).AddMonths(1)
		end = closingDateIn(next.Year(), next.Month(), closingDay)
	} else {
		end = closingThisMonth
	}

	prevMonth := ledger.NewDate(end.Year(), end.Month(), 1).AddMonths(-1)
	start := closingDateIn(prevMonth.Year(), prevMonth.Month(), closingDay).AddDays(1)

	return BillingPeriod{Start: start, End: end}
}

// PeriodLabel returns the (year, month) an invoice is keyed by: the month
// containing the period end.
func PeriodLabel(p BillingPeriod) (int, time.Month) {
	return p.End.Year(), p.End.Month()
}

// DueDate returns when the invoice for the period falls due: the card's
// due day in the month after the closing date when the due day precedes
// the closing day, otherwise in the closing month itself.
func DueDate(p BillingPeriod, dueDay int) ledger.Date {
	year, month := PeriodLabel(p)
	due := closingDateIn(year, month, dueDay)
	if dueDay <= p.End.Day() {
		next := ledger.NewDate(year, month, 1).AddMonths(1)
		due = closingDateIn(next.Year(), next.Month(), dueDay)
	}
	return due
}
