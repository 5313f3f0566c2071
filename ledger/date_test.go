package ledger

import (
	"testing"
	"time"
)

func TestDate_AddMonths_ClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name string
		in   Date
		n    int
		want Date
	}{
		{"jan31 plus one", NewDate(2025, time.January, 31), 1, NewDate(2025, time.February, 28)},
		{"jan31 plus one leap", NewDate(2024, time.January, 31), 1, NewDate(2024, time.February, 29)},
		{"mar31 minus one", NewDate(2025, time.March, 31), -1, NewDate(2025, time.February, 28)},
		{"oct31 plus one", NewDate(2025, time.October, 31), 1, NewDate(2025, time.November, 30)},
		{"mid month untouched", NewDate(2025, time.December, 15), 1, NewDate(2026, time.January, 15)},
		{"year wrap", NewDate(2025, time.November, 30), 3, NewDate(2026, time.February, 28)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.AddMonths(tc.n)
			if !got.Equal(tc.want) {
				t.Errorf("%s.AddMonths(%d) = %s, want %s", tc.in, tc.n, got, tc.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.March || d.Day() != 10 {
		t.Errorf("ParseDate = %s, want 2025-03-10", d)
	}

	if _, err := ParseDate("10/03/2025"); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if _, err := ParseDate(""); err == nil {
		t.Error("expected error for empty date")
	}
}

func TestDate_Ordering(t *testing.T) {
	a := NewDate(2025, time.March, 10)
	b := NewDate(2025, time.March, 11)

	if !a.Before(b) || b.Before(a) {
		t.Error("Before is wrong")
	}
	if !b.After(a) {
		t.Error("After is wrong")
	}
	if !a.BeforeOrEqual(a) || !a.AfterOrEqual(a) {
		t.Error("OrEqual variants must include equality")
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2025, time.February); got != 28 {
		t.Errorf("Feb 2025 = %d days, want 28", got)
	}
	if got := DaysInMonth(2024, time.February); got != 29 {
		t.Errorf("Feb 2024 = %d days, want 29", got)
	}
	if got := DaysInMonth(2025, time.April); got != 30 {
		t.Errorf("Apr 2025 = %d days, want 30", got)
	}
}

func TestSignedDelta_RoundTrip(t *testing.T) {
	amount := MustMoney("42.50")

	if d := SignedDelta(Out, amount); !d.Equal(amount.Neg()) {
		t.Errorf("SignedDelta(Out) = %s", d)
	}
	if d := SignedDelta(In, amount); !d.Equal(amount) {
		t.Errorf("SignedDelta(In) = %s", d)
	}
	if DirectionOf(amount.Neg()) != Out || DirectionOf(amount) != In {
		t.Error("DirectionOf does not mirror SignedDelta")
	}
}

func TestOriginTag_BypassesFundsCheck(t *testing.T) {
	for _, origin := range []OriginTag{OriginAdjustment, OriginReversal} {
		if !origin.BypassesFundsCheck() {
			t.Errorf("%s must bypass the funds check", origin)
		}
	}
	for _, origin := range []OriginTag{OriginManualTransaction, OriginInvoicePayment, OriginTransfer} {
		if origin.BypassesFundsCheck() {
			t.Errorf("%s must not bypass the funds check", origin)
		}
	}
}
