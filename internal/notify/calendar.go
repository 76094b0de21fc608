// Package notify renders the WhatsApp-style dealer messages: billing details
// after an invoice run and payment reminders against outstanding balances.
package notify

import (
	"time"
)

// DueWorkingDays is how many working days a dealer has to pay an invoice.
const DueWorkingDays = 4

// bankHolidays are skipped when computing payment due dates. Dates are
// "YYYY-MM-DD". The list is maintained by hand each year.
var bankHolidays = map[string]bool{
	"2025-01-26": true, // Republic Day
	"2025-03-14": true, // Holi
	"2025-08-15": true, // Independence Day
	"2025-10-02": true, // Gandhi Jayanti
	"2025-10-24": true, // Dussehra
	"2025-11-12": true, // Diwali
	"2025-12-25": true, // Christmas
	"2026-01-26": true, // Republic Day
	"2026-03-04": true, // Holi
	"2026-08-15": true, // Independence Day
	"2026-10-02": true, // Gandhi Jayanti
	"2026-11-01": true, // Diwali
	"2026-12-25": true, // Christmas
}

func isBankHoliday(d time.Time) bool {
	return bankHolidays[d.Format("2006-01-02")]
}

// DueDate returns the payment due date for a billing date: DueWorkingDays
// days forward, skipping weekends and bank holidays.
func DueDate(billingDate time.Time) time.Time {
	d := billingDate
	added := 0
	for added < DueWorkingDays {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if isBankHoliday(d) {
			continue
		}
		added++
	}
	return d
}

// IsCollectionDay reports whether collections run on the date. Sundays are
// off, as are the 2nd and 4th Saturdays of the month (bank closing days).
func IsCollectionDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		occurrence := (d.Day()-1)/7 + 1
		return occurrence != 2 && occurrence != 4
	default:
		return true
	}
}

// BalanceDateForReminder returns the date whose closing balance a reminder
// sent on reminderDate should quote: the collection day that falls n working
// days earlier, matching the lag between billing and payment.
func BalanceDateForReminder(reminderDate time.Time, workingDays int) time.Time {
	d := reminderDate
	counted := 0
	for counted < workingDays {
		d = d.AddDate(0, 0, -1)
		if IsCollectionDay(d) {
			counted++
		}
	}
	return d
}
