package scheduler

import (
	"time"

	"github.com/ternarybob/prospect/internal/models"
)

// dispatchHour is the local hour of day used for daily, weekly, and
// monthly recurrences.
const dispatchHour = 9

// CalculateNextRun computes the next run time for a recurrence frequency.
// This is a fixed table, not a general cron engine:
//
//	HOURLY  -> +1h from now
//	DAILY   -> next day at 09:00 local
//	WEEKLY  -> next Monday at 09:00 local
//	MONTHLY -> 1st of next month at 09:00 local
//	unknown -> treated as DAILY
func CalculateNextRun(frequency models.Recurrence, from time.Time) time.Time {
	switch frequency {
	case models.RecurrenceHourly:
		return from.Add(1 * time.Hour)

	case models.RecurrenceWeekly:
		daysUntilMonday := (int(time.Monday) - int(from.Weekday()) + 7) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		next := from.AddDate(0, 0, daysUntilMonday)
		return time.Date(next.Year(), next.Month(), next.Day(), dispatchHour, 0, 0, 0, from.Location())

	case models.RecurrenceMonthly:
		next := time.Date(from.Year(), from.Month(), 1, dispatchHour, 0, 0, 0, from.Location())
		return next.AddDate(0, 1, 0)

	case models.RecurrenceDaily:
		fallthrough
	default:
		next := from.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), dispatchHour, 0, 0, 0, from.Location())
	}
}
