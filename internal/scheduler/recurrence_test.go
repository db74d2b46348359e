package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/prospect/internal/models"
)

// TestCalculateNextRun tests the fixed recurrence table
func TestCalculateNextRun(t *testing.T) {
	// Wednesday 2026-03-04 14:30 local
	wednesday := time.Date(2026, time.March, 4, 14, 30, 0, 0, time.Local)

	tests := []struct {
		name      string
		frequency models.Recurrence
		from      time.Time
		want      time.Time
	}{
		{
			name:      "hourly adds one hour",
			frequency: models.RecurrenceHourly,
			from:      wednesday,
			want:      wednesday.Add(time.Hour),
		},
		{
			name:      "daily is next day at nine",
			frequency: models.RecurrenceDaily,
			from:      wednesday,
			want:      time.Date(2026, time.March, 5, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "daily before nine still moves to next day",
			frequency: models.RecurrenceDaily,
			from:      time.Date(2026, time.March, 4, 6, 0, 0, 0, time.Local),
			want:      time.Date(2026, time.March, 5, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "weekly is next monday at nine",
			frequency: models.RecurrenceWeekly,
			from:      wednesday,
			want:      time.Date(2026, time.March, 9, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "weekly from a monday skips to the following monday",
			frequency: models.RecurrenceWeekly,
			from:      time.Date(2026, time.March, 2, 10, 0, 0, 0, time.Local),
			want:      time.Date(2026, time.March, 9, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "monthly is first of next month at nine",
			frequency: models.RecurrenceMonthly,
			from:      wednesday,
			want:      time.Date(2026, time.April, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "monthly rolls over the year",
			frequency: models.RecurrenceMonthly,
			from:      time.Date(2026, time.December, 20, 12, 0, 0, 0, time.Local),
			want:      time.Date(2027, time.January, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name:      "unknown frequency falls back to daily",
			frequency: models.Recurrence("FORTNIGHTLY"),
			from:      wednesday,
			want:      time.Date(2026, time.March, 5, 9, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNextRun(tt.frequency, tt.from)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}
