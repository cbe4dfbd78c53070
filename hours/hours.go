// Package hours computes worked and required hour aggregates for dashboards
// and reports. Read-only over the ledger and schedule tables.
package hours

import (
	"time"

	"fichador/models"
	"fichador/timeutil"

	"gorm.io/gorm"
)

type Aggregator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Worked sums exit-entry over closed records with from <= date < to. Open
// records contribute nothing; their length is unknown until clock-out.
// Whole-second precision so rounding error never compounds across records.
func (a *Aggregator) Worked(userID uint, from, to time.Time) (time.Duration, error) {
	var recs []models.TimeRecord
	err := a.db.Where("user_id = ? AND date >= ? AND date < ? AND exit_time IS NOT NULL",
		userID, timeutil.DateOnly(from), timeutil.DateOnly(to)).Find(&recs).Error
	if err != nil {
		return 0, err
	}
	return sum(recs), nil
}

// WorkedAllTime sums every closed record for the user.
func (a *Aggregator) WorkedAllTime(userID uint) (time.Duration, error) {
	var recs []models.TimeRecord
	err := a.db.Where("user_id = ? AND exit_time IS NOT NULL", userID).Find(&recs).Error
	if err != nil {
		return 0, err
	}
	return sum(recs), nil
}

func sum(recs []models.TimeRecord) time.Duration {
	var total time.Duration
	for _, r := range recs {
		exit := timeutil.AssumeUTC(*r.ExitTime)
		entry := timeutil.AssumeUTC(r.EntryTime)
		total += exit.Sub(entry).Truncate(time.Second)
	}
	return total
}

// Required sums the active schedules' required hours over the 7 days starting
// at weekStart. Days without an active schedule contribute zero.
func (a *Aggregator) Required(userID uint, weekStart time.Time) (float64, error) {
	var rows []models.Schedule
	err := a.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&rows).Error
	if err != nil {
		return 0, err
	}

	byDay := make(map[int]float64, len(rows))
	for _, s := range rows {
		byDay[s.DayOfWeek] = s.HoursRequired
	}

	var total float64
	for i := 0; i < 7; i++ {
		total += byDay[timeutil.WeekdayIndex(weekStart.AddDate(0, 0, i))]
	}
	return total, nil
}
