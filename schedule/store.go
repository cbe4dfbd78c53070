// Package schedule manages per-user weekly working windows.
package schedule

import (
	"errors"
	"fmt"

	"fichador/models"
	"fichador/timeutil"

	"gorm.io/gorm"
)

var (
	ErrInvalidShift = errors.New("shift end must be after its start")
	ErrInvalidDay   = errors.New("day of week must be between 0 (Monday) and 6 (Sunday)")
)

// Shift is one contiguous expected working interval, "HH:MM" wall clock.
type Shift struct {
	Start string
	End   string
}

// Hours validates the shift and returns its length in hours.
func (s Shift) Hours() (float64, error) {
	startM, err := timeutil.ParseClock(s.Start)
	if err != nil {
		return 0, err
	}
	endM, err := timeutil.ParseClock(s.End)
	if err != nil {
		return 0, err
	}
	if endM <= startM {
		return 0, ErrInvalidShift
	}
	return float64(endM-startM) / 60, nil
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert writes the schedule row for (user, day), overwriting any existing
// one. HoursRequired is recomputed from the shift times; a shift whose end is
// not after its start is rejected and nothing is written.
func (st *Store) Upsert(userID uint, day int, shift1 Shift, shift2 *Shift, active bool) (*models.Schedule, error) {
	if day < 0 || day > 6 {
		return nil, ErrInvalidDay
	}

	hours, err := shift1.Hours()
	if err != nil {
		return nil, fmt.Errorf("shift 1: %w", err)
	}
	if shift2 != nil {
		h2, err := shift2.Hours()
		if err != nil {
			return nil, fmt.Errorf("shift 2: %w", err)
		}
		hours += h2
	}

	var sched models.Schedule
	err = st.db.Where("user_id = ? AND day_of_week = ?", userID, day).First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sched = models.Schedule{UserID: userID, DayOfWeek: day}
	} else if err != nil {
		return nil, err
	}

	sched.StartTime = shift1.Start
	sched.EndTime = shift1.End
	sched.StartTime2 = ""
	sched.EndTime2 = ""
	if shift2 != nil {
		sched.StartTime2 = shift2.Start
		sched.EndTime2 = shift2.End
	}
	sched.HoursRequired = hours
	sched.IsActive = active

	if err := st.db.Save(&sched).Error; err != nil {
		return nil, err
	}
	return &sched, nil
}

// Copy clones the source day's shifts, active flag and required hours to each
// target day with upsert semantics. The source day is skipped if listed.
func (st *Store) Copy(userID uint, sourceDay int, targetDays []int) error {
	if sourceDay < 0 || sourceDay > 6 {
		return ErrInvalidDay
	}

	var source models.Schedule
	if err := st.db.Where("user_id = ? AND day_of_week = ?", userID, sourceDay).First(&source).Error; err != nil {
		return err
	}

	shift1 := Shift{Start: source.StartTime, End: source.EndTime}
	var shift2 *Shift
	if source.HasSecondShift() {
		shift2 = &Shift{Start: source.StartTime2, End: source.EndTime2}
	}

	for _, day := range targetDays {
		if day == sourceDay {
			continue
		}
		if _, err := st.Upsert(userID, day, shift1, shift2, source.IsActive); err != nil {
			return err
		}
	}
	return nil
}

// ForDay returns the active schedule row for the weekday, or
// gorm.ErrRecordNotFound when the day has none.
func (st *Store) ForDay(userID uint, day int) (*models.Schedule, error) {
	var sched models.Schedule
	err := st.db.Where("user_id = ? AND day_of_week = ? AND is_active = ?", userID, day, true).First(&sched).Error
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// Week returns all configured rows for the user ordered Monday first.
func (st *Store) Week(userID uint) ([]models.Schedule, error) {
	var rows []models.Schedule
	err := st.db.Where("user_id = ?", userID).Order("day_of_week asc").Find(&rows).Error
	return rows, err
}
