package models

import "time"

// Schedule holds the expected working windows for one weekday. Days run
// Monday=0 through Sunday=6. A day may carry a second shift; HoursRequired is
// always recomputed from the shift times, never set directly.
type Schedule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_schedule_user_day" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DayOfWeek int       `gorm:"not null;uniqueIndex:idx_schedule_user_day" json:"day_of_week"`

	StartTime string `gorm:"not null;size:5" json:"start_time"` // "HH:MM" local wall clock
	EndTime   string `gorm:"not null;size:5" json:"end_time"`

	StartTime2 string `gorm:"size:5" json:"start_time_2"` // empty means no second shift
	EndTime2   string `gorm:"size:5" json:"end_time_2"`

	HoursRequired float64 `gorm:"not null" json:"hours_required"`
	IsActive      bool    `gorm:"default:true" json:"is_active"`
}

func (s *Schedule) HasSecondShift() bool {
	return s.StartTime2 != "" && s.EndTime2 != ""
}

// LastEnd returns the wall-clock end of the last shift of the day.
func (s *Schedule) LastEnd() string {
	if s.HasSecondShift() {
		return s.EndTime2
	}
	return s.EndTime
}
