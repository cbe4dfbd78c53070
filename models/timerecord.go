package models

import (
	"time"

	"gorm.io/gorm"
)

// TimeRecord is one clock-in event. A null ExitTime means the session is
// still open; for a given (user, date) at most one record may be open.
// Date is the local calendar date at the moment of entry.
type TimeRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Date      time.Time      `gorm:"not null;type:date;index" json:"date"`
	EntryTime time.Time      `gorm:"not null" json:"entry_time"` // UTC instant
	ExitTime  *time.Time     `json:"exit_time"`                  // UTC instant, null while open
	Location  string         `gorm:"size:300" json:"location"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	Notes     string         `gorm:"size:500" json:"notes"`
}

func (r *TimeRecord) IsOpen() bool {
	return r.ExitTime == nil
}

// Duration is the closed-session length; open records report zero because
// their length is unknown until clock-out.
func (r *TimeRecord) Duration() time.Duration {
	if r.ExitTime == nil {
		return 0
	}
	return r.ExitTime.Sub(r.EntryTime).Truncate(time.Second)
}
