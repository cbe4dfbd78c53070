package models

import "time"

// NotificationSettings is created lazily on first visit to the settings page.
// The four Last* columns are idempotency markers: each holds the local date a
// notification kind was last sent, guaranteeing at most one send per kind per
// day. There is no explicit reset; the latch clears when "today" moves on.
type NotificationSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Enabled bool `gorm:"default:true" json:"enabled"`

	// Minutes after a scheduled shift start before a missed clock-in fires.
	MissedEntryAfterMin int `gorm:"default:15" json:"missed_entry_after_min"`
	// Minutes a record may stay open before the open-record reminder fires.
	OpenRecordMaxMin int `gorm:"default:600" json:"open_record_max_min"`
	// Minutes past the scheduled end before the open-record reminder fires.
	EndPassedMin int `gorm:"default:30" json:"end_passed_min"`

	WeeklySummaryDay  int    `gorm:"default:6" json:"weekly_summary_day"` // Monday=0 .. Sunday=6
	WeeklySummaryTime string `gorm:"size:5;default:'18:00'" json:"weekly_summary_time"`

	LastMissedEntrySent1 *time.Time `gorm:"column:last_missed_entry_sent_1;type:date" json:"last_missed_entry_sent_1"`
	LastMissedEntrySent2 *time.Time `gorm:"column:last_missed_entry_sent_2;type:date" json:"last_missed_entry_sent_2"`
	LastOpenRecordSent   *time.Time `gorm:"column:last_open_record_sent;type:date" json:"last_open_record_sent"`
	LastWeeklySent       *time.Time `gorm:"column:last_weekly_sent;type:date" json:"last_weekly_sent"`
}

// PushSubscription is one registered browser endpoint. Delivery failures with
// a permanent status deactivate the row instead of deleting it, keeping the
// audit history while excluding it from future sends.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Endpoint  string    `gorm:"not null;size:500" json:"endpoint"`
	P256dh    string    `gorm:"not null;size:200" json:"p256dh"`
	Auth      string    `gorm:"not null;size:100" json:"auth"`
	UserAgent string    `gorm:"size:300" json:"user_agent"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
}
