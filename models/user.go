package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	Username           string         `gorm:"uniqueIndex;not null;size:100" json:"username"`
	FullName           string         `gorm:"not null;size:200" json:"full_name"`
	Email              string         `gorm:"size:200" json:"email"`
	PasswordHash       string         `gorm:"not null" json:"-"`
	Role               Role           `gorm:"not null;size:20" json:"role"`
	MustChangePassword bool           `gorm:"default:true" json:"must_change_password"`

	// Target hours for the whole program (e.g. an internship). Used by the
	// weekly summary to report remaining hours.
	TotalHoursRequired float64 `gorm:"default:0" json:"total_hours_required"`

	TimeRecords []TimeRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"time_records,omitempty"`
	Schedules   []Schedule   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"schedules,omitempty"`
}

func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) CanManageRecordsFor(userID uint) bool {
	if u.IsAdmin() {
		return true
	}
	return u.ID == userID
}

func (u *User) CanManageUsers() bool {
	return u.IsAdmin()
}

func (u *User) CanCreateInvites() bool {
	return u.IsAdmin()
}
