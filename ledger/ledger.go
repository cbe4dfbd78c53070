// Package ledger is the append-mostly log of clock-in/clock-out events.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"fichador/models"
	"fichador/timeutil"

	"gorm.io/gorm"
)

var (
	// State conflicts; the caller must not retry these automatically.
	ErrAlreadyClockedIn = errors.New("an open record already exists for today")
	ErrNoOpenRecord     = errors.New("no open record to close")

	// Validation.
	ErrExitBeforeEntry = errors.New("exit time is before entry time")

	// Authorization.
	ErrNotAllowed = errors.New("not allowed to modify this record")
)

type Ledger struct {
	db    *gorm.DB
	clock *timeutil.Clock
}

func New(db *gorm.DB, clock *timeutil.Clock) *Ledger {
	return &Ledger{db: db, clock: clock}
}

// ClockIn opens a new record for the user's local-today. The at-most-one-open
// check and the insert run in one transaction so concurrent attempts cannot
// both succeed.
func (l *Ledger) ClockIn(userID uint, at time.Time, location string, lat, lng *float64) (*models.TimeRecord, error) {
	at = timeutil.AssumeUTC(at).UTC()
	date := l.clock.LocalDate(at)

	rec := &models.TimeRecord{
		UserID:    userID,
		Date:      date,
		EntryTime: at,
		Location:  location,
		Latitude:  lat,
		Longitude: lng,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TimeRecord{}).
			Where("user_id = ? AND date = ? AND exit_time IS NULL", userID, date).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyClockedIn
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ClockOut closes the user's open record. The entry location is preserved;
// a differing exit location is appended so both survive for the audit trail.
func (l *Ledger) ClockOut(userID uint, at time.Time, location string) (*models.TimeRecord, error) {
	at = timeutil.AssumeUTC(at).UTC()

	var rec models.TimeRecord
	err := l.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND exit_time IS NULL", userID).
			Order("entry_time desc").First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoOpenRecord
		}
		if err != nil {
			return err
		}
		if at.Before(timeutil.AssumeUTC(rec.EntryTime)) {
			return ErrExitBeforeEntry
		}
		rec.ExitTime = &at
		if location != "" && location != rec.Location {
			rec.Location = fmt.Sprintf("%s / out: %s", rec.Location, location)
		}
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// OpenRecord returns the user's currently open record, or ErrNoOpenRecord.
func (l *Ledger) OpenRecord(userID uint) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	err := l.db.Where("user_id = ? AND exit_time IS NULL", userID).
		Order("entry_time desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOpenRecord
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// OpenRecords lists every open record across users, for the reminder job.
func (l *Ledger) OpenRecords() ([]models.TimeRecord, error) {
	var recs []models.TimeRecord
	err := l.db.Preload("User").Where("exit_time IS NULL").Find(&recs).Error
	return recs, err
}

// HasRecordOn reports whether any record exists for the local date.
func (l *Ledger) HasRecordOn(userID uint, date time.Time) (bool, error) {
	var count int64
	err := l.db.Model(&models.TimeRecord{}).
		Where("user_id = ? AND date = ?", userID, timeutil.DateOnly(date)).
		Count(&count).Error
	return count > 0, err
}

// HasEntrySince reports whether a record on the date has an entry at or after
// the cutoff instant. Used so a first-shift clock-in does not suppress a
// second-shift missed-entry alert.
func (l *Ledger) HasEntrySince(userID uint, date, cutoff time.Time) (bool, error) {
	var count int64
	err := l.db.Model(&models.TimeRecord{}).
		Where("user_id = ? AND date = ? AND entry_time >= ?", userID, timeutil.DateOnly(date), cutoff).
		Count(&count).Error
	return count > 0, err
}

// CreateManual inserts a record with explicit times, for the manual-entry
// form. Only the owner or an admin may write it.
func (l *Ledger) CreateManual(actor *models.User, userID uint, date, entry time.Time, exit *time.Time, location string, lat, lng *float64, notes string) (*models.TimeRecord, error) {
	if !actor.CanManageRecordsFor(userID) {
		return nil, ErrNotAllowed
	}
	entry = timeutil.AssumeUTC(entry).UTC()
	if exit != nil {
		e := timeutil.AssumeUTC(*exit).UTC()
		if e.Before(entry) {
			return nil, ErrExitBeforeEntry
		}
		exit = &e
	}

	rec := &models.TimeRecord{
		UserID:    userID,
		Date:      timeutil.DateOnly(date),
		EntryTime: entry,
		ExitTime:  exit,
		Location:  location,
		Latitude:  lat,
		Longitude: lng,
		Notes:     notes,
	}
	if err := l.db.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Get fetches a record the actor is allowed to see.
func (l *Ledger) Get(actor *models.User, id uint) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	if err := l.db.First(&rec, id).Error; err != nil {
		return nil, err
	}
	if !actor.CanManageRecordsFor(rec.UserID) {
		return nil, ErrNotAllowed
	}
	return &rec, nil
}

// Update rewrites times, location and notes. The record's date is recomputed
// from the edited entry time, so moving an entry across local midnight moves
// the record to that calendar day.
func (l *Ledger) Update(actor *models.User, id uint, entry time.Time, exit *time.Time, location, notes string) (*models.TimeRecord, error) {
	rec, err := l.Get(actor, id)
	if err != nil {
		return nil, err
	}

	entry = timeutil.AssumeUTC(entry).UTC()
	if exit != nil {
		e := timeutil.AssumeUTC(*exit).UTC()
		if e.Before(entry) {
			return nil, ErrExitBeforeEntry
		}
		exit = &e
	}

	rec.EntryTime = entry
	rec.ExitTime = exit
	rec.Date = l.clock.LocalDate(entry)
	rec.Location = location
	rec.Notes = notes
	if err := l.db.Save(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record; owner or admin only.
func (l *Ledger) Delete(actor *models.User, id uint) error {
	rec, err := l.Get(actor, id)
	if err != nil {
		return err
	}
	return l.db.Delete(rec).Error
}

// ListRange returns the user's records with from <= date < to, newest first.
func (l *Ledger) ListRange(userID uint, from, to time.Time) ([]models.TimeRecord, error) {
	var recs []models.TimeRecord
	err := l.db.Where("user_id = ? AND date >= ? AND date < ?", userID, timeutil.DateOnly(from), timeutil.DateOnly(to)).
		Order("date desc, entry_time desc").Find(&recs).Error
	return recs, err
}
