package ledger

import (
	"testing"
	"time"

	"fichador/database"
	"fichador/models"
	"fichador/timeutil"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func testLedger(t *testing.T) (*Ledger, *gorm.DB, *models.User) {
	t.Helper()
	db := testDB(t)
	clock, err := timeutil.NewClock("Europe/Madrid")
	require.NoError(t, err)
	user := &models.User{Username: "worker", PasswordHash: "x", Role: models.RoleEmployee}
	require.NoError(t, db.Create(user).Error)
	return New(db, clock), db, user
}

func TestClockInOpensRecord(t *testing.T) {
	l, _, user := testLedger(t)

	at := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC) // Monday 09:00 Madrid
	rec, err := l.ClockIn(user.ID, at, "office", nil, nil)
	require.NoError(t, err)

	assert.True(t, rec.IsOpen())
	assert.True(t, rec.EntryTime.Equal(at))
	assert.True(t, rec.Date.Equal(time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)))
}

func TestClockInRejectsSecondOpenRecord(t *testing.T) {
	l, db, user := testLedger(t)

	at := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	_, err := l.ClockIn(user.ID, at, "office", nil, nil)
	require.NoError(t, err)

	_, err = l.ClockIn(user.ID, at.Add(5*time.Minute), "office", nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyClockedIn)

	var count int64
	db.Model(&models.TimeRecord{}).Where("user_id = ? AND exit_time IS NULL", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestClockOut(t *testing.T) {
	l, _, user := testLedger(t)

	in := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	_, err := l.ClockIn(user.ID, in, "office", nil, nil)
	require.NoError(t, err)

	out := in.Add(4*time.Hour + 30*time.Minute)
	rec, err := l.ClockOut(user.ID, out, "office")
	require.NoError(t, err)
	require.NotNil(t, rec.ExitTime)
	assert.False(t, rec.ExitTime.Before(rec.EntryTime))
	assert.Equal(t, 4*time.Hour+30*time.Minute, rec.Duration())
	assert.Equal(t, "office", rec.Location, "same location is not duplicated")

	_, err = l.ClockOut(user.ID, out.Add(time.Minute), "")
	assert.ErrorIs(t, err, ErrNoOpenRecord)
}

func TestClockOutPreservesBothLocations(t *testing.T) {
	l, _, user := testLedger(t)

	in := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	_, err := l.ClockIn(user.ID, in, "office", nil, nil)
	require.NoError(t, err)

	rec, err := l.ClockOut(user.ID, in.Add(time.Hour), "client site")
	require.NoError(t, err)
	assert.Equal(t, "office / out: client site", rec.Location)
}

func TestClockOutRejectsExitBeforeEntry(t *testing.T) {
	l, _, user := testLedger(t)

	in := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	_, err := l.ClockIn(user.ID, in, "", nil, nil)
	require.NoError(t, err)

	_, err = l.ClockOut(user.ID, in.Add(-time.Minute), "")
	assert.ErrorIs(t, err, ErrExitBeforeEntry)

	// The record is still open after the rejected attempt.
	rec, err := l.OpenRecord(user.ID)
	require.NoError(t, err)
	assert.True(t, rec.IsOpen())
}

func TestCreateManualValidation(t *testing.T) {
	l, db, user := testLedger(t)

	other := &models.User{Username: "other", PasswordHash: "x", Role: models.RoleEmployee}
	require.NoError(t, db.Create(other).Error)

	date := time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)
	entry := time.Date(2025, time.January, 7, 8, 0, 0, 0, time.UTC)
	badExit := entry.Add(-time.Hour)

	_, err := l.CreateManual(user, user.ID, date, entry, &badExit, "", nil, nil, "")
	assert.ErrorIs(t, err, ErrExitBeforeEntry)

	_, err = l.CreateManual(user, other.ID, date, entry, nil, "", nil, nil, "")
	assert.ErrorIs(t, err, ErrNotAllowed)

	admin := &models.User{Username: "boss", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(admin).Error)
	rec, err := l.CreateManual(admin, other.ID, date, entry, nil, "warehouse", nil, nil, "manual")
	require.NoError(t, err)
	assert.Equal(t, other.ID, rec.UserID)
}

func TestUpdateRecomputesDate(t *testing.T) {
	l, _, user := testLedger(t)

	in := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	rec, err := l.ClockIn(user.ID, in, "", nil, nil)
	require.NoError(t, err)

	// Move the entry across local midnight; the date follows it.
	newEntry := time.Date(2025, time.January, 7, 6, 0, 0, 0, time.UTC)
	newExit := newEntry.Add(8 * time.Hour)
	updated, err := l.Update(user, rec.ID, newEntry, &newExit, "office", "edited")
	require.NoError(t, err)
	assert.True(t, updated.Date.Equal(time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "edited", updated.Notes)
}

func TestDeleteOwnershipChecked(t *testing.T) {
	l, db, user := testLedger(t)

	other := &models.User{Username: "other", PasswordHash: "x", Role: models.RoleEmployee}
	require.NoError(t, db.Create(other).Error)

	in := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	rec, err := l.ClockIn(user.ID, in, "", nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, l.Delete(other, rec.ID), ErrNotAllowed)
	require.NoError(t, l.Delete(user, rec.ID))

	_, err = l.OpenRecord(user.ID)
	assert.ErrorIs(t, err, ErrNoOpenRecord)
}
