package schedule

import (
	"testing"

	"fichador/database"
	"fichador/models"

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

func testUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Username: "worker", PasswordHash: "x", Role: models.RoleEmployee}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestUpsertComputesHours(t *testing.T) {
	db := testDB(t)
	st := NewStore(db)
	user := testUser(t, db)

	sched, err := st.Upsert(user.ID, 0, Shift{"09:00", "13:00"}, &Shift{"15:00", "18:00"}, true)
	require.NoError(t, err)
	assert.Equal(t, 7.0, sched.HoursRequired)

	// Overwriting the same day recomputes the derived hours.
	sched, err = st.Upsert(user.ID, 0, Shift{"09:00", "14:00"}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sched.HoursRequired)
	assert.False(t, sched.HasSecondShift())

	var count int64
	db.Model(&models.Schedule{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpsertRejectsInvalidShift(t *testing.T) {
	db := testDB(t)
	st := NewStore(db)
	user := testUser(t, db)

	_, err := st.Upsert(user.ID, 0, Shift{"13:00", "09:00"}, nil, true)
	assert.ErrorIs(t, err, ErrInvalidShift)

	_, err = st.Upsert(user.ID, 0, Shift{"09:00", "13:00"}, &Shift{"18:00", "18:00"}, true)
	assert.ErrorIs(t, err, ErrInvalidShift)

	_, err = st.Upsert(user.ID, 9, Shift{"09:00", "13:00"}, nil, true)
	assert.ErrorIs(t, err, ErrInvalidDay)

	// Nothing was written.
	var count int64
	db.Model(&models.Schedule{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCopyReproducesShifts(t *testing.T) {
	db := testDB(t)
	st := NewStore(db)
	user := testUser(t, db)

	_, err := st.Upsert(user.ID, 0, Shift{"09:00", "13:00"}, &Shift{"15:00", "18:00"}, true)
	require.NoError(t, err)

	// Source day included in targets is skipped.
	require.NoError(t, st.Copy(user.ID, 0, []int{0, 1, 4}))

	for _, day := range []int{1, 4} {
		got, err := st.ForDay(user.ID, day)
		require.NoError(t, err)
		assert.Equal(t, "09:00", got.StartTime)
		assert.Equal(t, "13:00", got.EndTime)
		assert.Equal(t, "15:00", got.StartTime2)
		assert.Equal(t, "18:00", got.EndTime2)
		assert.Equal(t, 7.0, got.HoursRequired)
	}

	var count int64
	db.Model(&models.Schedule{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestForDaySkipsInactive(t *testing.T) {
	db := testDB(t)
	st := NewStore(db)
	user := testUser(t, db)

	_, err := st.Upsert(user.ID, 2, Shift{"09:00", "17:00"}, nil, false)
	require.NoError(t, err)

	_, err = st.ForDay(user.ID, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
