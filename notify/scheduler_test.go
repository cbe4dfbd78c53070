package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"fichador/database"
	"fichador/hours"
	"fichador/ledger"
	"fichador/models"
	"fichador/schedule"
	"fichador/timeutil"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeGateway struct {
	sent []Message
	fail bool
}

func (g *fakeGateway) Send(ctx context.Context, user *models.User, msg Message) error {
	if g.fail {
		return errors.New("transport unreachable")
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *fakeGateway) kinds() []Kind {
	out := make([]Kind, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.Kind)
	}
	return out
}

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

type fixture struct {
	sched *Scheduler
	gw    *fakeGateway
	db    *gorm.DB
	clock *timeutil.Clock
	user  *models.User
	ns    *models.NotificationSettings
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	clock, err := timeutil.NewClock("Europe/Madrid")
	require.NoError(t, err)

	user := &models.User{Username: "worker", PasswordHash: "x", Role: models.RoleEmployee, TotalHoursRequired: 10}
	require.NoError(t, db.Create(user).Error)

	ns := &models.NotificationSettings{
		UserID:              user.ID,
		Enabled:             true,
		MissedEntryAfterMin: 5,
		OpenRecordMaxMin:    600,
		EndPassedMin:        30,
		WeeklySummaryDay:    6,
		WeeklySummaryTime:   "18:00",
	}
	require.NoError(t, db.Create(ns).Error)

	gw := &fakeGateway{}
	log := zap.NewNop()
	s := NewScheduler(db, clock, ledger.New(db, clock), hours.New(db), schedule.NewStore(db), NewDispatcher(log, gw), log)
	return &fixture{sched: s, gw: gw, db: db, clock: clock, user: user, ns: ns}
}

// monday is 2025-01-06; its week ends on Sunday 2025-01-12.
var monday = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

func (f *fixture) at(t *testing.T, date time.Time, clock string) {
	t.Helper()
	instant, err := f.clock.Combine(date, clock)
	require.NoError(t, err)
	f.sched.now = func() time.Time { return instant }
}

func (f *fixture) reloadSettings(t *testing.T) *models.NotificationSettings {
	t.Helper()
	var ns models.NotificationSettings
	require.NoError(t, f.db.First(&ns, f.ns.ID).Error)
	return &ns
}

func TestMissedEntryFiresOncePerDay(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	// Before start+delay: nothing.
	f.at(t, monday, "09:04")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.sent)

	f.at(t, monday, "09:06")
	f.sched.RunTick(context.Background())
	require.Equal(t, []Kind{KindMissedEntryShift1}, f.gw.kinds())

	// Re-run later the same day: the marker latches.
	f.at(t, monday, "09:10")
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindMissedEntryShift1}, f.gw.kinds())

	ns := f.reloadSettings(t)
	assert.True(t, timeutil.SameDatePtr(ns.LastMissedEntrySent1, monday))
}

func TestMissedEntryNotFiredAfterClockIn(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "09:01")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)

	f.at(t, monday, "09:30")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.kinds())
}

func TestSecondShiftAlertIndependentOfFirst(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, &schedule.Shift{Start: "15:00", End: "18:00"}, true)
	require.NoError(t, err)

	// A morning session exists, closed before lunch.
	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "09:00")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)
	out, err := f.clock.Combine(monday, "13:00")
	require.NoError(t, err)
	_, err = l.ClockOut(f.user.ID, out, "")
	require.NoError(t, err)

	// Shift 1 is satisfied; shift 2 has no entry after its start.
	f.at(t, monday, "15:10")
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindMissedEntryShift2}, f.gw.kinds())

	ns := f.reloadSettings(t)
	assert.Nil(t, ns.LastMissedEntrySent1)
	assert.True(t, timeutil.SameDatePtr(ns.LastMissedEntrySent2, monday))
}

func TestBothShiftsCanFireSameDay(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, &schedule.Shift{Start: "15:00", End: "18:00"}, true)
	require.NoError(t, err)

	f.at(t, monday, "16:00")
	f.sched.RunTick(context.Background())
	assert.ElementsMatch(t, []Kind{KindMissedEntryShift1, KindMissedEntryShift2}, f.gw.kinds())
}

func TestOpenRecordReminderPastScheduledEnd(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "09:00")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)

	// 13:29 local: neither elapsed (600 min) nor end+30 reached.
	f.at(t, monday, "13:29")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.kinds())

	f.at(t, monday, "13:31")
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindOpenRecord}, f.gw.kinds())
}

func TestOpenRecordReminderByElapsedTimeWithoutSchedule(t *testing.T) {
	f := setup(t)

	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "06:00")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)

	// 600 minutes after entry.
	f.at(t, monday, "16:01")
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindOpenRecord}, f.gw.kinds())
}

func TestOpenRecordFailureLeavesMarkerForRetry(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "09:00")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)

	f.gw.fail = true
	f.at(t, monday, "14:00")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.sent)
	assert.Nil(t, f.reloadSettings(t).LastOpenRecordSent)

	// Transport recovers; the same day retries and stamps.
	f.gw.fail = false
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindOpenRecord}, f.gw.kinds())
	assert.True(t, timeutil.SameDatePtr(f.reloadSettings(t).LastOpenRecordSent, monday))
}

func TestWeeklySummaryTimeGateAndIdempotency(t *testing.T) {
	f := setup(t)
	sunday := monday.AddDate(0, 0, 6)

	l := ledger.New(f.db, f.clock)
	entry, err := f.clock.Combine(monday, "09:00")
	require.NoError(t, err)
	exit := entry.Add(4*time.Hour + 30*time.Minute)
	_, err = l.CreateManual(f.user, f.user.ID, monday, entry, &exit, "", nil, nil, "")
	require.NoError(t, err)

	f.at(t, sunday, "17:59")
	f.sched.RunWeekly(context.Background())
	assert.Empty(t, f.gw.sent)

	f.at(t, sunday, "18:01")
	f.sched.RunWeekly(context.Background())
	require.Len(t, f.gw.sent, 1)
	assert.Equal(t, KindWeeklySummary, f.gw.sent[0].Kind)
	// 10h required minus 4.5h worked.
	assert.Contains(t, f.gw.sent[0].Body, "5 h 30 min")

	f.at(t, sunday, "19:00")
	f.sched.RunWeekly(context.Background())
	assert.Len(t, f.gw.sent, 1)
}

func TestWeeklySummaryClampsRemainingAtZero(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(f.user).Update("total_hours_required", 2.0).Error)

	l := ledger.New(f.db, f.clock)
	entry, err := f.clock.Combine(monday, "09:00")
	require.NoError(t, err)
	exit := entry.Add(4 * time.Hour)
	_, err = l.CreateManual(f.user, f.user.ID, monday, entry, &exit, "", nil, nil, "")
	require.NoError(t, err)

	f.at(t, monday.AddDate(0, 0, 6), "18:00")
	f.sched.RunWeekly(context.Background())
	require.Len(t, f.gw.sent, 1)
	assert.Contains(t, f.gw.sent[0].Body, "Remaining to reach your target: 0 h 0 min")
}

// time.Now returns the instant expressed in the host zone. The jobs must use
// the instant itself, not its wall clock, so thresholds hold whatever zone the
// host runs in.
func TestMissedEntryThresholdWithHostZoneNow(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	origLocal := time.Local
	time.Local = f.clock.Location()
	t.Cleanup(func() { time.Local = origLocal })

	atHostLocal := func(clock string) {
		instant, err := f.clock.Combine(monday, clock)
		require.NoError(t, err)
		f.sched.now = func() time.Time { return instant.In(time.Local) }
	}

	// 09:04 local is still inside the 5-minute grace period.
	atHostLocal("09:04")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.sent)

	atHostLocal("09:06")
	f.sched.RunTick(context.Background())
	assert.Equal(t, []Kind{KindMissedEntryShift1}, f.gw.kinds())
}

// A tick running exactly at local midnight keys the latch on the new date:
// yesterday's markers do not suppress, and yesterday's shift does not fire.
func TestMidnightTickLatchesOnNewDate(t *testing.T) {
	f := setup(t)
	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	// Still clocked in from Monday morning; both Monday markers stamped.
	l := ledger.New(f.db, f.clock)
	in, err := f.clock.Combine(monday, "08:00")
	require.NoError(t, err)
	_, err = l.ClockIn(f.user.ID, in, "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(f.ns).Updates(map[string]interface{}{
		"last_missed_entry_sent_1": monday,
		"last_open_record_sent":    monday,
	}).Error)

	tuesday := monday.AddDate(0, 0, 1)
	f.at(t, tuesday, "00:00")
	f.sched.RunTick(context.Background())

	// Tuesday has no schedule, so no missed-entry alert; the open record has
	// been open 16 hours, and Monday's stamp no longer latches.
	assert.Equal(t, []Kind{KindOpenRecord}, f.gw.kinds())
	ns := f.reloadSettings(t)
	assert.True(t, timeutil.SameDatePtr(ns.LastMissedEntrySent1, monday))
	assert.True(t, timeutil.SameDatePtr(ns.LastOpenRecordSent, tuesday))
}

func TestDisabledUserIsSkipped(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(f.ns).Update("enabled", false).Error)

	st := schedule.NewStore(f.db)
	_, err := st.Upsert(f.user.ID, 0, schedule.Shift{Start: "09:00", End: "13:00"}, nil, true)
	require.NoError(t, err)

	f.at(t, monday, "10:00")
	f.sched.RunTick(context.Background())
	assert.Empty(t, f.gw.sent)
}
