// Package notify decides, idempotently, when to send each notification kind
// and dispatches through the configured gateways.
package notify

import (
	"context"
	"errors"
	"time"

	"fichador/hours"
	"fichador/ledger"
	"fichador/models"
	"fichador/schedule"
	"fichador/timeutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler runs the three notification jobs. Each run is a single
// synchronous pass over all enabled users; jobs are triggered externally
// (cron hitting the /tasks endpoints), never self-scheduled.
type Scheduler struct {
	db         *gorm.DB
	clock      *timeutil.Clock
	ledger     *ledger.Ledger
	hours      *hours.Aggregator
	schedules  *schedule.Store
	dispatcher *Dispatcher
	log        *zap.Logger

	// Overridable for tests; every job samples now exactly once per run so a
	// tick straddling local midnight sees one consistent "today".
	now func() time.Time
}

func NewScheduler(db *gorm.DB, clock *timeutil.Clock, led *ledger.Ledger, agg *hours.Aggregator, schedules *schedule.Store, dispatcher *Dispatcher, log *zap.Logger) *Scheduler {
	return &Scheduler{
		db:         db,
		clock:      clock,
		ledger:     led,
		hours:      agg,
		schedules:  schedules,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

// RunTick executes the frequent jobs: missed clock-ins and open-record
// reminders.
func (s *Scheduler) RunTick(ctx context.Context) {
	s.runMissedEntries(ctx)
	s.runOpenRecords(ctx)
}

func (s *Scheduler) enabledSettings() ([]models.NotificationSettings, error) {
	var settings []models.NotificationSettings
	err := s.db.Preload("User").Where("enabled = ?", true).Find(&settings).Error
	return settings, err
}

func (s *Scheduler) runMissedEntries(ctx context.Context) {
	now := s.now().UTC()
	local := s.clock.ToLocal(now)
	today := timeutil.DateOnly(local)
	day := timeutil.WeekdayIndex(local)

	settings, err := s.enabledSettings()
	if err != nil {
		s.log.Error("missed-entry job: load settings", zap.Error(err))
		return
	}

	for i := range settings {
		ns := &settings[i]
		sched, err := s.schedules.ForDay(ns.UserID, day)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			s.log.Error("missed-entry job: load schedule", zap.Uint("user_id", ns.UserID), zap.Error(err))
			continue
		}

		s.checkMissedShift(ctx, ns, sched.StartTime, KindMissedEntryShift1, now, today)
		if sched.HasSecondShift() {
			s.checkMissedShift(ctx, ns, sched.StartTime2, KindMissedEntryShift2, now, today)
		}
	}
}

// checkMissedShift evaluates one shift's missed-entry condition. The two
// shifts carry independent markers so both can fire on the same day.
func (s *Scheduler) checkMissedShift(ctx context.Context, ns *models.NotificationSettings, start string, kind Kind, now, today time.Time) {
	startUTC, err := s.clock.Combine(today, start)
	if err != nil {
		s.log.Error("missed-entry job: bad schedule time", zap.Uint("user_id", ns.UserID), zap.String("start", start), zap.Error(err))
		return
	}
	if now.Before(startUTC.Add(time.Duration(ns.MissedEntryAfterMin) * time.Minute)) {
		return
	}

	marker, column := ns.LastMissedEntrySent1, "last_missed_entry_sent_1"
	if kind == KindMissedEntryShift2 {
		marker, column = ns.LastMissedEntrySent2, "last_missed_entry_sent_2"
	}
	if timeutil.SameDatePtr(marker, today) {
		return
	}

	// A first-shift clock-in must not suppress the second shift's alert, so
	// shift 2 only counts entries at or after its own start.
	var clockedIn bool
	if kind == KindMissedEntryShift2 {
		clockedIn, err = s.ledger.HasEntrySince(ns.UserID, today, startUTC)
	} else {
		clockedIn, err = s.ledger.HasRecordOn(ns.UserID, today)
	}
	if err != nil {
		s.log.Error("missed-entry job: ledger lookup", zap.Uint("user_id", ns.UserID), zap.Error(err))
		return
	}
	if clockedIn {
		return
	}

	s.sendAndStamp(ctx, ns, missedEntryMessage(kind, start), column, today)
}

func (s *Scheduler) runOpenRecords(ctx context.Context) {
	now := s.now().UTC()
	local := s.clock.ToLocal(now)
	today := timeutil.DateOnly(local)
	day := timeutil.WeekdayIndex(local)

	recs, err := s.ledger.OpenRecords()
	if err != nil {
		s.log.Error("open-record job: load open records", zap.Error(err))
		return
	}

	for i := range recs {
		rec := &recs[i]

		var ns models.NotificationSettings
		err := s.db.Where("user_id = ? AND enabled = ?", rec.UserID, true).First(&ns).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			s.log.Error("open-record job: load settings", zap.Uint("user_id", rec.UserID), zap.Error(err))
			continue
		}
		if timeutil.SameDatePtr(ns.LastOpenRecordSent, today) {
			continue
		}

		// Two OR'd triggers; whichever holds first wins, one send per day
		// either way.
		openFor := now.Sub(timeutil.AssumeUTC(rec.EntryTime))
		triggered := openFor >= time.Duration(ns.OpenRecordMaxMin)*time.Minute
		if !triggered {
			if sched, err := s.schedules.ForDay(rec.UserID, day); err == nil {
				if endUTC, err := s.clock.Combine(today, sched.LastEnd()); err == nil {
					triggered = !now.Before(endUTC.Add(time.Duration(ns.EndPassedMin) * time.Minute))
				}
			}
		}
		if !triggered {
			continue
		}

		ns.User = rec.User
		s.sendAndStamp(ctx, &ns, openRecordMessage(openFor), "last_open_record_sent", today)
	}
}

// RunWeekly executes the weekly summary job.
func (s *Scheduler) RunWeekly(ctx context.Context) {
	now := s.now().UTC()
	local := s.clock.ToLocal(now)
	today := timeutil.DateOnly(local)

	settings, err := s.enabledSettings()
	if err != nil {
		s.log.Error("weekly job: load settings", zap.Error(err))
		return
	}

	for i := range settings {
		ns := &settings[i]
		if timeutil.WeekdayIndex(local) != ns.WeeklySummaryDay {
			continue
		}
		summaryM, err := timeutil.ParseClock(ns.WeeklySummaryTime)
		if err != nil {
			s.log.Error("weekly job: bad summary time", zap.Uint("user_id", ns.UserID), zap.Error(err))
			continue
		}
		if timeutil.MinutesOfDay(local) < summaryM {
			continue
		}
		if timeutil.SameDatePtr(ns.LastWeeklySent, today) {
			continue
		}

		worked, err := s.hours.WorkedAllTime(ns.UserID)
		if err != nil {
			s.log.Error("weekly job: aggregate hours", zap.Uint("user_id", ns.UserID), zap.Error(err))
			continue
		}
		required := time.Duration(ns.User.TotalHoursRequired * float64(time.Hour))
		remaining := required - worked
		if remaining < 0 {
			remaining = 0
		}

		s.sendAndStamp(ctx, ns, weeklySummaryMessage(worked, remaining), "last_weekly_sent", today)
	}
}

// sendAndStamp performs the decide-send-stamp sequence in one per-user
// transaction, re-reading the marker inside it so an overlapping tick sees a
// just-written stamp before sending again. A dispatch failure rolls back with
// the marker untouched and the next tick retries; one user's failure never
// aborts the batch.
func (s *Scheduler) sendAndStamp(ctx context.Context, ns *models.NotificationSettings, msg Message, column string, today time.Time) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var fresh models.NotificationSettings
		if err := tx.First(&fresh, ns.ID).Error; err != nil {
			return err
		}
		if timeutil.SameDatePtr(markerFor(&fresh, column), today) {
			return nil
		}
		if err := s.dispatcher.Send(ctx, &ns.User, msg); err != nil {
			return err
		}
		return tx.Model(&fresh).Update(column, today).Error
	})
	if err != nil {
		s.log.Warn("notification not sent, will retry next tick",
			zap.Uint("user_id", ns.UserID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err))
		return
	}
	s.log.Info("notification sent",
		zap.Uint("user_id", ns.UserID),
		zap.String("kind", string(msg.Kind)))
}

func markerFor(ns *models.NotificationSettings, column string) *time.Time {
	switch column {
	case "last_missed_entry_sent_1":
		return ns.LastMissedEntrySent1
	case "last_missed_entry_sent_2":
		return ns.LastMissedEntrySent2
	case "last_open_record_sent":
		return ns.LastOpenRecordSent
	case "last_weekly_sent":
		return ns.LastWeeklySent
	}
	return nil
}
