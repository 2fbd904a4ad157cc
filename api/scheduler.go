/*
scheduler.go - Pickup reminder scheduler

PURPOSE:
  Periodically sweeps accepted agreements and reminds both sides of pickups
  that are due today or overdue (still scheduled on a past date). The sweep
  only reads; it never changes an agreement.

DESIGN:
  - Driven by a cron expression (robfig/cron), default "0 7 * * *"
  - Evaluated in the engine's time zone
  - One notice per due or overdue occurrence, sent through the Notifier
  - The last run is kept for the admin endpoint

USAGE:
  scheduler := NewReminderScheduler(svc, notifier, "0 7 * * *", log)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReminders endpoint (manual sweep)
  - collection/classify.go: Timeline and Overdue
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/collection"
)

// ReminderRun summarizes one sweep.
type ReminderRun struct {
	RanAt    time.Time
	Checked  int
	DueToday int
	Overdue  int
}

// ReminderScheduler sends reminders for due and overdue pickups.
type ReminderScheduler struct {
	Service  *collection.Service
	Notifier collection.Notifier
	Spec     string
	Location *time.Location
	Log      logrus.FieldLogger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	lastRun ReminderRun
}

// NewReminderScheduler creates a scheduler running on spec in UTC.
func NewReminderScheduler(svc *collection.Service, notifier collection.Notifier, spec string, log logrus.FieldLogger) *ReminderScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReminderScheduler{
		Service:  svc,
		Notifier: notifier,
		Spec:     spec,
		Location: time.UTC,
		Log:      log.WithField("component", "reminders"),
	}
}

// Start registers the sweep with cron and starts it.
func (rs *ReminderScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(rs.Location))
	id, err := c.AddFunc(rs.Spec, func() {
		if _, err := rs.RunNow(context.Background()); err != nil {
			rs.Log.WithError(err).Error("reminder sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", rs.Spec, err)
	}
	c.Start()

	rs.cron = c
	rs.entry = id
	rs.Log.WithFields(logrus.Fields{"spec": rs.Spec, "next_run": c.Entry(id).Next}).Info("scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	rs.Log.Info("scheduler stopped")
}

// NextRun is when cron fires next, or the zero time when not started.
func (rs *ReminderScheduler) NextRun() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cron == nil {
		return time.Time{}
	}
	return rs.cron.Entry(rs.entry).Next
}

// LastRun returns the summary of the most recent sweep.
func (rs *ReminderScheduler) LastRun() ReminderRun {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun
}

// RunNow performs one sweep immediately.
func (rs *ReminderScheduler) RunNow(ctx context.Context) (ReminderRun, error) {
	run := ReminderRun{RanAt: rs.Service.Now()}
	today := rs.Service.Today()

	snaps, err := rs.Service.List(ctx, collection.AgreementAccepted)
	if err != nil {
		return run, fmt.Errorf("list accepted agreements: %w", err)
	}

	for _, snap := range snaps {
		run.Checked++
		tl := snap.Timeline(today)

		if next := tl.NextDue; next != nil && next.Date.Equal(today) {
			run.DueToday++
			rs.remind(ctx, snap.Agreement, fmt.Sprintf("Pickup today at %s", next.Time))
		}
		for _, o := range tl.Overdue() {
			run.Overdue++
			rs.remind(ctx, snap.Agreement, fmt.Sprintf("Pickup of %s is overdue: register or cancel it", o.Date))
		}
	}

	rs.mu.Lock()
	rs.lastRun = run
	rs.mu.Unlock()

	rs.Log.WithFields(logrus.Fields{
		"checked":   run.Checked,
		"due_today": run.DueToday,
		"overdue":   run.Overdue,
	}).Info("reminder sweep completed")
	return run, nil
}

func (rs *ReminderScheduler) remind(ctx context.Context, a collection.Agreement, msg string) {
	if rs.Notifier == nil {
		return
	}
	rs.Notifier.Notify(ctx, collection.Notice{Kind: collection.NoticeReminder, AgreementID: a.ID, Message: msg})
}
