package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/factory"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/rewards"
	"github.com/warp/collection-engine/store/sqlstore"
)

// Context is shared by every command.
type Context struct {
	Out   io.Writer
	Clock generic.Clock
	Log   logrus.FieldLogger
}

func newContext(tz string, out io.Writer) (*Context, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Context{Out: out, Clock: generic.SystemClock(loc), Log: log}, nil
}

func (c *Context) today() generic.Date {
	return generic.DateOf(c.Clock())
}

// parseDay accepts YYYY-MM-DD or "today".
func (c *Context) parseDay(s string) (generic.Date, error) {
	if s == "" || s == "today" {
		return c.today(), nil
	}
	return generic.ParseDate(s)
}

// DBFlags selects the database of a running server.
type DBFlags struct {
	DB     string `help:"Database DSN (SQLite file path or postgres URL)." env:"DATABASE_URL" required:""`
	Driver string `help:"Database driver." enum:"sqlite3,postgres" default:"sqlite3" env:"DB_DRIVER"`
}

func (f DBFlags) open() (*sqlstore.Store, error) {
	store, err := sqlstore.Open(sqlstore.Dialect(f.Driver), f.DB)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// =============================================================================
// PREVIEW
// =============================================================================

type PreviewCmd struct {
	Frequency string `help:"Recurrence frequency." enum:"weekly,biweekly,monthly" default:"weekly"`
	Start     string `help:"First date (YYYY-MM-DD or 'today')." default:"today"`
	N         int    `short:"n" help:"Number of dates to print." default:"5"`
}

func (c *PreviewCmd) Run(ctx *Context) error {
	if c.N < 1 {
		return fmt.Errorf("-n must be at least 1")
	}
	start, err := ctx.parseDay(c.Start)
	if err != nil {
		return err
	}
	for i, d := range collection.PreviewDates(start, collection.Frequency(c.Frequency), c.N) {
		fmt.Fprintf(ctx.Out, "%2d. %s  %s\n", i+1, d, d.Weekday())
	}
	return nil
}

// =============================================================================
// PERIOD
// =============================================================================

type PeriodCmd struct {
	Time string `arg:"" help:"Time of day (HH:MM)."`
	Date string `help:"Also report whether now falls within the period on this date (YYYY-MM-DD or 'today')."`
}

func (c *PeriodCmd) Run(ctx *Context) error {
	if !collection.ValidTimeOfDay(c.Time) {
		return fmt.Errorf("invalid time %q (use HH:MM)", c.Time)
	}
	period := collection.PeriodOf(c.Time)
	fmt.Fprintf(ctx.Out, "%s is in the %s\n", c.Time, period)

	if c.Date == "" {
		return nil
	}
	date, err := ctx.parseDay(c.Date)
	if err != nil {
		return err
	}
	if collection.IsNowWithinPeriod(period, date, ctx.Clock()) {
		fmt.Fprintf(ctx.Out, "now is within the %s of %s\n", period, date)
	} else {
		fmt.Fprintf(ctx.Out, "now is outside the %s of %s\n", period, date)
	}
	return nil
}

// =============================================================================
// TIMELINE
// =============================================================================

type TimelineCmd struct {
	ID     string `arg:"" optional:"" help:"Agreement id in the database."`
	File   string `help:"Agreement JSON file to simulate instead of reading the database." type:"existingfile"`
	Accept bool   `help:"Accept the simulated agreement so its first occurrence is seeded."`
	DB     string `help:"Database DSN (SQLite file path or postgres URL)." env:"DATABASE_URL"`
	Driver string `help:"Database driver." enum:"sqlite3,postgres" default:"sqlite3" env:"DB_DRIVER"`
}

func (c *TimelineCmd) Run(ctx *Context) error {
	bg := context.Background()

	var (
		repo collection.Repository
		id   collection.AgreementID
	)
	switch {
	case c.File != "":
		data, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", c.File, err)
		}
		a, err := factory.New(nil).ParseAgreement(data)
		if err != nil {
			return err
		}
		mem := collection.NewMemoryRepository()
		svc := c.service(ctx, mem)
		snap, err := svc.CreateAgreement(bg, a)
		if err != nil {
			return err
		}
		if c.Accept {
			if _, err := svc.Accept(bg, snap.Agreement.ID); err != nil {
				return err
			}
		}
		repo, id = mem, snap.Agreement.ID
	case c.ID != "" && c.DB != "":
		store, err := DBFlags{DB: c.DB, Driver: c.Driver}.open()
		if err != nil {
			return err
		}
		defer store.Close()
		repo, id = store, collection.AgreementID(c.ID)
	default:
		return fmt.Errorf("give an agreement id with --db, or --file")
	}

	snap, tl, err := c.service(ctx, repo).Timeline(bg, id)
	if err != nil {
		return err
	}
	printTimeline(ctx.Out, snap, tl, ctx.today())
	return nil
}

func (c *TimelineCmd) service(ctx *Context, repo collection.Repository) *collection.Service {
	svc := collection.NewService(repo, ctx.Log)
	svc.Clock = ctx.Clock
	return svc
}

func printTimeline(out io.Writer, snap collection.Snapshot, tl collection.Timeline, today generic.Date) {
	a := snap.Agreement
	fmt.Fprintf(out, "Agreement %s (%s)\n", a.ID, a.Status)
	fmt.Fprintf(out, "  %s from %s, %s at %s\n", a.Frequency, a.StartDate, a.Period, a.OccurrenceTime())
	fmt.Fprintf(out, "  requester %s, collector %s\n\n", a.RequesterID, a.CollectorID)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKET\tDATE\tTIME\tSTATUS\tID")
	if tl.NextDue != nil {
		row(w, "next", *tl.NextDue, today)
	}
	for _, o := range tl.Future {
		row(w, "future", o, today)
	}
	for _, o := range tl.Past {
		row(w, "past", o, today)
	}
	w.Flush()
}

func row(w io.Writer, bucket string, o collection.Occurrence, today generic.Date) {
	status := string(o.Status)
	if o.Status == collection.OccurrenceScheduled && o.Date.Before(today) {
		status += " (overdue)"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", bucket, o.Date, o.Time, status, o.ID)
}

// =============================================================================
// AGREEMENTS
// =============================================================================

type AgreementsCmd struct {
	DBFlags `embed:""`
	Status string `help:"Only agreements with this status (pending, accepted, declined, cancelled)."`
}

func (c *AgreementsCmd) Run(ctx *Context) error {
	store, err := c.open()
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.List(context.Background(), collection.AgreementStatus(strings.ToLower(c.Status)))
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(ctx.Out, "No agreements found.")
		return nil
	}

	today := ctx.today()
	w := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tFREQUENCY\tREQUESTER\tCOLLECTOR\tNEXT DUE")
	for _, s := range snaps {
		next := "-"
		if tl := s.Timeline(today); tl.NextDue != nil {
			next = tl.NextDue.Date.String() + " " + tl.NextDue.Time
		}
		a := s.Agreement
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Status, a.Frequency, a.RequesterID, a.CollectorID, next)
	}
	return w.Flush()
}

// =============================================================================
// REWARDS
// =============================================================================

type RewardsCmd struct {
	DBFlags `embed:""`
	Entity  string `arg:"" help:"Requester or collector id."`
	History bool   `help:"Also list every point transaction."`
}

func (c *RewardsCmd) Run(ctx *Context) error {
	store, err := c.open()
	if err != nil {
		return err
	}
	defer store.Close()

	bg := context.Background()
	program := rewards.NewProgram(generic.NewLedger(store.Ledger()), rewards.DefaultRules(), ctx.Log)
	entity := generic.EntityID(c.Entity)

	sum, err := program.Summary(bg, entity)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s: %s, level %s\n", entity, sum.Balance, sum.Level.Name)
	if sum.NextLevel != nil {
		fmt.Fprintf(ctx.Out, "  %s to %s\n", sum.ToNextLevel, sum.NextLevel.Name)
	}

	if !c.History {
		return nil
	}
	txs, err := program.History(bg, entity)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out)
	w := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tPOINTS\tREASON")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.EffectiveAt, tx.Type, tx.Delta.Value, tx.Reason)
	}
	return w.Flush()
}
