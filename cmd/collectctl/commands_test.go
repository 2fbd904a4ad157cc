package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/rewards"
	"github.com/warp/collection-engine/store/sqlstore"
)

func testContext(t *testing.T, now string) (*Context, *bytes.Buffer) {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", now)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	return &Context{Out: &out, Clock: generic.FixedClock(ts), Log: log}, &out
}

// seedDatabase stores one weekly agreement with a collected first pickup.
func seedDatabase(t *testing.T, ctx *Context) (string, collection.AgreementID) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.db")
	store, err := sqlstore.Open(sqlstore.DialectSQLite, path)
	require.NoError(t, err)
	defer store.Close()

	svc := collection.NewService(store, ctx.Log)
	svc.Clock = ctx.Clock
	svc.Events = rewards.NewProgram(generic.NewLedger(store.Ledger()), rewards.DefaultRules(), ctx.Log)

	bg := context.Background()
	snap, err := svc.CreateAgreement(bg, collection.Agreement{
		RequesterID:   "req-1",
		CollectorID:   "col-1",
		Frequency:     collection.FrequencyWeekly,
		Period:        collection.PeriodMorning,
		PreferredTime: "09:00",
		StartDate:     generic.MustParseDate("2025-01-06"),
		MaterialsTemplate: []collection.Material{
			{Type: "paper", Quantity: generic.NewAmount(5, generic.UnitKilograms)},
		},
	})
	require.NoError(t, err)
	res, err := svc.Accept(bg, snap.Agreement.ID)
	require.NoError(t, err)
	_, err = svc.Register(bg, snap.Agreement.ID, collection.RegisterInput{
		OccurrenceID: res.Created[0],
		Materials: []collection.Material{
			{Type: "paper", Quantity: generic.NewAmount(6, generic.UnitKilograms)},
		},
	})
	require.NoError(t, err)
	return path, snap.Agreement.ID
}

func TestPreviewCmd(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 08:00")

	cmd := PreviewCmd{Frequency: "monthly", Start: "2025-01-31", N: 3}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, " 1. 2025-01-31  Friday\n 2. 2025-03-03  Monday\n 3. 2025-04-03  Thursday\n", out.String())
}

func TestPreviewCmd_DefaultsToToday(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 08:00")

	cmd := PreviewCmd{Frequency: "biweekly", Start: "today", N: 2}
	require.NoError(t, cmd.Run(ctx))

	assert.Contains(t, out.String(), "2025-01-06")
	assert.Contains(t, out.String(), "2025-01-20")
}

func TestPreviewCmd_Rejections(t *testing.T) {
	ctx, _ := testContext(t, "2025-01-06 08:00")

	assert.Error(t, (&PreviewCmd{Frequency: "weekly", Start: "today", N: 0}).Run(ctx))
	assert.Error(t, (&PreviewCmd{Frequency: "weekly", Start: "06/01/2025", N: 3}).Run(ctx))
}

func TestPeriodCmd(t *testing.T) {
	// GIVEN: it is 20:00 on Jan 6
	ctx, out := testContext(t, "2025-01-06 20:00")

	// WHEN: classifying 19:30 and checking the same day
	cmd := PeriodCmd{Time: "19:30", Date: "2025-01-06"}
	require.NoError(t, cmd.Run(ctx))

	// THEN: it is night and now is inside it
	assert.Equal(t, "19:30 is in the night\nnow is within the night of 2025-01-06\n", out.String())
}

func TestPeriodCmd_OtherDay(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 20:00")

	require.NoError(t, (&PeriodCmd{Time: "07:15", Date: "2025-01-07"}).Run(ctx))

	assert.Contains(t, out.String(), "07:15 is in the morning")
	assert.Contains(t, out.String(), "now is outside the morning of 2025-01-07")
}

func TestPeriodCmd_InvalidTime(t *testing.T) {
	ctx, _ := testContext(t, "2025-01-06 20:00")

	assert.Error(t, (&PeriodCmd{Time: "25:00"}).Run(ctx))
}

func TestTimelineCmd_File(t *testing.T) {
	// GIVEN: an agreement file starting today
	ctx, out := testContext(t, "2025-01-06 08:00")
	path := filepath.Join(t.TempDir(), "agreement.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"requester_id": "req-1",
		"collector_id": "col-1",
		"frequency": "weekly",
		"preferred_time": "09:00",
		"start_date": "2025-01-06",
		"materials": [{"type": "paper", "quantity": 5}]
	}`), 0o644))

	// WHEN: simulating acceptance
	cmd := TimelineCmd{File: path, Accept: true}
	require.NoError(t, cmd.Run(ctx))

	// THEN: the first pickup is next due today
	assert.Contains(t, out.String(), "(accepted)")
	assert.Contains(t, out.String(), "weekly from 2025-01-06, morning at 09:00")
	assert.Regexp(t, `next\s+2025-01-06\s+09:00\s+scheduled`, out.String())
}

func TestTimelineCmd_FilePending(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 08:00")
	path := filepath.Join(t.TempDir(), "agreement.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"requester_id": "req-1",
		"collector_id": "col-1",
		"frequency": "monthly",
		"period": "night",
		"start_date": "2025-02-01"
	}`), 0o644))

	require.NoError(t, (&TimelineCmd{File: path}).Run(ctx))

	assert.Contains(t, out.String(), "(pending)")
	assert.NotContains(t, out.String(), "next ")
}

func TestTimelineCmd_Database(t *testing.T) {
	// GIVEN: a stored agreement whose first pickup was collected
	ctx, out := testContext(t, "2025-01-06 10:00")
	db, id := seedDatabase(t, ctx)

	// WHEN: printing its timeline
	cmd := TimelineCmd{ID: string(id), DB: db, Driver: "sqlite3"}
	require.NoError(t, cmd.Run(ctx))

	// THEN: the collected pickup is past and the rollover is next
	assert.Regexp(t, `next\s+2025-01-13\s+09:00\s+scheduled`, out.String())
	assert.Regexp(t, `past\s+2025-01-06\s+09:00\s+collected`, out.String())
}

func TestTimelineCmd_NeedsSource(t *testing.T) {
	ctx, _ := testContext(t, "2025-01-06 10:00")

	assert.Error(t, (&TimelineCmd{ID: "agr-1"}).Run(ctx))
	assert.Error(t, (&TimelineCmd{}).Run(ctx))
}

func TestAgreementsCmd(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 10:00")
	db, id := seedDatabase(t, ctx)

	cmd := AgreementsCmd{DBFlags: DBFlags{DB: db, Driver: "sqlite3"}, Status: "accepted"}
	require.NoError(t, cmd.Run(ctx))

	assert.Contains(t, out.String(), string(id))
	assert.Contains(t, out.String(), "2025-01-13 09:00")
}

func TestAgreementsCmd_Empty(t *testing.T) {
	ctx, out := testContext(t, "2025-01-06 10:00")
	db, _ := seedDatabase(t, ctx)

	cmd := AgreementsCmd{DBFlags: DBFlags{DB: db, Driver: "sqlite3"}, Status: "declined"}
	require.NoError(t, cmd.Run(ctx))

	assert.Equal(t, "No agreements found.\n", out.String())
}

func TestRewardsCmd(t *testing.T) {
	// GIVEN: a collected pickup credited to both sides
	ctx, out := testContext(t, "2025-01-06 10:00")
	db, _ := seedDatabase(t, ctx)

	// WHEN: printing the collector's points with history
	cmd := RewardsCmd{DBFlags: DBFlags{DB: db, Driver: "sqlite3"}, Entity: "col-1", History: true}
	require.NoError(t, cmd.Run(ctx))

	// THEN: balance, level and the earn transaction are listed
	assert.Contains(t, out.String(), "col-1: 10 points, level seed")
	assert.Contains(t, out.String(), "40 points to sprout")
	assert.Regexp(t, `2025-01-06\s+earn\s+10`, out.String())
}
