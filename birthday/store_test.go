package birthday_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/birthday-engine/birthday"
	"github.com/warp/birthday-engine/schema"
	"github.com/warp/birthday-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// clock is a settable time source shared with the store under test.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestStore(t *testing.T, at time.Time) (*birthday.Store, *clock) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.True(t, schema.CreateAll(context.Background(), db, false, logger))

	c := &clock{t: at}
	return birthday.NewStore(db, birthday.WithClock(c.Now)), c
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func userIDs(records []birthday.Record) []int64 {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UserID)
	}
	return ids
}

// =============================================================================
// CRUD
// =============================================================================

func TestStore_InsertAndFind(t *testing.T) {
	store, _ := newTestStore(t, date(2026, time.October, 19))
	ctx := context.Background()

	rec, err := store.Find(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Insert(ctx, 100, date(1990, time.June, 15), false))

	rec, err = store.Find(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, rec)

	want := birthday.Record{UserID: 100, Birthday: date(1990, time.June, 15), HasRole: false}
	if diff := cmp.Diff(want, *rec); diff != "" {
		t.Errorf("Find() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_InsertTwice_Rejected(t *testing.T) {
	// GIVEN: A member already registered
	// WHEN: A second insert for the same member
	// THEN: ErrAlreadyRegistered, stored record untouched

	store, _ := newTestStore(t, date(2026, time.October, 19))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, 7, date(1990, time.June, 15), false))

	err := store.Insert(ctx, 7, date(1985, time.January, 1), true)
	assert.ErrorIs(t, err, birthday.ErrAlreadyRegistered)

	rec, err := store.Find(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, date(1990, time.June, 15), rec.Birthday)
	assert.False(t, rec.HasRole)
}

func TestStore_AdminOperations(t *testing.T) {
	store, _ := newTestStore(t, date(2026, time.October, 19))
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, store.Insert(ctx, id, date(1990, time.June, 15), false))
	}

	assert.Equal(t, "UPDATE 1", store.SetBirthday(ctx, 2, date(1991, time.July, 4)).String())
	assert.Equal(t, "UPDATE 0", store.SetBirthday(ctx, 99, date(1991, time.July, 4)).String())

	rec, err := store.Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, date(1991, time.July, 4), rec.Birthday)

	assert.Equal(t, "DELETE 1", store.Delete(ctx, 1).String())

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, userIDs(records))

	assert.Equal(t, "DELETE 2", store.DeleteAll(ctx).String())

	records, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// =============================================================================
// TODAY QUERIES
// =============================================================================

func TestStore_FindBirthdaysToday(t *testing.T) {
	store, _ := newTestStore(t, time.Date(2026, time.June, 15, 23, 59, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, 1, date(1990, time.June, 15), false))
	require.NoError(t, store.Insert(ctx, 2, date(1980, time.June, 15), true))
	require.NoError(t, store.Insert(ctx, 3, date(1990, time.June, 16), false))
	require.NoError(t, store.Insert(ctx, 4, date(1990, time.December, 15), false))

	today, err := store.FindBirthdaysToday(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, userIDs(today))

	all, err := store.FindBirthdaysToday(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, userIDs(all))
}

func TestStore_FindRoleAssignedButNotToday(t *testing.T) {
	store, c := newTestStore(t, date(2026, time.June, 15))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, 1, date(1990, time.June, 15), true))
	require.NoError(t, store.Insert(ctx, 2, date(1990, time.June, 14), true))
	require.NoError(t, store.Insert(ctx, 3, date(1990, time.June, 14), false))

	over, err := store.FindRoleAssignedButNotToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, userIDs(over))

	c.t = date(2026, time.June, 16)
	over, err = store.FindRoleAssignedButNotToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, userIDs(over))
}

func TestStore_SetHasRole(t *testing.T) {
	store, _ := newTestStore(t, date(2026, time.June, 15))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, 1, date(1990, time.June, 15), false))
	require.NoError(t, store.SetHasRole(ctx, 1, true))

	rec, err := store.Find(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.HasRole)

	today, err := store.FindBirthdaysToday(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, today)
}

func TestStore_EngineClockByDefault(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.True(t, schema.CreateAll(context.Background(), db, false, slog.New(slog.NewTextHandler(io.Discard, nil))))

	store := birthday.NewStore(db)
	ctx := context.Background()

	today := time.Now().UTC()
	if today.Month() == time.February && today.Day() == 29 {
		t.Skip("no leap day in the stored year")
	}
	require.NoError(t, store.Insert(ctx, 1, date(1990, today.Month(), today.Day()), false))

	got, err := store.FindBirthdaysToday(ctx, true)
	require.NoError(t, err)

	if time.Now().UTC().Day() != today.Day() {
		t.Skip("crossed UTC midnight during test")
	}
	assert.Equal(t, []int64{1}, userIDs(got))
}

// =============================================================================
// GENERATED DATA INVARIANTS
// =============================================================================

func TestStore_QueryInvariants_GeneratedData(t *testing.T) {
	// Random members, dates and flags: the grant query never returns a flagged
	// record, the revoke query never returns an unflagged or current one.

	faker := gofakeit.New(20260615)
	at := date(2026, time.June, 15)
	store, _ := newTestStore(t, at)
	ctx := context.Background()

	seen := map[int64]bool{}
	for len(seen) < 200 {
		id := faker.Int64()
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true

		born := faker.DateRange(date(1910, time.January, 1), date(2010, time.December, 31))
		born = date(born.Year(), born.Month(), born.Day())
		if faker.Bool() {
			// Pile extra records onto today's month/day.
			born = date(born.Year(), time.June, 15)
		}
		require.NoError(t, store.Insert(ctx, id, born, faker.Bool()))
	}

	today, err := store.FindBirthdaysToday(ctx, true)
	require.NoError(t, err)
	assert.NotEmpty(t, today)
	for _, r := range today {
		assert.False(t, r.HasRole)
		assert.True(t, r.IsToday(at))
	}

	over, err := store.FindRoleAssignedButNotToday(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, over)
	for _, r := range over {
		assert.True(t, r.HasRole)
		assert.False(t, r.IsToday(at))
	}
}
