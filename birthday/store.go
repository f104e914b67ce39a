package birthday

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/birthday-engine/store/sqlite"
)

// sqliteClockLayout is how a fixed clock is bound in place of 'now'.
const sqliteClockLayout = "2006-01-02 15:04:05"

// Store runs the birthday queries over the statement executor.
//
// "Today" is computed by SQLite itself (strftime over 'now', which is UTC),
// so the comparison never depends on the host's timezone.
type Store struct {
	db    *sqlite.DB
	clock func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock makes the store compare against now() instead of SQLite's clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = func() string { return now().UTC().Format(sqliteClockLayout) }
	}
}

// NewStore returns a Store over db. The birthdays table must already exist.
func NewStore(db *sqlite.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:    db,
		clock: func() string { return "now" },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying executor.
func (s *Store) DB() *sqlite.DB { return s.db }

const selectColumns = "SELECT user_id, birthday, has_role FROM birthdays"

// Find returns the record for userID, or nil if there is none.
func (s *Store) Find(ctx context.Context, userID int64) (*Record, error) {
	row, err := s.db.FetchOne(ctx, selectColumns+" WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find birthday: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	rec, err := recordFromRow(*row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert stores a new record. It fails with ErrAlreadyRegistered if userID
// already has one; existing rows are never overwritten.
func (s *Store) Insert(ctx context.Context, userID int64, born time.Time, hasRole bool) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO birthdays (user_id, birthday, has_role) VALUES (?, ?, ?)",
		userID, born.UTC(), hasRole,
	)
	if err != nil {
		if sqlite.IsConstraintError(err) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to insert birthday: %w", err)
	}
	return nil
}

// SetHasRole updates the role flag. Only the reconciliation scheduler calls it.
func (s *Store) SetHasRole(ctx context.Context, userID int64, hasRole bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE birthdays SET has_role = ? WHERE user_id = ?", hasRole, userID)
	if err != nil {
		return fmt.Errorf("failed to update has_role: %w", err)
	}
	return nil
}

// SetBirthday overrides a stored birthdate.
func (s *Store) SetBirthday(ctx context.Context, userID int64, born time.Time) sqlite.Result {
	return s.db.Execute(ctx, "UPDATE birthdays SET birthday = ? WHERE user_id = ?", born.UTC(), userID)
}

// Delete removes one member's record.
func (s *Store) Delete(ctx context.Context, userID int64) sqlite.Result {
	return s.db.Execute(ctx, "DELETE FROM birthdays WHERE user_id = ?", userID)
}

// DeleteAll removes every record.
func (s *Store) DeleteAll(ctx context.Context) sqlite.Result {
	return s.db.Execute(ctx, "DELETE FROM birthdays")
}

// List returns every record ordered by user id.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, selectColumns+" ORDER BY user_id")
}

// FindBirthdaysToday returns records whose month and day match today (UTC).
// With excludeRoleAssigned, records already holding the role are skipped.
func (s *Store) FindBirthdaysToday(ctx context.Context, excludeRoleAssigned bool) ([]Record, error) {
	query := selectColumns + " WHERE strftime('%m-%d', birthday) = strftime('%m-%d', ?)"
	if excludeRoleAssigned {
		query += " AND has_role = 0"
	}
	return s.query(ctx, query+" ORDER BY user_id", s.clock())
}

// FindRoleAssignedButNotToday returns records holding the role whose
// birthday is no longer today.
func (s *Store) FindRoleAssignedButNotToday(ctx context.Context) ([]Record, error) {
	return s.query(ctx, selectColumns+
		" WHERE has_role = 1 AND strftime('%m-%d', birthday) != strftime('%m-%d', ?) ORDER BY user_id",
		s.clock())
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.Fetch(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query birthdays: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromRow(row sqlite.Row) (Record, error) {
	var (
		rec Record
		err error
	)
	if rec.UserID, err = row.Int64("user_id"); err != nil {
		return rec, err
	}
	if rec.Birthday, err = row.Time("birthday"); err != nil {
		return rec, err
	}
	if rec.HasRole, err = row.Bool("has_role"); err != nil {
		return rec, err
	}
	return rec, nil
}
