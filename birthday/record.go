/*
Package birthday holds the birthday record, its table and the queries the
reconciliation loop and chat commands need.

PURPOSE:
  One row per registered member: user id (primary key), birthdate, and
  whether the birthday role is currently held because of this row.

OWNERSHIP:
  birthday  - written by registration, changed only by the owner override
  has_role  - written only by the reconciliation scheduler
  rows      - deleted only by owner commands

SEE ALSO:
  - store.go: queries
  - bot/scheduler.go: the only writer of has_role
*/
package birthday

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/warp/birthday-engine/schema"
)

const (
	// InputLayout is the accepted registration format.
	InputLayout = "02/01/2006"

	// MaxAge is the oldest verified human lifespan.
	MaxAge = 122

	// MinAge is the highest age still rejected as underage.
	MinAge = 12
)

// Table is the birthdays declaration, registered at package initialization.
var Table = schema.Register("Birthdays", []*schema.Column{
	schema.MustColumn("user_id", "BIGINT", schema.NotNull(), schema.PrimaryKey()),
	schema.MustColumn("birthday", "TIMESTAMP", schema.NotNull()),
	schema.MustColumn("has_role", "BOOLEAN", schema.NotNull(), schema.Default(false)),
})

// Record is one member's stored birthday.
type Record struct {
	UserID   int64
	Birthday time.Time
	HasRole  bool
}

// IsToday reports whether the record's month and day match now in UTC.
func (r Record) IsToday(now time.Time) bool {
	now = now.UTC()
	b := r.Birthday.UTC()
	return b.Month() == now.Month() && b.Day() == now.Day()
}

// birthdatePattern matches a DD/MM/YYYY prefix.
var birthdatePattern = regexp.MustCompile(`^(0[0-9]|1[0-9]|2[0-9]|3[0-1])/(0[1-9]|1[0-2])/([1-2][0-9]{3})`)

// LooksLikeBirthdate is the cheap pre-filter used while waiting for a reply.
func LooksLikeBirthdate(content string) bool {
	return birthdatePattern.MatchString(content)
}

// Age returns completed years between born and now.
func Age(born, now time.Time) int {
	born, now = born.UTC(), now.UTC()
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}

// ParseDate parses the first word of input as DD/MM/YYYY in UTC, without
// any plausibility checks.
func ParseDate(input string) (time.Time, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(InputLayout, fields[0], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, fields[0])
	}
	return t, nil
}

// ParseBirthdate parses and validates a registration reply. It returns the
// date and the age it implies at now.
func ParseBirthdate(input string, now time.Time) (time.Time, int, error) {
	born, err := ParseDate(input)
	if err != nil {
		return time.Time{}, 0, err
	}

	age := Age(born, now)
	switch {
	case born.After(now):
		return born, age, ErrFutureDate
	case age > MaxAge:
		return born, age, ErrTooOld
	case age <= MinAge:
		return born, age, ErrTooYoung
	}
	return born, age, nil
}
