package birthday_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/birthday-engine/birthday"
)

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func TestAge(t *testing.T) {
	tests := []struct {
		name string
		born time.Time
		want int
	}{
		{"birthday already passed this year", time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), 36},
		{"birthday is today", time.Date(2000, time.October, 19, 0, 0, 0, 0, time.UTC), 26},
		{"birthday tomorrow", time.Date(2000, time.October, 20, 0, 0, 0, 0, time.UTC), 25},
		{"later month", time.Date(2000, time.December, 1, 0, 0, 0, 0, time.UTC), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, birthday.Age(tt.born, now))
		})
	}
}

func TestParseBirthdate_Accepts(t *testing.T) {
	born, age, err := birthday.ParseBirthdate("15/06/1990 that's me", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), born)
	assert.Equal(t, 36, age)
}

func TestParseBirthdate_Boundaries(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		// Turned 13 today: accepted.
		{"19/10/2013", nil},
		// Turns 13 tomorrow, still 12: rejected.
		{"20/10/2013", birthday.ErrTooYoung},
		// Exactly 122: accepted.
		{"19/10/1904", nil},
		// 122 turned 123 yesterday: rejected.
		{"18/10/1903", birthday.ErrTooOld},
		{"20/10/2026", birthday.ErrFutureDate},
		{"01/01/2999", birthday.ErrFutureDate},
		{"31/02/1990", birthday.ErrInvalidDate},
		{"00/01/1990", birthday.ErrInvalidDate},
		{"1990-06-15", birthday.ErrInvalidDate},
		{"", birthday.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, _, err := birthday.ParseBirthdate(tt.input, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			assert.True(t, birthday.IsUserInputError(err))
		})
	}
}

func TestParseBirthdate_AgeWindowProperty(t *testing.T) {
	// Every day from 130 years ago to 5 years in the future: accepted exactly
	// when not in the future and 12 < age <= 122.
	start := time.Date(now.Year()-130, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(5, 0, 0)

	for day := start; day.Before(end); day = day.AddDate(0, 0, 7) {
		input := day.Format(birthday.InputLayout)
		_, age, err := birthday.ParseBirthdate(input, now)

		valid := !day.After(now) && age > birthday.MinAge && age <= birthday.MaxAge
		if valid {
			assert.NoError(t, err, input)
		} else {
			assert.Error(t, err, input)
		}
	}
}

func TestLooksLikeBirthdate(t *testing.T) {
	assert.True(t, birthday.LooksLikeBirthdate("15/06/1990"))
	assert.True(t, birthday.LooksLikeBirthdate("31/12/2001 thanks"))
	assert.False(t, birthday.LooksLikeBirthdate("hello 15/06/1990"))
	assert.False(t, birthday.LooksLikeBirthdate("15/13/1990"))
	assert.False(t, birthday.LooksLikeBirthdate("15-06-1990"))
}

func TestRecord_IsToday(t *testing.T) {
	rec := birthday.Record{Birthday: time.Date(1990, time.October, 19, 0, 0, 0, 0, time.UTC)}
	assert.True(t, rec.IsToday(now))
	assert.False(t, rec.IsToday(now.AddDate(0, 0, 1)))

	// 23:30 in UTC-5 is already the 20th in UTC.
	est := time.FixedZone("EST", -5*3600)
	assert.False(t, rec.IsToday(time.Date(2026, time.October, 19, 23, 30, 0, 0, est)))
}

func TestTable_Declaration(t *testing.T) {
	assert.Equal(t, "birthdays", birthday.Table.Name())
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS birthdays ("user_id" BIGINT NOT NULL, "birthday" TIMESTAMP NOT NULL, "has_role" BOOLEAN DEFAULT FALSE NOT NULL, PRIMARY KEY (user_id));`,
		birthday.Table.CreateStatement(true))
}
