/*
dto.go - JSON shapes of the admin API

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Wrappers

Ids are strings: Discord snowflakes exceed the integer precision of
JavaScript clients.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"strconv"
	"time"

	"github.com/warp/birthday-engine/birthday"
)

// BirthdayDTO is one stored birthday.
type BirthdayDTO struct {
	UserID   string `json:"user_id"`
	Birthday string `json:"birthday"`
	Age      int    `json:"age"`
	HasRole  bool   `json:"has_role"`
	IsToday  bool   `json:"is_today"`
}

// ListBirthdaysResponse wraps the list endpoint.
type ListBirthdaysResponse struct {
	Birthdays []BirthdayDTO `json:"birthdays"`
	Count     int           `json:"count"`
}

// HealthDTO reports liveness.
type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBirthdayDTO(rec birthday.Record, now time.Time) BirthdayDTO {
	return BirthdayDTO{
		UserID:   strconv.FormatInt(rec.UserID, 10),
		Birthday: rec.Birthday.UTC().Format(time.DateOnly),
		Age:      birthday.Age(rec.Birthday, now),
		HasRole:  rec.HasRole,
		IsToday:  rec.IsToday(now),
	}
}
