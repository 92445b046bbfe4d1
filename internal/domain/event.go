package domain

import (
	"strings"
	"time"
)

// EventDateLayout is the wire format for event dates: ISO-8601 without a zone,
// fractional seconds only when present.
const EventDateLayout = "2006-01-02T15:04:05.999999"

// acceptedDateLayouts are the inbound formats Postgres would also accept for
// a TIMESTAMP column. A zone offset is dropped and the wall-clock time kept,
// as Postgres does for TIMESTAMP WITHOUT TIME ZONE.
var acceptedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Event is the domain record whose creation triggers a notification.
type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	EventDate   time.Time `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// FormattedDate renders EventDate in EventDateLayout.
func (e *Event) FormattedDate() string {
	return FormatEventDate(e.EventDate)
}

// CreateEventRequest is the inbound payload for POST /events.
type CreateEventRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	EventDate   string  `json:"event_date"`
}

// Validate checks required fields and returns the parsed event date.
func (r *CreateEventRequest) Validate() (time.Time, error) {
	if strings.TrimSpace(r.Name) == "" {
		return time.Time{}, ErrInvalidName
	}
	return ParseEventDate(r.EventDate)
}

// ParseEventDate accepts any of the supported layouts.
func ParseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidEventDate
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t), nil
		}
	}
	return time.Time{}, ErrInvalidEventDate
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func FormatEventDate(t time.Time) string {
	return t.UTC().Format(EventDateLayout)
}
