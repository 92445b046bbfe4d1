// Package message defines the notification record that travels through the
// durable queue and its JSON encoding. Producer and consumer share it so the
// schema has exactly one definition.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notifyhub/event-notifier/internal/domain"
)

// ContentType is set on every published message.
const ContentType = "application/json"

// ErrMalformed wraps every decode failure so the consumer can classify it.
var ErrMalformed = errors.New("malformed notification message")

// Notification is the unit flowing through the channel.
// A nil Description means "no description"; an empty string is preserved.
type Notification struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	EventDate   string  `json:"event_date"`
}

// FromEvent derives a notification from an event that has already been
// committed; e.ID must be the store-assigned primary key.
func FromEvent(e *domain.Event) Notification {
	return Notification{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		EventDate:   e.FormattedDate(),
	}
}

// DescriptionOr returns the description or fallback when there is none.
func (n Notification) DescriptionOr(fallback string) string {
	if n.Description == nil {
		return fallback
	}
	return *n.Description
}

func Encode(n Notification) ([]byte, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification %d: %w", n.ID, err)
	}
	return body, nil
}

// Decode parses a message body. A missing or null description decodes to nil.
// Bodies without an id or name are rejected: the producer never emits them.
func Decode(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n.ID == 0 {
		return Notification{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if n.Name == "" {
		return Notification{}, fmt.Errorf("%w: missing name", ErrMalformed)
	}
	return n, nil
}
