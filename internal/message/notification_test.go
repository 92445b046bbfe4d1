package message_test

import (
	"errors"
	"testing"
	"time"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
)

func strPtr(s string) *string { return &s }

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   message.Notification
	}{
		{"with description", message.Notification{ID: 1, Name: "Launch", Description: strPtr("rocket"), EventDate: "2024-01-01T10:00:00"}},
		{"empty description", message.Notification{ID: 42, Name: "Launch", Description: strPtr(""), EventDate: "2024-01-01T10:00:00"}},
		{"no description", message.Notification{ID: 3, Name: "Standup", EventDate: "2024-03-05T09:30:00"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := message.Encode(tc.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := message.Decode(body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.ID != tc.in.ID || got.Name != tc.in.Name || got.EventDate != tc.in.EventDate {
				t.Fatalf("expected %+v, got %+v", tc.in, got)
			}
			if (got.Description == nil) != (tc.in.Description == nil) {
				t.Fatalf("description presence mismatch: expected %v, got %v", tc.in.Description, got.Description)
			}
			if got.Description != nil && *got.Description != *tc.in.Description {
				t.Fatalf("expected description %q, got %q", *tc.in.Description, *got.Description)
			}
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	body, err := message.Encode(message.Notification{ID: 42, Name: "Launch", Description: strPtr(""), EventDate: "2024-01-01T10:00:00"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":42,"name":"Launch","description":"","event_date":"2024-01-01T10:00:00"}`
	if string(body) != want {
		t.Fatalf("expected %s, got %s", want, body)
	}
}

func TestDecode_AbsentDescription(t *testing.T) {
	for _, body := range []string{
		`{"id":5,"name":"Launch","event_date":"2024-01-01T10:00:00"}`,
		`{"id":5,"name":"Launch","description":null,"event_date":"2024-01-01T10:00:00"}`,
	} {
		n, err := message.Decode([]byte(body))
		if err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
		if n.Description != nil {
			t.Fatalf("expected nil description, got %q", *n.Description)
		}
		if n.DescriptionOr("no description") != "no description" {
			t.Fatal("expected fallback description")
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"id":"seven","name":"x"}`,
		`{"name":"Launch"}`,
		`{"id":9}`,
	} {
		if _, err := message.Decode([]byte(body)); !errors.Is(err, message.ErrMalformed) {
			t.Fatalf("body %s: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestFromEvent(t *testing.T) {
	e := &domain.Event{
		ID:          42,
		Name:        "Launch",
		Description: strPtr(""),
		EventDate:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	n := message.FromEvent(e)
	if n.ID != 42 || n.Name != "Launch" || n.EventDate != "2024-01-01T10:00:00" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Description == nil || *n.Description != "" {
		t.Fatalf("expected empty description to be preserved, got %v", n.Description)
	}
}
