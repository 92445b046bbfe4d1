package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/config"
	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/service"
)

type mockPublisher struct {
	err       error
	published []message.Notification
}

func (p *mockPublisher) Publish(_ context.Context, n message.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}

func strPtr(s string) *string { return &s }

var launchReq = domain.CreateEventRequest{
	Name:      "Launch",
	EventDate: "2024-01-01T10:00:00",
}

func TestEventService_Create_PublishesAfterCommit(t *testing.T) {
	repo := repository.NewMockEventRepository(42)
	pub := &mockPublisher{}
	svc := service.NewEventService(repo, pub, config.PublishDirect, zap.NewNop())

	var outcomes []bool
	svc.OnPublish = func(ok bool) { outcomes = append(outcomes, ok) }

	e, err := svc.Create(context.Background(), launchReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 42 {
		t.Fatalf("expected id 42, got %d", e.ID)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 committed event, got %d", repo.Len())
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.published))
	}
	got := pub.published[0]
	want := message.Notification{ID: 42, Name: "Launch", EventDate: "2024-01-01T10:00:00"}
	if got.ID != want.ID || got.Name != want.Name || got.EventDate != want.EventDate || got.Description != nil {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if len(outcomes) != 1 || !outcomes[0] {
		t.Fatalf("expected one successful publish outcome, got %v", outcomes)
	}
}

func TestEventService_Create_PublishFailureIsIsolated(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	pub := &mockPublisher{err: errors.New("could not connect to message broker after 5 attempts")}
	svc := service.NewEventService(repo, pub, config.PublishDirect, zap.NewNop())

	var outcomes []bool
	svc.OnPublish = func(ok bool) { outcomes = append(outcomes, ok) }

	e, err := svc.Create(context.Background(), domain.CreateEventRequest{
		Name:        "Meetup",
		Description: strPtr("monthly"),
		EventDate:   "2024-03-05 18:30",
	})
	if err != nil {
		t.Fatalf("publish failure must not reach the caller, got %v", err)
	}
	if e == nil || e.ID != 1 {
		t.Fatalf("expected committed event with id 1, got %+v", e)
	}
	if repo.Len() != 1 {
		t.Fatal("expected event to stay committed")
	}
	if len(outcomes) != 1 || outcomes[0] {
		t.Fatalf("expected one failed publish outcome, got %v", outcomes)
	}
}

func TestEventService_Create_InvalidRequest(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	pub := &mockPublisher{}
	svc := service.NewEventService(repo, pub, config.PublishDirect, zap.NewNop())

	_, err := svc.Create(context.Background(), domain.CreateEventRequest{EventDate: "2024-01-01"})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	_, err = svc.Create(context.Background(), domain.CreateEventRequest{Name: "x", EventDate: "tomorrow"})
	if !errors.Is(err, domain.ErrInvalidEventDate) {
		t.Fatalf("expected ErrInvalidEventDate, got %v", err)
	}

	if repo.Len() != 0 || len(pub.published) != 0 {
		t.Fatal("expected nothing committed or published for invalid input")
	}
}

func TestEventService_Create_CommitFailureSkipsPublish(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	repo.CreateErr = errors.New("connection reset")
	pub := &mockPublisher{}
	svc := service.NewEventService(repo, pub, config.PublishDirect, zap.NewNop())

	if _, err := svc.Create(context.Background(), launchReq); err == nil {
		t.Fatal("expected commit error")
	}
	if len(pub.published) != 0 {
		t.Fatal("expected no publish when the commit fails")
	}
}

func TestEventService_Create_OutboxMode(t *testing.T) {
	repo := repository.NewMockEventRepository(42)
	pub := &mockPublisher{}
	svc := service.NewEventService(repo, pub, config.PublishOutbox, zap.NewNop())

	e, err := svc.Create(context.Background(), launchReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("outbox mode must not publish inline")
	}

	entries := repo.Outbox()
	if len(entries) != 1 || entries[0].EventID != e.ID {
		t.Fatalf("expected one outbox row for event %d, got %+v", e.ID, entries)
	}
	n, err := message.Decode(entries[0].Payload)
	if err != nil {
		t.Fatalf("outbox payload does not decode: %v", err)
	}
	if n.ID != 42 || n.Name != "Launch" || n.EventDate != "2024-01-01T10:00:00" {
		t.Fatalf("unexpected outbox payload %+v", n)
	}
}

func TestEventService_List(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	svc := service.NewEventService(repo, &mockPublisher{}, config.PublishDirect, zap.NewNop())
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-06-01"} {
		if _, err := svc.Create(ctx, domain.CreateEventRequest{Name: "e", EventDate: d}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || !events[0].EventDate.After(events[1].EventDate) {
		t.Fatalf("expected 2 events newest first, got %+v", events)
	}
}

func TestEventService_Create_KeepsWallClockOfZonedDate(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	pub := &mockPublisher{}
	svc := service.NewEventService(repo, pub, config.PublishDirect, zap.NewNop())

	req := domain.CreateEventRequest{Name: "Launch", EventDate: "2024-01-01T10:00:00+02:00"}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := pub.published[0].EventDate; got != "2024-01-01T10:00:00" {
		t.Fatalf("expected wall-clock 10:00 to be kept, got %s", got)
	}
}
