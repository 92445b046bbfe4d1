package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/service"
)

type mockNotifier struct {
	err   error
	calls []notifyCall
}

type notifyCall struct {
	recipients []domain.Recipient
	n          message.Notification
}

func (m *mockNotifier) Notify(_ context.Context, recipients []domain.Recipient, n message.Notification) error {
	m.calls = append(m.calls, notifyCall{recipients: recipients, n: n})
	return m.err
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

var launch = message.Notification{ID: 42, Name: "Launch", EventDate: "2024-01-01T10:00:00"}

func TestDispatchService_Handle(t *testing.T) {
	notifier := &mockNotifier{}
	sleeper := &recordingSleeper{}
	recipients := service.NewStaticRecipients([]string{"ada", "grace"})
	svc := service.NewDispatchService(recipients, notifier, time.Second, sleeper.sleep, zap.NewNop())

	if err := svc.Handle(context.Background(), launch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notify call, got %d", len(notifier.calls))
	}
	call := notifier.calls[0]
	if call.n.ID != 42 || len(call.recipients) != 2 || call.recipients[1].Username != "grace" {
		t.Fatalf("unexpected notify call %+v", call)
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != time.Second {
		t.Fatalf("expected one 1s work delay, got %v", sleeper.waits)
	}
}

func TestDispatchService_Handle_UsesRegisteredUsers(t *testing.T) {
	users := repository.NewMockUserRepository()
	if err := users.Create(context.Background(), &domain.User{Username: "ada"}); err != nil {
		t.Fatal(err)
	}
	notifier := &mockNotifier{}
	svc := service.NewDispatchService(users, notifier, 0, nil, zap.NewNop())

	if err := svc.Handle(context.Background(), launch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := notifier.calls[0].recipients; len(got) != 1 || got[0].Username != "ada" {
		t.Fatalf("expected registered user as recipient, got %+v", got)
	}
}

func TestDispatchService_Handle_Errors(t *testing.T) {
	t.Run("notifier failure", func(t *testing.T) {
		notifier := &mockNotifier{err: errors.New("webhook down")}
		sleeper := &recordingSleeper{}
		svc := service.NewDispatchService(service.StaticRecipients{}, notifier, time.Second, sleeper.sleep, zap.NewNop())

		if err := svc.Handle(context.Background(), launch); err == nil {
			t.Fatal("expected notifier error")
		}
		if len(sleeper.waits) != 0 {
			t.Fatal("expected no work delay after a failed notify")
		}
	})

	t.Run("recipient lookup failure", func(t *testing.T) {
		users := repository.NewMockUserRepository()
		users.ListRecipientsErr = errors.New("db down")
		notifier := &mockNotifier{}
		svc := service.NewDispatchService(users, notifier, 0, nil, zap.NewNop())

		if err := svc.Handle(context.Background(), launch); err == nil {
			t.Fatal("expected recipient error")
		}
		if len(notifier.calls) != 0 {
			t.Fatal("expected no notify call without recipients")
		}
	})

	t.Run("cancelled during work delay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sleeper := &recordingSleeper{}
		svc := service.NewDispatchService(service.StaticRecipients{}, &mockNotifier{}, time.Second, sleeper.sleep, zap.NewNop())

		if err := svc.Handle(ctx, launch); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
