package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/worker"
)

type fakeRawPublisher struct {
	failAfter int // publish calls beyond this count fail; -1 = never fail
	published []int64
}

func (p *fakeRawPublisher) PublishRaw(_ context.Context, eventID int64, _ []byte) error {
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, eventID)
	return nil
}

func seedOutbox(t *testing.T, repo *repository.MockEventRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e := &domain.Event{Name: "e", EventDate: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
		if err := repo.CreateWithOutbox(context.Background(), e, func(e *domain.Event) ([]byte, error) {
			return []byte(`{}`), nil
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRelayWorker_PublishesPending(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	seedOutbox(t, repo, 3)
	pub := &fakeRawPublisher{failAfter: -1}

	pending := -1
	rw := worker.NewRelayWorker(repo, pub, time.Second, 10, zap.NewNop())
	rw.OnPending = func(n int) { pending = n }

	rw.Poll(context.Background())

	if len(pub.published) != 3 {
		t.Fatalf("expected 3 publishes, got %v", pub.published)
	}
	if pending != 0 {
		t.Fatalf("expected no pending rows, got %d", pending)
	}
	for _, o := range repo.Outbox() {
		if o.PublishedAt == nil || o.Attempts != 1 {
			t.Fatalf("expected entry %d published after one attempt, got %+v", o.ID, o)
		}
	}

	// A second poll has nothing left to send.
	rw.Poll(context.Background())
	if len(pub.published) != 3 {
		t.Fatalf("expected no republish, got %v", pub.published)
	}
}

func TestRelayWorker_StopsAtFirstFailure(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	seedOutbox(t, repo, 3)
	pub := &fakeRawPublisher{failAfter: 1}

	pending := -1
	rw := worker.NewRelayWorker(repo, pub, time.Second, 10, zap.NewNop())
	rw.OnPending = func(n int) { pending = n }

	rw.Poll(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("expected 1 successful publish, got %v", pub.published)
	}
	if pending != 2 {
		t.Fatalf("expected 2 pending rows, got %d", pending)
	}

	entries := repo.Outbox()
	if entries[1].LastError == nil || entries[1].Attempts != 1 {
		t.Fatalf("expected failure recorded on second entry, got %+v", entries[1])
	}
	if entries[2].Attempts != 0 {
		t.Fatalf("expected third entry untouched, got %+v", entries[2])
	}
}

func TestRelayWorker_RunStopsOnCancel(t *testing.T) {
	repo := repository.NewMockEventRepository(1)
	rw := worker.NewRelayWorker(repo, &fakeRawPublisher{failAfter: -1}, time.Millisecond, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rw.Run(ctx)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay worker did not stop after cancellation")
	}
}
