package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/event-notifier/internal/domain"
)

// MockEventRepository is a hand-written, in-memory implementation of
// EventRepository and OutboxRepository used in unit tests.
type MockEventRepository struct {
	mu     sync.RWMutex
	events map[int64]*domain.Event
	outbox []*domain.OutboxEntry
	nextID int64

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr        error
	MarkPublishedErr error
}

// NewMockEventRepository returns a mock whose first assigned event ID is firstID.
func NewMockEventRepository(firstID int64) *MockEventRepository {
	if firstID <= 0 {
		firstID = 1
	}
	return &MockEventRepository{events: make(map[int64]*domain.Event), nextID: firstID}
}

func (m *MockEventRepository) Create(_ context.Context, e *domain.Event) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(e)
	return nil
}

func (m *MockEventRepository) CreateWithOutbox(_ context.Context, e *domain.Event, payload func(*domain.Event) ([]byte, error)) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Build the payload against a copy so a failure leaves no trace, as a
	// rolled-back transaction would.
	staged := *e
	staged.ID = m.nextID
	staged.CreatedAt = time.Now().UTC()
	body, err := payload(&staged)
	if err != nil {
		return err
	}

	m.insertLocked(e)
	m.outbox = append(m.outbox, &domain.OutboxEntry{
		ID:        int64(len(m.outbox) + 1),
		EventID:   e.ID,
		Payload:   body,
		CreatedAt: e.CreatedAt,
	})
	return nil
}

func (m *MockEventRepository) insertLocked(e *domain.Event) {
	e.ID = m.nextID
	e.CreatedAt = time.Now().UTC()
	m.nextID++
	clone := *e
	m.events[e.ID] = &clone
}

func (m *MockEventRepository) List(_ context.Context) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Event, 0, len(m.events))
	for _, e := range m.events {
		clone := *e
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EventDate.After(result[j].EventDate) })
	return result, nil
}

// Len returns the number of committed events.
func (m *MockEventRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *MockEventRepository) FetchPending(_ context.Context, limit int) ([]*domain.OutboxEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OutboxEntry
	for _, o := range m.outbox {
		if o.PublishedAt != nil {
			continue
		}
		clone := *o
		result = append(result, &clone)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockEventRepository) MarkPublished(_ context.Context, id int64, at time.Time) error {
	if m.MarkPublishedErr != nil {
		return m.MarkPublishedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.outbox {
		if o.ID == id {
			o.Attempts++
			o.PublishedAt = &at
			o.LastError = nil
		}
	}
	return nil
}

func (m *MockEventRepository) MarkFailed(_ context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.outbox {
		if o.ID == id {
			o.Attempts++
			o.LastError = &errMsg
		}
	}
	return nil
}

func (m *MockEventRepository) CountPending(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, o := range m.outbox {
		if o.PublishedAt == nil {
			n++
		}
	}
	return n, nil
}

// Outbox returns a snapshot of every outbox entry.
func (m *MockEventRepository) Outbox() []domain.OutboxEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.OutboxEntry, len(m.outbox))
	for i, o := range m.outbox {
		out[i] = *o
	}
	return out
}
