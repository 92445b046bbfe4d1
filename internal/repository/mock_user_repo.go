package repository

import (
	"context"
	"sync"
	"time"

	"github.com/notifyhub/event-notifier/internal/domain"
)

// MockUserRepository is an in-memory UserRepository for tests.
type MockUserRepository struct {
	mu     sync.RWMutex
	users  []*domain.User
	nextID int64

	ListRecipientsErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{nextID: 1}
}

func (m *MockUserRepository) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	m.nextID++
	clone := *u
	m.users = append(m.users, &clone)
	return nil
}

func (m *MockUserRepository) List(_ context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for i := len(m.users) - 1; i >= 0; i-- {
		clone := *m.users[i]
		result = append(result, &clone)
	}
	return result, nil
}

func (m *MockUserRepository) ListRecipients(_ context.Context) ([]domain.Recipient, error) {
	if m.ListRecipientsErr != nil {
		return nil, m.ListRecipientsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.Recipient, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, domain.Recipient{ID: u.ID, Username: u.Username})
	}
	return result, nil
}

// PasswordHash returns the stored hash for username, or "" if absent.
func (m *MockUserRepository) PasswordHash(username string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u.PasswordHash
		}
	}
	return ""
}
