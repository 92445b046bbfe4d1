package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/notify"
	"github.com/notifyhub/event-notifier/internal/supervisor"
	"github.com/notifyhub/event-notifier/internal/worker"
)

// RecipientSource resolves who should hear about an event.
// repository.UserRepository satisfies it.
type RecipientSource interface {
	ListRecipients(ctx context.Context) ([]domain.Recipient, error)
}

// StaticRecipients is a fixed recipient list, used when the notifier runs
// without a database.
type StaticRecipients []domain.Recipient

// NewStaticRecipients builds a list from bare usernames.
func NewStaticRecipients(usernames []string) StaticRecipients {
	out := make(StaticRecipients, len(usernames))
	for i, u := range usernames {
		out[i] = domain.Recipient{ID: int64(i + 1), Username: u}
	}
	return out
}

func (s StaticRecipients) ListRecipients(context.Context) ([]domain.Recipient, error) {
	return s, nil
}

// DispatchService is the consumer's handler. A nil error from Handle means
// the work is done and the message may be acknowledged.
type DispatchService struct {
	recipients RecipientSource
	notifier   notify.Notifier
	workDelay  time.Duration
	sleep      supervisor.Sleeper
	logger     *zap.Logger
}

// NewDispatchService builds the handler. A nil sleep uses supervisor.SleepContext.
func NewDispatchService(
	recipients RecipientSource,
	notifier notify.Notifier,
	workDelay time.Duration,
	sleep supervisor.Sleeper,
	logger *zap.Logger,
) *DispatchService {
	if sleep == nil {
		sleep = supervisor.SleepContext
	}
	return &DispatchService{
		recipients: recipients,
		notifier:   notifier,
		workDelay:  workDelay,
		sleep:      sleep,
		logger:     logger,
	}
}

func (s *DispatchService) Handle(ctx context.Context, n message.Notification) error {
	s.logger.Info("received notification for event",
		zap.String("event_name", n.Name),
		zap.Int64("event_id", n.ID),
		zap.String("event_date", n.EventDate),
		zap.String("description", n.DescriptionOr("")),
	)

	recipients, err := s.recipients.ListRecipients(ctx)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	if err := s.notifier.Notify(ctx, recipients, n); err != nil {
		return err
	}

	if s.workDelay > 0 {
		if err := s.sleep(ctx, s.workDelay); err != nil {
			return err
		}
	}

	s.logger.Info("notification handled", zap.Int64("event_id", n.ID))
	return nil
}

var _ worker.Handler = (*DispatchService)(nil)
