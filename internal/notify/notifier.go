// Package notify delivers a notification to a set of recipients. It is the
// side-effect step the consumer runs before acknowledging a message.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
)

// Notifier abstracts delivery to recipients.
// Mocking this interface in tests gives full control over delivery behaviour
// without making real HTTP calls.
type Notifier interface {
	Notify(ctx context.Context, recipients []domain.Recipient, n message.Notification) error
}

// LogNotifier writes one log line per recipient. It is the default when no
// webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, recipients []domain.Recipient, n message.Notification) error {
	l.logger.Info("sending notification to subscribed users",
		zap.Int64("event_id", n.ID),
		zap.String("event_name", n.Name),
		zap.Int("recipients", len(recipients)),
	)
	for _, r := range recipients {
		l.logger.Debug("notification sent",
			zap.Int64("event_id", n.ID),
			zap.String("recipient", r.Username),
		)
	}
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
