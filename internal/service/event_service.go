package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/config"
	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/repository"
)

// Publisher sends one notification to the durable queue.
// broker.Publisher is the production implementation.
type Publisher interface {
	Publish(ctx context.Context, n message.Notification) error
}

// EventService owns the producer path: commit the event, then announce it.
// HTTP handlers depend on this service, never on the broker directly.
type EventService struct {
	repo   repository.EventRepository
	pub    Publisher
	mode   config.PublishMode
	logger *zap.Logger

	// OnPublish is called after every direct-mode publish attempt. Optional.
	OnPublish func(ok bool)
}

func NewEventService(
	repo repository.EventRepository,
	pub Publisher,
	mode config.PublishMode,
	logger *zap.Logger,
) *EventService {
	return &EventService{repo: repo, pub: pub, mode: mode, logger: logger}
}

// Create validates and commits the event. In direct mode the notification is
// published afterwards and a publish failure never reaches the caller: the
// committed event is returned either way. In outbox mode the notification is
// written in the same transaction and published later by the relay worker.
func (s *EventService) Create(ctx context.Context, req domain.CreateEventRequest) (*domain.Event, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, err
	}

	e := &domain.Event{
		Name:        req.Name,
		Description: req.Description,
		EventDate:   date,
	}

	if s.mode == config.PublishOutbox {
		err := s.repo.CreateWithOutbox(ctx, e, func(e *domain.Event) ([]byte, error) {
			return message.Encode(message.FromEvent(e))
		})
		if err != nil {
			return nil, fmt.Errorf("persist event: %w", err)
		}
		return e, nil
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("persist event: %w", err)
	}

	s.publish(ctx, e)
	return e, nil
}

func (s *EventService) List(ctx context.Context) ([]*domain.Event, error) {
	return s.repo.List(ctx)
}

// publish runs after commit. The event exists whether or not this succeeds.
func (s *EventService) publish(ctx context.Context, e *domain.Event) {
	// A client hanging up after the commit must not abort the announcement.
	ctx = context.WithoutCancel(ctx)

	err := s.pub.Publish(ctx, message.FromEvent(e))
	if s.OnPublish != nil {
		s.OnPublish(err == nil)
	}
	if err != nil {
		s.logger.Error("publish notification failed",
			zap.Int64("event_id", e.ID), zap.Error(err))
		return
	}
	s.logger.Info("notification published", zap.Int64("event_id", e.ID))
}
