package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/event-notifier/internal/api/middleware"
	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/service"
)

// CreatedMessage tells the caller that the event is stored but the
// notification is only attempted.
const CreatedMessage = "Event created; notification delivery is asynchronous and not guaranteed"

// EventHandler handles the events endpoints.
type EventHandler struct {
	svc    *service.EventService
	logger *zap.Logger
}

func NewEventHandler(svc *service.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

type createEventResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Create handles POST /events
//
// @Summary     Create an event and announce it
// @Tags        events
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateEventRequest  true  "Event payload"
// @Success     201   {object}  createEventResponse
// @Failure     400   {object}  map[string]string
// @Router      /events [post]
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create event failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, createEventResponse{Message: CreatedMessage, ID: e.ID})
}

// List handles GET /events
//
// @Summary  List events, latest event date first
// @Tags     events
// @Produce  json
// @Success  200  {array}  message.Notification
// @Router   /events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	// Listed events share the notification's wire shape.
	out := make([]message.Notification, len(events))
	for i, e := range events {
		out[i] = message.FromEvent(e)
	}
	respondJSON(w, http.StatusOK, out)
}
