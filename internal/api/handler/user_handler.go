package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/event-notifier/internal/api/middleware"
	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/service"
)

type UserHandler struct {
	svc    *service.UserService
	logger *zap.Logger
}

func NewUserHandler(svc *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// Register handles POST /users/register
//
// @Summary  Register a notification recipient
// @Tags     users
// @Accept   json
// @Produce  json
// @Param    body  body      domain.RegisterUserRequest  true  "Credentials"
// @Success  201   {object}  map[string]any
// @Failure  400   {object}  map[string]string
// @Failure  409   {object}  map[string]string
// @Router   /users/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.logger.Warn("register user failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("username", req.Username),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"message": "User registered", "id": u.ID})
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
