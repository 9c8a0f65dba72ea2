// Package me HTTP-обработчик профиля текущего пользователя.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/middlewarectx"
	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

// Service отдаёт публичную проекцию пользователя.
type Service interface {
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
}

// Handler обрабатывает GET /me.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PublicUser
// @Failure 401 {object} response.ErrorResponse "TOKEN_EXPIRED | TOKEN_INVALID"
// @Failure 404 {object} response.ErrorResponse "NOT_FOUND"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Info("token owner no longer exists", slog.String("user_id", userID))
		response.Fail(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
		return
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "internal error")
		return
	}
	render.JSON(w, r, user)
}
