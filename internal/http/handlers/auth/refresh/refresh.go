// Package refresh HTTP-обработчик обмена refresh токена на новую пару.
package refresh

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/jwt"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
)

// Request тело запроса. TelegramID необязателен; если задан, должен совпасть с владельцем токена.
type Request struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	TelegramID   int64  `json:"telegramId" validate:"omitempty,gt=0"`
}

// Service обновление токенов.
type Service interface {
	Refresh(ctx context.Context, refreshToken string, telegramID int64) (*jwt.Pair, error)
}

// Handler обрабатывает POST /auth/refresh.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновление токенов
// @Description Выпускает новую пару по действующему refresh токену. Использованный токен повторно не принимается.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Refresh токен"
// @Success 200 {object} jwt.Pair
// @Failure 400 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 422 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 401 {object} response.ErrorResponse "REFRESH_FAILED"
// @Router /auth/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken, req.TelegramID)
	if err != nil {
		log.Info("refresh rejected", sl.Err(err))
		response.Fail(w, r, http.StatusUnauthorized, response.CodeRefreshFailed, "refresh failed")
		return
	}
	render.JSON(w, r, pair)
}
