// Package confirm HTTP-обработчик подтверждения deep-link сессии ботом.
// Маршрут закрыт ключом бота, поэтому профиль из тела считается проверенным.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/models"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/loginsession"
)

// Request тело запроса бота.
type Request struct {
	Token      string `json:"token" validate:"required"`
	TelegramID int64  `json:"telegramId" validate:"required,gt=0"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	PhotoURL   string `json:"photoUrl"`
	Ref        *int64 `json:"ref,omitempty"`
}

// Service подтверждение сессии.
type Service interface {
	Confirm(ctx context.Context, req loginsession.ConfirmRequest) error
}

// Handler обрабатывает POST /auth/deeplink/confirm.
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
// @Summary Подтверждение deep-link сессии
// @Description Вызывается ботом после /start login_<token>. Сессию можно подтвердить один раз.
// @Tags DeepLink
// @Accept json
// @Produce json
// @Param X-Bot-Api-Key header string true "Ключ бота"
// @Param request body Request true "Токен сессии и профиль Telegram"
// @Success 200 {object} response.OKResponse
// @Failure 400 {object} response.ErrorResponse "SESSION_EXPIRED или INVALID_FORMAT"
// @Failure 401 {object} response.ErrorResponse "UNAUTHORIZED"
// @Failure 404 {object} response.ErrorResponse "SESSION_NOT_FOUND"
// @Router /auth/deeplink/confirm [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deeplink.confirm"
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
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.Confirm(r.Context(), loginsession.ConfirmRequest{
		Token: req.Token,
		Profile: models.Profile{
			TelegramID: req.TelegramID,
			Username:   req.Username,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			PhotoURL:   req.PhotoURL,
		},
		ReferrerTelegramID: req.Ref,
	})
	switch {
	case errors.Is(err, loginsession.ErrSessionNotFound):
		log.Info("session not found")
		response.Fail(w, r, http.StatusNotFound, response.CodeSessionNotFound, "session not found")
		return
	case errors.Is(err, loginsession.ErrSessionExpired):
		log.Info("session expired")
		response.Fail(w, r, http.StatusBadRequest, response.CodeSessionExpired, "session expired")
		return
	case err != nil:
		log.Error("failed to confirm session", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeUserCreateError, "failed to confirm session")
		return
	}

	log.Info("session confirmed", slog.Int64("telegram_id", req.TelegramID))
	response.OK(w, r)
}
