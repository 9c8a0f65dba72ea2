// Package poll HTTP-обработчик опроса статуса deep-link сессии.
package poll

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/loginsession"
)

// Service опрос сессии.
type Service interface {
	Poll(ctx context.Context, token string) (*loginsession.PollResult, error)
}

// Handler обрабатывает GET /auth/deeplink/poll?token=.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Опрос deep-link сессии
// @Description Возвращает pending, approved, expired или not_found. Для approved в ответе пара токенов и пользователь.
// @Tags DeepLink
// @Produce json
// @Param token query string true "Токен сессии"
// @Success 200 {object} loginsession.PollResult
// @Failure 400 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 500 {object} response.ErrorResponse
// @Router /auth/deeplink/poll [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deeplink.poll"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := r.URL.Query().Get("token")
	if token == "" {
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "token is required")
		return
	}

	res, err := h.service.Poll(r.Context(), token)
	if err != nil {
		log.Error("failed to poll session", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "failed to poll session")
		return
	}
	render.JSON(w, r, res)
}
