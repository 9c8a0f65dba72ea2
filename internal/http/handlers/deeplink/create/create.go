// Package create HTTP-обработчик создания deep-link сессии входа.
package create

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

// Service создание сессии.
type Service interface {
	Create(ctx context.Context) (*loginsession.Created, error)
}

// Handler обрабатывает POST /auth/deeplink.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Создание deep-link сессии
// @Description Создаёт сессию входа и возвращает ссылку на бота. Сессия живёт 5 минут.
// @Tags DeepLink
// @Produce json
// @Success 200 {object} loginsession.Created
// @Failure 500 {object} response.ErrorResponse
// @Router /auth/deeplink [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deeplink.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	created, err := h.service.Create(r.Context())
	if err != nil {
		log.Error("failed to create login session", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, response.CodeInternal, "failed to create session")
		return
	}
	render.JSON(w, r, created)
}
