// Package health HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
)

const pingTimeout = 2 * time.Second

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response состояние сервиса и его зависимостей.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler обрабатывает GET /health.
type Handler struct {
	log  *slog.Logger
	deps map[string]Pinger
}

// New создаёт Handler. nil-зависимости пропускаются.
func New(log *slog.Logger, deps map[string]Pinger) *Handler {
	checked := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			checked[name] = p
		}
	}
	return &Handler{log: log, deps: checked}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce json
// @Success 200 {object} health.Response
// @Failure 503 {object} health.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := Response{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			log.Warn("dependency is unavailable", slog.String("dependency", name), sl.Err(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
