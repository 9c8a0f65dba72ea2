// Package telegram HTTP-обработчик входа через Telegram: виджет, initData мини-приложения
// или claim доверенного бота. Тело разбирается как произвольный JSON-объект, потому что
// набор полей виджета участвует в подписи и заранее не фиксирован.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/outcastsdev-svg/outlivion-api/internal/http/response"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	tg "github.com/outcastsdev-svg/outlivion-api/internal/lib/telegram"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/auth"
)

const (
	fieldInitData = "initData"
	fieldRef      = "ref"
)

// Service сценарий входа.
type Service interface {
	Authenticate(ctx context.Context, req auth.Request) (*auth.Result, error)
}

// Handler обрабатывает POST /auth/telegram и POST /auth/telegram/bot.
type Handler struct {
	log     *slog.Logger
	service Service
	trusted bool
}

// New создаёт Handler для публичного входа.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// NewTrusted создаёт Handler для входа от имени бота. Монтируется только за проверкой ключа бота.
func NewTrusted(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, trusted: true}
}

// ServeHTTP godoc
// @Summary Вход через Telegram
// @Description Принимает initData мини-приложения или поля виджета авторизации. Возвращает пару токенов и пользователя.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body map[string]any true "initData или поля виджета, опционально ref"
// @Success 200 {object} auth.Result
// @Failure 400 {object} response.ErrorResponse "INVALID_FORMAT"
// @Failure 401 {object} response.ErrorResponse "INVALID_SIGNATURE или INVALID_INITDATA"
// @Failure 500 {object} response.ErrorResponse "CONFIG_ERROR или USER_CREATE_ERROR"
// @Router /auth/telegram [post]
// @Router /auth/telegram/bot [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.telegram"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Bool("trusted", h.trusted),
	)

	req, err := decode(r)
	if err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.CodeInvalidFormat, "invalid request body")
		return
	}
	req.Trusted = h.trusted

	res, err := h.service.Authenticate(r.Context(), req)
	if err != nil {
		status, code, msg := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("telegram auth failed", sl.Err(err))
		} else {
			log.Info("telegram auth rejected", sl.Err(err))
		}
		response.Fail(w, r, status, code, msg)
		return
	}

	render.JSON(w, r, res)
}

func decode(r *http.Request) (auth.Request, error) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return auth.Request{}, err
	}
	if body == nil {
		return auth.Request{}, errors.New("empty body")
	}

	var req auth.Request
	if raw, ok := body[fieldInitData]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return auth.Request{}, errors.New("initData must be a string")
		}
		req.InitData = s
	}
	if raw, ok := body[fieldRef]; ok && raw != nil {
		if id, ok := parseRef(raw); ok {
			req.ReferrerTelegramID = &id
		}
	}
	delete(body, fieldInitData)
	delete(body, fieldRef)
	if req.InitData == "" {
		req.Widget = tg.WidgetFields(body)
	}
	return req, nil
}

// parseRef принимает Telegram ID пригласившего числом или строкой; мусор игнорируется.
func parseRef(raw any) (int64, bool) {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return http.StatusInternalServerError, response.CodeConfigError, "telegram auth is not configured"
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, tg.ErrInvalidFormat):
		return http.StatusBadRequest, response.CodeInvalidFormat, "invalid telegram auth payload"
	case errors.Is(err, tg.ErrStale), errors.Is(err, tg.ErrFutureDated):
		return http.StatusUnauthorized, response.CodeInvalidSignature, "telegram auth data is outdated"
	case errors.Is(err, tg.ErrInvalidInitData):
		return http.StatusUnauthorized, response.CodeInvalidInitData, "invalid init data"
	case errors.Is(err, tg.ErrInvalidSignature):
		return http.StatusUnauthorized, response.CodeInvalidSignature, "invalid telegram signature"
	case errors.Is(err, auth.ErrUserCreate):
		return http.StatusInternalServerError, response.CodeUserCreateError, "failed to create user"
	default:
		return http.StatusInternalServerError, response.CodeInternal, "internal error"
	}
}
