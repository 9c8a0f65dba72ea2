// Package sl содержит вспомогательные функции для работы с логгером slog.
package sl

import (
	"io"
	"log/slog"
)

// New создаёт логгер для окружения env: в prod JSON уровня info, иначе текст уровня debug.
func New(env string, w io.Writer) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
//	log.Error("failed to reconcile payment", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции, как в `const op`.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
