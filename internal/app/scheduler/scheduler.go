// Package scheduler собирает фоновый процесс: истечение подписок, предупреждения и очистку сессий входа.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/rabbitmq"
	"github.com/outcastsdev-svg/outlivion-api/internal/lib/sl"
	"github.com/outcastsdev-svg/outlivion-api/internal/provisioning"
	"github.com/outcastsdev-svg/outlivion-api/internal/services/loginsession"
	schedulerservice "github.com/outcastsdev-svg/outlivion-api/internal/services/scheduler"
	"github.com/outcastsdev-svg/outlivion-api/internal/storage"
)

// App представляет приложение планировщика.
type App struct {
	scheduler *schedulerservice.Service
	db        *storage.Storage
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

// New подключает базу и, если настроены, брокер и панель.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{db: db, logger: logger}

	var publisher schedulerservice.Publisher
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.SubscriptionQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = rabbitmq.NewPublisher(app.ch)
	} else {
		logger.Warn("rabbitmq is not configured, expiring-soon events will only be logged")
	}

	var panel schedulerservice.Panel
	if cfg.Provisioning.BaseURL != "" {
		panel = provisioning.NewClient(cfg.Provisioning)
	} else {
		logger.Warn("provisioning panel is not configured, expired users stay enabled in the panel")
	}

	// Планировщику нужна только очистка, вход через сессии здесь не выполняется.
	sessions := loginsession.New(logger, db, nil, nil, loginsession.Options{
		BotUsername: cfg.BotUsername,
		TTL:         cfg.LoginSessionTTL,
		MaxAge:      cfg.SessionMaxAge,
	})

	app.scheduler = schedulerservice.New(logger, db, panel, publisher, sessions, schedulerservice.Options{
		SweepInterval:     cfg.SweepInterval,
		WarnInterval:      cfg.WarnInterval,
		WarnWindow:        cfg.WarnWindow,
		CleanupInterval:   cfg.CleanupInterval,
		BatchSize:         cfg.BatchSize,
		ProvisioningDelay: cfg.ProvisioningDelay,
	})
	return app, nil
}

// Run запускает задачи и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("scheduler started")
	a.scheduler.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	a.close()
	return nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
