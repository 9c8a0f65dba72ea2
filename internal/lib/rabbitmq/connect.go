// Package rabbitmq подключается к брокеру и публикует JSON-события о подписках.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// ExchangeSubscriptions direct exchange для событий о подписках.
const ExchangeSubscriptions = "subscriptions"

// RoutingKeyExpiring ключ события о скором окончании подписки.
const RoutingKeyExpiring = "subscription.expiring"

// QueueConfig очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// SubscriptionQueues очереди, которые объявляются при старте планировщика.
func SubscriptionQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.subscription_expiring", RoutingKey: RoutingKeyExpiring},
	}
}

// Connect подключается к брокеру, повторяя попытки с задержкой.
func Connect(ctx context.Context, url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет exchange и привязывает к нему очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := ch.ExchangeDeclare(ExchangeSubscriptions, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("%s: declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, ExchangeSubscriptions, false, nil); err != nil {
			return nil, fmt.Errorf("%s: bind queue %s to %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}
	return ch, nil
}
