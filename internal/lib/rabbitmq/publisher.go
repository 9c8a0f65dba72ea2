package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// Channel часть amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует события в exchange подписок. amqp.Channel не потокобезопасен, поэтому публикация под мьютексом.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch Channel) *Publisher {
	return &Publisher{ch: ch, exchange: ExchangeSubscriptions}
}

// Publish сериализует message в JSON и публикует его с ключом routingKey.
func (p *Publisher) Publish(routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
