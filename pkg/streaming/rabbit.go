package streaming

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "sales.queue"

const publishTimeout = 5 * time.Second

type Rabbit struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func NewRabbit(url string, queue string) (*Rabbit, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbit: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbit channel: %w", err)
	}

	q, err := DeclareSaleQueue(ch, queue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", queue, err)
	}

	return &Rabbit{
		conn:    conn,
		channel: ch,
		queue:   q.Name,
	}, nil
}

func DeclareSaleQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (rabbit *Rabbit) Publish(ctx context.Context, envelope *EventEnvelope) error {
	b, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return rabbit.channel.PublishWithContext(ctx,
		"",           // exchange
		rabbit.queue, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    envelope.ID,
			Type:         envelope.EventType,
			Timestamp:    envelope.Timestamp,
			AppId:        AppID,
			Body:         b,
		})
}

func (rabbit *Rabbit) Close() {
	rabbit.channel.Close()
	rabbit.conn.Close()
}
