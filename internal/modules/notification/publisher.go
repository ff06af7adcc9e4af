package notification

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher hands events to systems outside the engine.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AMQPPublisher sends each event as a persistent JSON message to a durable
// queue. It dials per message; event volume is one message per booking change.
type AMQPPublisher struct {
	url     string
	queue   string
	loggerf func(format string, args ...interface{})
}

// NewAMQPPublisher returns nil when url is empty so callers can skip the broker.
func NewAMQPPublisher(url, queue string, loggerf func(format string, args ...interface{})) *AMQPPublisher {
	if url == "" {
		return nil
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if queue == "" {
		queue = "booking_events"
	}
	return &AMQPPublisher{url: url, queue: queue, loggerf: loggerf}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.loggerf("level=error msg=rabbitmq dial failed err=%v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.loggerf("level=error msg=rabbitmq channel open failed err=%v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.loggerf("level=error msg=rabbitmq queue declare failed queue=%s err=%v", p.queue, err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		MessageId:    ev.Reference + ":" + string(ev.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.loggerf("level=error msg=rabbitmq publish failed queue=%s err=%v", p.queue, err)
		return err
	}
	return nil
}
