package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ogurasousui/user-service/internal/core/registration"
	amqp "github.com/rabbitmq/amqp091-go"
)

const orphanEventType = "user.registration.orphaned"

// channel は Publisher が利用する amqp.Channel の操作です。
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var _ registration.CompensationReporter = (*Publisher)(nil)

// Publisher は補償に失敗した登録を耐久キューへ通知する CompensationReporter の実装です。
type Publisher struct {
	conn  io.Closer
	ch    channel
	queue string
}

// Dial は AMQP ブローカーへ接続し、耐久キューを宣言します。
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func newPublisher(ch channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

// ReportOrphan は補償に失敗した登録を JSON として永続メッセージで発行します。
func (p *Publisher) ReportOrphan(ctx context.Context, orphan registration.OrphanedRegistration) error {
	body, err := json.Marshal(orphan)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode event: %w", err)
	}

	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    orphan.SagaID,
			Type:         orphanEventType,
			Timestamp:    orphan.OccurredAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", p.queue, err)
	}
	return nil
}

// Close はチャネルと接続を閉じます。
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
