// Package queue carries the coarse "run the dispatcher for this
// campaign soon" signal from the command service to the worker
// process. It generalizes the teacher's InMemoryQueue/amqp split:
// cmd/server and cmd/worker publish and consume over streadway/amqp;
// InMemoryPublisher is a broker-less variant for single-process use.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

const DispatchQueueName = "campaign_dispatch_triggers"

// TriggerMessage is the wire payload a dispatch-trigger consumer
// decodes; an empty CampaignID means "scan all eligible campaigns".
type TriggerMessage struct {
	CampaignID *int64 `json:"campaign_id,omitempty"`
}

// Publisher is the narrow interface command.Trigger and cmd/server
// need; AMQPPublisher and InMemoryPublisher both satisfy it.
type Publisher interface {
	PublishTrigger(ctx context.Context, msg TriggerMessage) error
}

// AMQPPublisher publishes dispatch triggers over RabbitMQ, the same
// streadway/amqp dependency the teacher's go.mod already carries.
type AMQPPublisher struct {
	channel *amqp.Channel
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return conn, nil
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(DispatchQueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AMQPPublisher{channel: ch}, nil
}

func (p *AMQPPublisher) PublishTrigger(ctx context.Context, msg TriggerMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.channel.Publish("", DispatchQueueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Consume starts an AMQP consumer loop, invoking handler for each
// trigger message; it acks on success and nacks (with requeue) on
// handler error, matching at-least-once delivery for the coarse
// scan-soon signal — safe because the dispatcher itself is idempotent
// per invocation.
func (p *AMQPPublisher) Consume(ctx context.Context, handler func(context.Context, TriggerMessage) error) error {
	deliveries, err := p.channel.Consume(DispatchQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start amqp consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var msg TriggerMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}
