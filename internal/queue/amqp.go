package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"golang.org/x/sync/semaphore"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// DefaultQueueName is the durable queue publish tasks travel on.
const DefaultQueueName = "social_publish_tasks"

// Publisher is the subset of *amqp.Channel used to send tasks.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes tasks as persistent JSON messages.
type AMQPDispatcher struct {
	mu    sync.Mutex
	pub   Publisher
	queue string
}

// NewAMQPDispatcher creates a dispatcher publishing to queue on the default exchange.
func NewAMQPDispatcher(pub Publisher, queue string) *AMQPDispatcher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &AMQPDispatcher{pub: pub, queue: queue}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, task domain.PublishTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.pub.Publish("", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish task %s: %w", task.ID, err)
	}
	return nil
}

// Consumer executes deliveries from the broker with bounded concurrency.
// Every delivery is acked once handled, including failures: a failed task
// leaves its item scheduled and stuck recovery re-dispatches it, so
// requeueing here would only double the work.
type Consumer struct {
	handler     Handler
	concurrency int64
}

// NewConsumer creates a consumer running at most concurrency handlers at once.
func NewConsumer(handler Handler, concurrency int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{handler: handler, concurrency: int64(concurrency)}
}

// Run handles deliveries until ctx ends or the channel closes, then waits
// for in-flight handlers.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	sem := semaphore.NewWeighted(c.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				d.Nack(false, true)
				return err
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer sem.Release(1)
				c.handle(ctx, d)
			}(d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var task domain.PublishTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		logger.Error("dropping malformed publish task", "message_id", d.MessageId, "error", err.Error())
		d.Ack(false)
		return
	}
	if err := c.handler(ctx, task); err != nil {
		logger.Error("publish task failed",
			"task_id", task.ID, "content_item_id", task.ContentItemID, "error", err.Error())
	}
	d.Ack(false)
}

// Broker owns one AMQP connection and channel bound to a durable queue.
type Broker struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Dial connects to RabbitMQ and declares the task queue.
func Dial(url, queue string) (*Broker, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &Broker{conn: conn, ch: ch, queue: queue}, nil
}

// Dispatcher returns a dispatcher publishing on the broker's channel.
func (b *Broker) Dispatcher() *AMQPDispatcher { return NewAMQPDispatcher(b.ch, b.queue) }

// Consume starts delivering tasks to consumer and blocks until ctx ends.
func (b *Broker) Consume(ctx context.Context, consumer *Consumer) error {
	if err := b.ch.Qos(int(consumer.concurrency), 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	tag := "publish-worker-" + uuid.NewString()[:8]
	deliveries, err := b.ch.Consume(b.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	err = consumer.Run(ctx, deliveries)
	b.ch.Cancel(tag, false)
	return err
}

// Close closes the channel and connection.
func (b *Broker) Close() error {
	b.ch.Close()
	return b.conn.Close()
}
