package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/mq"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(msg Message) error
}

// Dispatcher hands a message off for delivery without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Job is the queued form of a message.
type Job struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
}

// InlineDispatcher sends each message on its own goroutine.
type InlineDispatcher struct {
	mailer Mailer
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewInlineDispatcher(mailer Mailer, logger *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{mailer: mailer, logger: logger}
}

// Dispatch starts delivery and returns immediately. Delivery failures are
// logged.
func (d *InlineDispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.mailer.Send(msg); err != nil {
			d.logger.Error("mail delivery failed", zap.String("to", msg.To), zap.Error(err))
			return
		}
		d.logger.Debug("mail delivered", zap.String("to", msg.To))
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// Publisher is the subset of the queue used to enqueue mail.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, value any) (string, error)
}

// QueueDispatcher enqueues messages for the worker command.
type QueueDispatcher struct {
	queue Publisher
}

func NewQueueDispatcher(queue Publisher) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	job := Job{ID: uuid.NewString(), Message: msg}
	if _, err := d.queue.PublishJSON(ctx, mq.ChannelMailOutbound, job); err != nil {
		return fmt.Errorf("enqueue mail %s: %w", job.ID, err)
	}
	return nil
}

// Subscriber is the subset of the queue used by Consume.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Consume delivers queued mail until ctx is done. A job that cannot be
// decoded or sent is logged and acknowledged; mail is never retried.
func Consume(ctx context.Context, queue Subscriber, mailer Mailer, logger *zap.Logger) error {
	return queue.Subscribe(ctx, mq.ChannelMailOutbound, func(ctx context.Context, msg mq.Message) error {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			logger.Warn("dropping malformed mail job", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		if err := mailer.Send(job.Message); err != nil {
			logger.Error("mail delivery failed",
				zap.String("job_id", job.ID),
				zap.String("to", job.Message.To),
				zap.Error(err),
			)
			return nil
		}
		logger.Info("mail delivered", zap.String("job_id", job.ID), zap.String("to", job.Message.To))
		return nil
	})
}
