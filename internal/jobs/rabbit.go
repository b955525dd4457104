package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all job messages flow through. Each job
// name is published as the routing key, and each worker queue binds to the
// key it handles. A topic exchange (rather than publishing straight to
// queues) means adding a fourth job type later is a new binding, not a code
// change here.
const Exchange = "memberhub.jobs"

// publishTimeout bounds a single publish. Job publishing happens on the
// signup request path; a wedged broker connection should cost us a log line,
// not a 30-second request.
const publishTimeout = 5 * time.Second

// RabbitPublisher is a Publisher backed by RabbitMQ.
//
// CONNECTION SHARING:
// One AMQP connection and one channel are shared by all publishes. Channels
// are not safe for fully concurrent use in every client, but amqp091-go
// serialises Publish on a channel internally; the RWMutex here protects the
// channel POINTER (swapped on close), not the publishes themselves.
type RabbitPublisher struct {
	url    string
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

var _ Publisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher dials RabbitMQ, retrying with exponential backoff.
//
// WHY RETRY AT STARTUP?
// In containerised deployments the broker and the app start at the same
// time, and the broker usually loses the race. Ten attempts with backoff
// capped at 30s rides out a RabbitMQ that takes a minute to come up, while a
// genuinely wrong URL still fails fast enough to notice.
func NewRabbitPublisher(ctx context.Context, url string, logger *slog.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{
		url:    url,
		logger: logger,
	}

	const maxRetries = 10
	retryDelay := 1 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := p.connect()
		if err == nil {
			logger.Info("rabbitmq connected", slog.Int("attempt", attempt))
			return p, nil
		}

		logger.Warn("rabbitmq connection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("maxRetries", maxRetries),
			slog.Duration("retryIn", retryDelay),
			slog.String("error", err.Error()),
		)

		if attempt == maxRetries {
			return nil, fmt.Errorf("jobs: connecting to rabbitmq after %d attempts: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay = time.Duration(float64(retryDelay) * 1.5)
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		}
	}

	// Unreachable — the loop either returns a publisher or an error.
	return nil, fmt.Errorf("jobs: rabbitmq retry loop exited unexpectedly")
}

func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()

	return nil
}

// DeclareTopology declares the exchange and one durable queue per job type,
// bound by routing key. Declaration is idempotent — both the publisher and
// the workers call it, so whichever starts first creates the topology and
// the other's declare is a no-op.
//
// Durable exchange + durable queues + persistent messages (see Publish)
// means enqueued jobs survive a broker restart.
func (p *RabbitPublisher) DeclareTopology() error {
	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	if err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("jobs: declaring exchange %s: %w", Exchange, err)
	}

	for _, job := range []string{JobSlackInvite, JobAirtableSync, JobSendGridSync} {
		queue := "memberhub." + job
		if _, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("jobs: declaring queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, job, Exchange, false, nil); err != nil {
			return fmt.Errorf("jobs: binding queue %s: %w", queue, err)
		}
	}

	return nil
}

// Publish serialises the payload as JSON and publishes it to the jobs
// exchange with the job name as the routing key.
func (p *RabbitPublisher) Publish(ctx context.Context, job string, payload any) error {
	p.mu.RLock()
	ch := p.ch
	closed := p.closed
	p.mu.RUnlock()

	if closed || ch == nil {
		return fmt.Errorf("jobs: publisher is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: marshaling %s payload: %w", job, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		pubCtx,
		Exchange,
		job,   // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // survive broker restart
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("jobs: publishing %s: %w", job, err)
	}

	p.logger.Debug("job enqueued", slog.String("job", job), slog.Int("bytes", len(body)))
	return nil
}

// Close shuts down the channel and connection. Safe to call twice.
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}

	p.logger.Info("rabbitmq connection closed")
}
