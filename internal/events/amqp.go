package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/mmynk/splitledger/internal/metrics"
)

const (
	publishTimeout = 5 * time.Second
	maxAttempts    = 3
	maxBackoff     = 30 * time.Second
	queueSize      = 256
)

var (
	ErrQueueFull       = errors.New("event queue full")
	ErrPublisherClosed = errors.New("event publisher closed")
)

// AMQPPublisher publishes events to a durable topic exchange, one routing
// key per event type. Publish only enqueues; a single goroutine delivers,
// redialing with backoff when the connection drops. Close stops it.
type AMQPPublisher struct {
	url      string
	exchange string
	logger   *slog.Logger

	queue chan *Envelope
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	// Owned by the delivery goroutine once it has started.
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

var _ Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials the broker, declares the exchange and starts the
// delivery goroutine.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange, logger, queueSize)
	if err := p.connect(); err != nil {
		return nil, err
	}
	p.start()
	return p, nil
}

func newAMQPPublisher(url, exchange string, logger *slog.Logger, size int) *AMQPPublisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
		queue:    make(chan *Envelope, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *AMQPPublisher) start() {
	go p.run()
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

// Publish enqueues the event for delivery and returns at once. It fails
// with ErrQueueFull when the broker cannot keep up.
func (p *AMQPPublisher) Publish(ctx context.Context, event *Envelope) error {
	select {
	case <-p.stop:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.queue <- event:
		return nil
	default:
		metrics.EventsPublished.WithLabelValues(event.Type, "dropped").Inc()
		return fmt.Errorf("%w: %s", ErrQueueFull, event.Type)
	}
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for {
		select {
		case event := <-p.queue:
			p.deliver(event)
		case <-p.stop:
			// Whatever is still queued gets a single attempt.
			for {
				select {
				case event := <-p.queue:
					p.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (p *AMQPPublisher) deliver(event *Envelope) {
	if err := p.send(event); err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		p.logger.Warn("Event not delivered", "type", event.Type, "id", event.ID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	p.logger.Debug("Published event",
		"type", event.Type,
		"id", event.ID,
		"exchange", p.exchange)
}

// send delivers one event, redialing with exponential backoff when the
// connection is gone. Backoff waits end early once Close is called.
func (p *AMQPPublisher) send(event *Envelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 && !p.wait(exponentialBackoff(attempt-1)) {
			break
		}
		if p.channel == nil || p.channel.IsClosed() {
			p.reset()
			if err := p.connect(); err != nil {
				lastErr = err
				continue
			}
		}

		lastErr = p.publish(event, body)
		if lastErr == nil {
			return nil
		}
		if !isConnectionError(lastErr) {
			break
		}
		p.reset()
	}
	return fmt.Errorf("publish %s: %w", event.Type, lastErr)
}

// wait sleeps for d and reports false if the publisher was closed first.
func (p *AMQPPublisher) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.stop:
		return false
	}
}

func (p *AMQPPublisher) publish(event *Envelope, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Type:         event.Type,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) reset() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close stops accepting events, gives queued ones a last attempt and
// closes the connection.
func (p *AMQPPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		if p.channel != nil {
			p.channel.Close()
			p.channel = nil
		}
		if p.conn != nil {
			err = p.conn.Close()
			p.conn = nil
		}
	})
	return err
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if err == amqp091.ErrClosed {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
