package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client publishes and consumes CRM events over a direct exchange. The
// connection is established lazily and re-established after failures.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.With("component", "amqp"),
	}
	if _, err := client.ensureChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, channel
	return channel, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name.
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return ch.Qos(10, 0, false)
}

// Publish sends an event as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, e *Event) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: circuit breaker is open", e.Type)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    e.Timestamp,
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published event", "event_type", e.Type, "id", e.ID, "exchange", c.exchangeName)
	return nil
}

// Handler processes one event. A returned error requeues the message.
type Handler func(ctx context.Context, e *Event) error

// Consume delivers events to handler until ctx is cancelled, reconnecting
// with exponential backoff when the broker goes away.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	for attempt := 0; ; {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) && !errors.Is(err, errChannelClosed) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer disconnected, retrying", "error", err, "backoff", wait)
		c.reset()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		attempt++
	}
}

var errChannelClosed = errors.New("message channel closed")

func (c *Client) consumeOnce(ctx context.Context, handler Handler) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	e, err := EventFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Rejecting malformed message", "error", err)
		d.Reject(false)
		return
	}

	if err := handler(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle event", "error", err, "event_type", e.Type, "id", e.ID)
		d.Nack(false, true)
		return
	}

	d.Ack(false)
	c.logger.DebugContext(ctx, "Processed event", "event_type", e.Type, "id", e.ID)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Healthy fails while the circuit breaker is open.
func (c *Client) Healthy(context.Context) error {
	if c.isCircuitOpen() {
		return errors.New("amqp circuit breaker is open")
	}
	return nil
}

func (c *Client) Close() error {
	c.reset()
	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "closed network connection", "dial AMQP"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
