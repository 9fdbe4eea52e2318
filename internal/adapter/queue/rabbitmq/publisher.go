package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
)

const (
	dialTimeout    = 3 * time.Second
	minRedialDelay = time.Second
	maxRedialDelay = 30 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out its redial
// delay or another caller is already dialing.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

// Publisher sends booking events to a durable queue on the default exchange.
// The connection is opened lazily and reopened after any failure. Only one
// caller dials at a time and never under p.mu; everyone else fails fast
// until the connection is back.
type Publisher struct {
	url   string
	queue string
	log   *logrus.Logger
	clock clock.Clock
	dial  func(url string) (*amqp.Connection, error)

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
	backoff time.Duration
}

func NewPublisher(url, queue string, log *logrus.Logger) *Publisher {
	return &Publisher{
		url:     url,
		queue:   queue,
		log:     log,
		clock:   clock.Real{},
		dial:    dialBroker,
		backoff: minRedialDelay,
	}
}

func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

func (p *Publisher) Publish(ctx context.Context, event domain.BookingEvent) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		MessageId:    fmt.Sprintf("%s:%s", event.BookingRef, event.Type),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.drop(ch)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	return nil
}

// channel returns the open channel or dials a new one. While a dial is in
// progress, or the redial delay has not passed, it returns
// ErrBrokerUnavailable without blocking.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.clock.Now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.dialing = true
	p.resetLocked()
	p.mu.Unlock()

	conn, ch, err := p.open()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false

	if err != nil {
		p.retryAt = p.clock.Now().Add(p.backoff)
		p.log.WithError(err).WithField("retry_in", p.backoff).Warn("event broker unreachable")
		if p.backoff < maxRedialDelay {
			p.backoff *= 2
			if p.backoff > maxRedialDelay {
				p.backoff = maxRedialDelay
			}
		}
		return nil, err
	}

	p.conn, p.ch = conn, ch
	p.backoff = minRedialDelay
	p.retryAt = time.Time{}
	p.log.WithField("queue", p.queue).Info("connected to event broker")
	return ch, nil
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	return conn, ch, nil
}

// drop discards ch after a failed publish unless it was already replaced.
func (p *Publisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.resetLocked()
	}
}

// resetLocked closes the current connection. Callers hold p.mu.
func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func Encode(event domain.BookingEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func Decode(body []byte) (domain.BookingEvent, error) {
	var event domain.BookingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Type == "" {
		return event, fmt.Errorf("unmarshal event: missing type")
	}
	return event, nil
}
