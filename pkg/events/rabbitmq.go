package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/pkg/circuit"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const dialTimeout = 5 * time.Second

// RabbitPublisher keeps one connection and channel open and re-dials after
// any failure. Calls go through a circuit breaker so a dead broker costs one
// fast error per request instead of a dial timeout.
type RabbitPublisher struct {
	url     string
	queue   string
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(cfg config.EventsConfig, logger *zap.Logger, opts ...circuit.Option) *RabbitPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := circuit.NewBreaker("rabbitmq", circuit.Config{
		Threshold:        cfg.BreakerThreshold,
		Timeout:          cfg.BreakerTimeout,
		SuccessThreshold: 1,
		MaxHalfOpen:      1,
	}, logger, opts...)

	return &RabbitPublisher{
		url:     cfg.URL,
		queue:   cfg.Queue,
		timeout: cfg.PublishTimeout,
		breaker: breaker,
		logger:  logger,
	}
}

// Breaker exposes the breaker state for health reporting
func (p *RabbitPublisher) Breaker() *circuit.Breaker {
	return p.breaker
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return p.breaker.Execute(func() error {
		return p.publish(ctx, event, body)
	})
}

func (p *RabbitPublisher) publish(ctx context.Context, event Event, body []byte) error {
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         event.Type,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.drop(ch)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// channel returns the open channel, connecting first when there is none.
// p.mu is never held across network I/O; if two callers connect at once the
// loser closes its connection and uses the winner's.
func (p *RabbitPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.liveLocked() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	conn, ch, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveLocked() {
		_ = ch.Close()
		_ = conn.Close()
		return p.ch, nil
	}
	p.resetLocked()
	p.conn, p.ch = conn, ch
	p.logger.Info("RabbitMQ publisher connected", zap.String("queue", p.queue))
	return ch, nil
}

func (p *RabbitPublisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: contextDial(ctx)})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return conn, ch, nil
}

// contextDial bounds the TCP connect and the AMQP handshake by ctx, capped at
// dialTimeout. The library clears the deadline once the handshake completes.
func contextDial(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline := time.Now().Add(dialTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}

		dialer := net.Dialer{Deadline: deadline}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// drop forgets ch after a failed publish unless someone already replaced it
func (p *RabbitPublisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.resetLocked()
	}
}

// must hold p.mu
func (p *RabbitPublisher) liveLocked() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

// must hold p.mu
func (p *RabbitPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
