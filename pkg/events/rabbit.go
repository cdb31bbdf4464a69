// Package events publishes domain events to RabbitMQ so downstream
// consumers (push notifications, analytics) learn about new letters.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultExchange = "goaljournal.events"

	RoutingKeyLetterCreated = "letter.created"
	RoutingKeyGoalDeleted   = "goal.deleted"
)

// LetterCreated is the payload for letter.created events.
type LetterCreated struct {
	LetterID   string    `json:"letterId"`
	GoalID     string    `json:"goalId"`
	UserID     string    `json:"userId"`
	LetterType string    `json:"letterType"`
	IsManual   bool      `json:"isManual"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GoalDeleted is the payload for goal.deleted events.
type GoalDeleted struct {
	GoalID    string    `json:"goalId"`
	UserID    string    `json:"userId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// RabbitPublisher publishes JSON events on a topic exchange. Publishing is
// best effort: a broker outage must never fail the user-facing operation,
// so errors are logged and swallowed. A nil *RabbitPublisher is a valid
// no-op publisher.
type RabbitPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitPublisher connects to the broker and declares the exchange.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	url = strings.TrimSpace(url)
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	p := &RabbitPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return err
	}
	p.conn = conn
	p.channel = channel
	return nil
}

// Publish sends one event. Safe to call on a nil publisher.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("encode event failed", "routing_key", routingKey, "err", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publishLocked(ctx, routingKey, body); err != nil {
		// One reconnect attempt covers broker restarts.
		if reconnErr := p.reconnectLocked(); reconnErr != nil {
			slog.Warn("publish event failed", "routing_key", routingKey, "err", err)
			return
		}
		if err := p.publishLocked(ctx, routingKey, body); err != nil {
			slog.Warn("publish event failed", "routing_key", routingKey, "err", err)
		}
	}
}

func (p *RabbitPublisher) publishLocked(ctx context.Context, routingKey string, body []byte) error {
	if p.channel == nil || p.channel.IsClosed() {
		return amqp.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *RabbitPublisher) reconnectLocked() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return p.connect()
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
