package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mamadbah2/stockledger/internal/domain/models"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher emits notifications as JSON events on a topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher creates a notifier publishing to exchange.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}
}

type alertEvent struct {
	Kind      models.AlertKind `json:"kind"`
	SKU       string           `json:"sku,omitempty"`
	Stock     int64            `json:"stock"`
	Threshold float64          `json:"threshold,omitempty"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	SentAt    time.Time        `json:"sentAt"`
}

// RoutingKey returns alert.<kind>.<sku> (e.g. alert.low.sku-001). Digests use "all" as the sku part.
func RoutingKey(n models.Notification) string {
	sku := strings.ToLower(strings.NewReplacer(".", "_", "*", "_", "#", "_", " ", "_").Replace(n.SKU))
	if sku == "" {
		sku = "all"
	}
	return fmt.Sprintf("alert.%s.%s", n.Kind, sku)
}

// Send publishes n.
func (p *Publisher) Send(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(alertEvent{
		Kind:      n.Kind,
		SKU:       n.SKU,
		Stock:     n.Stock,
		Threshold: n.Threshold,
		Subject:   n.Subject,
		Body:      n.Body,
		SentAt:    p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("could not marshal alert: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		RoutingKey(n), // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
