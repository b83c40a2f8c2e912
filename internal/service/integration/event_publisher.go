package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/pkg/rabbitmq"
)

const (
	RoutingKeyEssaySubmitted = "essay.submitted"
	RoutingKeyEssayDeleted   = "essay.deleted"
)

type EventPublisher interface {
	PublishEssaySubmitted(ctx context.Context, event *models.EssaySubmittedEvent) error
	PublishEssayDeleted(ctx context.Context, event *models.EssayDeletedEvent) error
	Close() error
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  channelPublisher
	closer   func() error
	exchange string
	logger   zerolog.Logger
}

func NewRabbitMQPublisher(url, exchange string, logger zerolog.Logger) (EventPublisher, error) {
	conn, channel, err := rabbitmq.Open(url, exchange)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("exchange", exchange).
		Msg("Connected to RabbitMQ")

	return &rabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		closer:   channel.Close,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *rabbitMQPublisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	return nil
}

func (p *rabbitMQPublisher) PublishEssaySubmitted(ctx context.Context, event *models.EssaySubmittedEvent) error {
	if err := p.publish(ctx, RoutingKeyEssaySubmitted, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("essay_id", event.EssayID).
		Int("characters", event.Characters).
		Msg("Essay submitted event published")

	return nil
}

func (p *rabbitMQPublisher) PublishEssayDeleted(ctx context.Context, event *models.EssayDeletedEvent) error {
	if err := p.publish(ctx, RoutingKeyEssayDeleted, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("essay_id", event.EssayID).
		Bool("by_teacher", event.ByTeacher).
		Msg("Essay deleted event published")

	return nil
}

func (p *rabbitMQPublisher) Close() error {
	if p.closer != nil {
		if err := p.closer(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when the broker is disabled or unreachable.
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishEssaySubmitted(context.Context, *models.EssaySubmittedEvent) error {
	return nil
}

func (noopPublisher) PublishEssayDeleted(context.Context, *models.EssayDeletedEvent) error {
	return nil
}

func (noopPublisher) Close() error { return nil }
