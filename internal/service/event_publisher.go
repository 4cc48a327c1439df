package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/pkg/kafka"
	"github.com/tavolo-club/reservation-service/pkg/logger"
	"go.uber.org/zap"
)

// EventPublisher defines the interface for publishing reservation events
type EventPublisher interface {
	// PublishReservationCreated publishes an accepted reservation
	PublishReservationCreated(ctx context.Context, event *domain.ReservationEvent) error

	// PublishReservationCancelled publishes a cancellation
	PublishReservationCancelled(ctx context.Context, event *domain.ReservationEvent) error

	// Close closes the publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "reservation-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reservation-service"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "reservation-service-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishReservationCreated publishes an accepted reservation
func (p *KafkaEventPublisher) PublishReservationCreated(ctx context.Context, event *domain.ReservationEvent) error {
	return p.publish(ctx, event)
}

// PublishReservationCancelled publishes a cancellation
func (p *KafkaEventPublisher) PublishReservationCancelled(ctx context.Context, event *domain.ReservationEvent) error {
	return p.publish(ctx, event)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, event *domain.ReservationEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	headers := map[string]string{
		"event_type": string(event.Type),
		"source":     p.serviceName,
	}

	// Delivery must outlive the request-scoped context; Close flushes
	// whatever is still buffered.
	ctx = context.WithoutCancel(ctx)
	eventType, experienceID := string(event.Type), event.ExperienceID

	// Key by experience so consumers see one experience's events in order
	return p.producer.ProduceAsync(ctx, p.topic, experienceID, event, headers, func(err error) {
		logger.Get().Warn("Event delivery failed",
			zap.String("event_type", eventType),
			zap.String("experience_id", experienceID),
			zap.Error(err),
		)
	})
}

// Close closes the underlying producer
func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

// NoOpEventPublisher discards events; used when Kafka is not configured
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a no-op publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishReservationCreated does nothing
func (p *NoOpEventPublisher) PublishReservationCreated(ctx context.Context, event *domain.ReservationEvent) error {
	return nil
}

// PublishReservationCancelled does nothing
func (p *NoOpEventPublisher) PublishReservationCancelled(ctx context.Context, event *domain.ReservationEvent) error {
	return nil
}

// Close does nothing
func (p *NoOpEventPublisher) Close() error {
	return nil
}
