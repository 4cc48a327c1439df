package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tavolo-club/reservation-service/internal/domain"
	pkgredis "github.com/tavolo-club/reservation-service/pkg/redis"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AvailabilityCache publishes per-slot remaining-seat counters after
// every committed mutation so other consumers (storefront listings,
// sibling replicas) can answer availability reads without touching the
// ledger. The cache is never the capacity arbiter; the ledger under its
// lock is.
type AvailabilityCache interface {
	Publish(ctx context.Context, exp *domain.Experience) error
}

const availabilityTTL = 24 * time.Hour

// RedisAvailabilityCache implements AvailabilityCache on Redis
type RedisAvailabilityCache struct {
	client *pkgredis.Client
}

// NewRedisAvailabilityCache creates a new RedisAvailabilityCache
func NewRedisAvailabilityCache(client *pkgredis.Client) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client}
}

// availabilityKey builds the counter key for one slot
func availabilityKey(experienceID, date string) string {
	return fmt.Sprintf("experience:availability:%s:%s", experienceID, date)
}

// Publish writes remaining-seat counters for every slot of the
// experience in one round trip.
func (c *RedisAvailabilityCache) Publish(ctx context.Context, exp *domain.Experience) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("experience_id", exp.ID),
		attribute.Int("slots", len(exp.Dates)),
	)

	if len(exp.Dates) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	pairs := make([]interface{}, 0, len(exp.Dates)*2)
	for i := range exp.Dates {
		slot := &exp.Dates[i]
		pairs = append(pairs, availabilityKey(exp.ID, slot.Date), slot.RemainingSeats(exp.MaxSeats))
	}

	if err := c.client.MSet(ctx, pairs...).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	// Counters expire on their own if the service stops refreshing them
	for i := range exp.Dates {
		_ = c.client.Client().Expire(ctx, availabilityKey(exp.ID, exp.Dates[i].Date), availabilityTTL).Err()
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// NoopAvailabilityCache is used when Redis is not configured
type NoopAvailabilityCache struct{}

// NewNoopAvailabilityCache creates a no-op cache
func NewNoopAvailabilityCache() *NoopAvailabilityCache {
	return &NoopAvailabilityCache{}
}

// Publish does nothing
func (c *NoopAvailabilityCache) Publish(ctx context.Context, exp *domain.Experience) error {
	return nil
}
