package metrics

import (
	"context"
	"sync"

	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Reservation counters
	ReservationsCreated   *telemetry.Counter
	ReservationsCancelled *telemetry.Counter
	ReservationsRejected  *telemetry.Counter

	// Persistence counters
	StorageFallbacks *telemetry.Counter
	StorageFailures  *telemetry.Counter

	// Histograms
	SlotOccupancy *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all reservation metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	ReservationsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_created_total",
		Description: "Total number of accepted seat reservations",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_cancelled_total",
		Description: "Total number of cancelled reservations",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "reservation_rejected_total",
		Description: "Total number of rejected reserve attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	StorageFallbacks, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storage_reduced_schema_fallback_total",
		Description: "Times the ledger was persisted in the reduced schema",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	StorageFailures, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storage_save_failures_total",
		Description: "Ledger saves that failed after retries",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SlotOccupancy, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "slot_occupancy_ratio",
		Description: "Reserved seats over capacity at the mutated slot",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordReservation records an accepted reservation
func RecordReservation(ctx context.Context, experienceID, date string, seats int) {
	ReservationsCreated.Add(ctx, 1,
		attribute.String("experience_id", experienceID),
		attribute.String("date", date),
		attribute.Int("seats", seats),
	)
}

// RecordCancellation records a cancelled reservation
func RecordCancellation(ctx context.Context, experienceID, date string) {
	ReservationsCancelled.Add(ctx, 1,
		attribute.String("experience_id", experienceID),
		attribute.String("date", date),
	)
}

// RecordRejection records a rejected reserve attempt with its reason
func RecordRejection(ctx context.Context, experienceID, reason string) {
	ReservationsRejected.Add(ctx, 1,
		attribute.String("experience_id", experienceID),
		attribute.String("reason", reason),
	)
}

// RecordOccupancy records the post-mutation occupancy of a slot
func RecordOccupancy(ctx context.Context, experienceID string, reserved, capacity int) {
	if capacity <= 0 {
		return
	}
	SlotOccupancy.Record(ctx, float64(reserved)/float64(capacity),
		attribute.String("experience_id", experienceID),
	)
}
