package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/internal/dto"
	"github.com/tavolo-club/reservation-service/internal/ledger"
	"github.com/tavolo-club/reservation-service/internal/metrics"
	"github.com/tavolo-club/reservation-service/internal/repository"
	"github.com/tavolo-club/reservation-service/pkg/logger"
	"github.com/tavolo-club/reservation-service/pkg/retry"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// User is the identity supplied by the authentication collaborator. The
// engine trusts it as given.
type User struct {
	ID     string
	Name   string
	Avatar string
}

// ReservationService defines the interface for the reservation engine
type ReservationService interface {
	// Reserve books seats for a user, at an explicit date or the next
	// available slot
	Reserve(ctx context.Context, user User, experienceID string, req *dto.ReserveRequest) (*dto.ReserveResponse, error)

	// Cancel removes a user's reservation; date may be empty, in which
	// case the earliest matching reservation is cancelled
	Cancel(ctx context.Context, experienceID, userID, date string) (*dto.CancelResponse, error)

	// Snapshot returns experience metadata combined with one slot: the
	// explicit date or the next available
	Snapshot(ctx context.Context, experienceID, date string) (*dto.ExperienceView, error)

	// NextAvailable returns the earliest slot with free capacity
	NextAvailable(ctx context.Context, experienceID string) (*dto.SlotView, error)

	// ListExperiences returns catalog summaries with availability
	ListExperiences(ctx context.Context) []*dto.ExperienceSummary
}

// reservationService implements ReservationService. It is the only
// component allowed to mutate the ledger.
type reservationService struct {
	ledger         *ledger.Ledger
	store          repository.LedgerStore
	cache          repository.AvailabilityCache
	eventPublisher EventPublisher
	saveRetry      *retry.Config
	log            *logger.Logger
}

// ReservationServiceConfig contains configuration for the engine
type ReservationServiceConfig struct {
	// SaveRetries is how many times a transient save failure is retried
	SaveRetries int
}

// NewReservationService creates a new reservation engine
func NewReservationService(
	ldg *ledger.Ledger,
	store repository.LedgerStore,
	cache repository.AvailabilityCache,
	eventPublisher EventPublisher,
	cfg *ReservationServiceConfig,
) ReservationService {
	saveRetry := retry.DefaultConfig()
	if cfg != nil && cfg.SaveRetries >= 0 {
		saveRetry.MaxRetries = cfg.SaveRetries
	}
	if cache == nil {
		cache = repository.NewNoopAvailabilityCache()
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &reservationService{
		ledger:         ldg,
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		saveRetry:      saveRetry,
		log:            logger.Get(),
	}
}

// Reserve books seats for a user. All preconditions are checked before
// any state changes, and a failed persist rolls the mutation back, so a
// failed reserve is never partially visible.
func (s *reservationService) Reserve(ctx context.Context, user User, experienceID string, req *dto.ReserveRequest) (*dto.ReserveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.reserve")
	defer span.End()

	if req == nil || req.Seats < 1 {
		span.SetStatus(codes.Error, "invalid seats")
		return nil, domain.ErrInvalidSeats
	}
	if strings.TrimSpace(user.ID) == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if experienceID == "" {
		span.SetStatus(codes.Error, "invalid experience_id")
		return nil, domain.ErrInvalidExperienceID
	}
	if req.Date != "" {
		if _, err := domain.ParseSlotDate(req.Date); err != nil {
			span.SetStatus(codes.Error, "invalid date")
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("user_id", user.ID),
		attribute.Int("seats", req.Seats),
		attribute.String("date", req.Date),
	)

	var (
		resp  *dto.ReserveResponse
		event *domain.ReservationEvent
		after *domain.Experience
	)

	err := s.ledger.Update(experienceID,
		func(exp *domain.Experience) error {
			slot, err := resolveSlot(exp, req.Date)
			if err != nil {
				return err
			}
			if _, exists := slot.ReservationBy(user.ID); exists {
				return domain.ErrDuplicateReservation
			}
			if slot.ReservedSeats+req.Seats > exp.MaxSeats {
				return domain.ErrCapacityExceeded
			}

			now := time.Now().UTC()
			res := domain.Reservation{
				ID:         uuid.New().String(),
				UserID:     user.ID,
				UserName:   user.Name,
				UserAvatar: user.Avatar,
				Seats:      req.Seats,
				Timestamp:  now,
				Date:       slot.Date,
			}
			slot.Reservations = append(slot.Reservations, res)
			slot.ReservedSeats += req.Seats

			resp = &dto.ReserveResponse{
				ReservationID: res.ID,
				ExperienceID:  exp.ID,
				Date:          slot.Date,
				Seats:         res.Seats,
				ReservedAt:    now,
				SlotState:     string(slot.State(exp.MaxSeats)),
				SeatsLeft:     slot.RemainingSeats(exp.MaxSeats),
			}
			event = &domain.ReservationEvent{
				Type:          domain.ReservationEventCreated,
				ExperienceID:  exp.ID,
				Date:          slot.Date,
				ReservationID: res.ID,
				UserID:        user.ID,
				Seats:         res.Seats,
				SeatsLeft:     slot.RemainingSeats(exp.MaxSeats),
				OccurredAt:    now,
			}
			after = exp.Clone()
			return nil
		},
		func(snapshot []*domain.Experience) error {
			return s.persist(ctx, snapshot)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRejection(ctx, experienceID, rejectionReason(err))
		return nil, err
	}

	s.afterCommit(event, after)
	metrics.RecordReservation(ctx, experienceID, resp.Date, resp.Seats)
	metrics.RecordOccupancy(ctx, experienceID, after.MaxSeats-resp.SeatsLeft, after.MaxSeats)

	span.SetAttributes(
		attribute.String("reservation_id", resp.ReservationID),
		attribute.String("resolved_date", resp.Date),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Cancel removes a user's entire reservation at one slot. With no date,
// slots are scanned in calendar order and the first match is cancelled.
func (s *reservationService) Cancel(ctx context.Context, experienceID, userID, date string) (*dto.CancelResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer span.End()

	if experienceID == "" {
		span.SetStatus(codes.Error, "invalid experience_id")
		return nil, domain.ErrInvalidExperienceID
	}
	if strings.TrimSpace(userID) == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	if date != "" {
		if _, err := domain.ParseSlotDate(date); err != nil {
			span.SetStatus(codes.Error, "invalid date")
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("user_id", userID),
		attribute.String("date", date),
	)

	var (
		resp  *dto.CancelResponse
		event *domain.ReservationEvent
		after *domain.Experience
	)

	err := s.ledger.Update(experienceID,
		func(exp *domain.Experience) error {
			slot, res, err := findCancelTarget(exp, userID, date)
			if err != nil {
				return err
			}

			removed := *res
			removeReservation(slot, removed.ID)
			slot.ReservedSeats -= removed.Seats

			resp = &dto.CancelResponse{
				ExperienceID:  exp.ID,
				Date:          slot.Date,
				SeatsReleased: removed.Seats,
			}
			event = &domain.ReservationEvent{
				Type:          domain.ReservationEventCancelled,
				ExperienceID:  exp.ID,
				Date:          slot.Date,
				ReservationID: removed.ID,
				UserID:        userID,
				Seats:         removed.Seats,
				SeatsLeft:     slot.RemainingSeats(exp.MaxSeats),
				OccurredAt:    time.Now().UTC(),
			}
			after = exp.Clone()
			return nil
		},
		func(snapshot []*domain.Experience) error {
			return s.persist(ctx, snapshot)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.afterCommit(event, after)
	metrics.RecordCancellation(ctx, experienceID, resp.Date)

	span.SetAttributes(attribute.String("resolved_date", resp.Date))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Snapshot returns a read-only projection of one experience and one
// slot. It never mutates and reads the last committed state without
// taking the mutation lock.
func (s *reservationService) Snapshot(ctx context.Context, experienceID, date string) (*dto.ExperienceView, error) {
	_, span := telemetry.StartSpan(ctx, "service.reservation.snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("date", date),
	)

	exp, ok := s.ledger.Get(experienceID)
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return nil, domain.ErrExperienceNotFound
	}

	view := dto.ExperienceViewFromDomain(exp)
	if date != "" {
		if _, err := domain.ParseSlotDate(date); err != nil {
			span.SetStatus(codes.Error, "invalid date")
			return nil, err
		}
		slot, ok := exp.SlotByDate(date)
		if !ok {
			span.SetStatus(codes.Error, "date not found")
			return nil, domain.ErrDateNotFound
		}
		view.Slot = dto.SlotViewFromDomain(slot, exp.MaxSeats, true)
	} else if slot, ok := exp.NextAvailable(); ok {
		view.Slot = dto.SlotViewFromDomain(slot, exp.MaxSeats, true)
	}
	// A sold-out experience snapshots with no slot rather than an error

	span.SetStatus(codes.Ok, "")
	return view, nil
}

// NextAvailable returns the earliest open slot of an experience
func (s *reservationService) NextAvailable(ctx context.Context, experienceID string) (*dto.SlotView, error) {
	_, span := telemetry.StartSpan(ctx, "service.reservation.next_available")
	defer span.End()
	span.SetAttributes(attribute.String("experience_id", experienceID))

	exp, ok := s.ledger.Get(experienceID)
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return nil, domain.ErrExperienceNotFound
	}

	slot, ok := exp.NextAvailable()
	if !ok {
		span.SetStatus(codes.Error, "sold out")
		return nil, domain.ErrNoAvailableDate
	}

	span.SetAttributes(attribute.String("date", slot.Date))
	span.SetStatus(codes.Ok, "")
	return dto.SlotViewFromDomain(slot, exp.MaxSeats, false), nil
}

// ListExperiences returns catalog summaries with availability
func (s *reservationService) ListExperiences(ctx context.Context) []*dto.ExperienceSummary {
	_, span := telemetry.StartSpan(ctx, "service.reservation.list")
	defer span.End()

	exps := s.ledger.List()
	out := make([]*dto.ExperienceSummary, len(exps))
	for i, exp := range exps {
		out[i] = dto.SummaryFromDomain(exp)
	}

	span.SetAttributes(attribute.Int("count", len(out)))
	span.SetStatus(codes.Ok, "")
	return out
}

// persist saves the ledger snapshot, retrying transient failures with
// backoff. Quota rejections are permanent; retrying cannot shrink the
// payload.
func (s *reservationService) persist(ctx context.Context, snapshot []*domain.Experience) error {
	err := retry.Do(ctx, s.saveRetry, func(ctx context.Context) error {
		saveErr := s.store.Save(ctx, snapshot)
		if saveErr == nil {
			return nil
		}
		if errors.Is(saveErr, domain.ErrStorageQuotaExceeded) {
			return retry.Permanent(saveErr)
		}
		return saveErr
	})
	if err != nil {
		metrics.StorageFailures.Add(ctx, 1)
		s.log.Error("ledger save failed, rolling back mutation", zap.Error(err))
	}
	return err
}

// afterCommit publishes the event and refreshed availability counters.
// Both are best-effort: the reservation is already durable.
func (s *reservationService) afterCommit(event *domain.ReservationEvent, after *domain.Experience) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var pubErr error
		switch event.Type {
		case domain.ReservationEventCancelled:
			pubErr = s.eventPublisher.PublishReservationCancelled(ctx, event)
		default:
			pubErr = s.eventPublisher.PublishReservationCreated(ctx, event)
		}
		if pubErr != nil {
			s.log.Warn("failed to publish reservation event",
				zap.String("type", string(event.Type)),
				zap.String("experience_id", event.ExperienceID),
				zap.Error(pubErr),
			)
		}

		if cacheErr := s.cache.Publish(ctx, after); cacheErr != nil {
			s.log.Warn("failed to refresh availability cache",
				zap.String("experience_id", after.ID),
				zap.Error(cacheErr),
			)
		}
	}()
}

// resolveSlot picks the reservation target: the explicit date when
// given, the next available slot otherwise.
func resolveSlot(exp *domain.Experience, date string) (*domain.DateSlot, error) {
	if date != "" {
		slot, ok := exp.SlotByDate(date)
		if !ok {
			return nil, domain.ErrDateNotFound
		}
		return slot, nil
	}
	slot, ok := exp.NextAvailable()
	if !ok {
		return nil, domain.ErrNoAvailableDate
	}
	return slot, nil
}

// findCancelTarget locates the reservation to cancel. Slots are already
// in calendar order, so the dateless path removes the earliest match.
func findCancelTarget(exp *domain.Experience, userID, date string) (*domain.DateSlot, *domain.Reservation, error) {
	if date != "" {
		slot, ok := exp.SlotByDate(date)
		if !ok {
			return nil, nil, domain.ErrDateNotFound
		}
		res, ok := slot.ReservationBy(userID)
		if !ok {
			return nil, nil, domain.ErrReservationNotFound
		}
		return slot, res, nil
	}
	for i := range exp.Dates {
		if res, ok := exp.Dates[i].ReservationBy(userID); ok {
			return &exp.Dates[i], res, nil
		}
	}
	return nil, nil, domain.ErrReservationNotFound
}

// removeReservation deletes by id, preserving the order of survivors
func removeReservation(slot *domain.DateSlot, reservationID string) {
	for i := range slot.Reservations {
		if slot.Reservations[i].ID == reservationID {
			slot.Reservations = append(slot.Reservations[:i], slot.Reservations[i+1:]...)
			return
		}
	}
}

// rejectionReason labels a failed reserve for metrics
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrNoAvailableDate):
		return "no_available_date"
	case errors.Is(err, domain.ErrDuplicateReservation):
		return "duplicate"
	case errors.Is(err, domain.ErrDateNotFound):
		return "date_not_found"
	case errors.Is(err, domain.ErrExperienceNotFound):
		return "experience_not_found"
	case domain.IsStorageError(err):
		return "storage"
	default:
		return "other"
	}
}
