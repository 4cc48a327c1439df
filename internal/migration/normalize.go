// Package migration upgrades stored experience records to the canonical
// per-date ledger shape. Records carry an explicit schema version; the
// legacy flat shape (version 0) holds a single implicit reservation list
// with no date partition.
package migration

import (
	"time"

	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/pkg/logger"
	"go.uber.org/zap"
)

// Normalize migrates an experience record to the slotted schema.
// Canonical records pass through untouched, so the migration is
// idempotent. Legacy reservations land in the first generated slot and
// the slot counter is set to their seat total; the migration never loses
// or duplicates seats.
//
// Malformed legacy records (bad reference date, reservation list that
// does not match the recorded count) are recovered locally: the record
// is treated as having the reservations it can prove, logged as a
// data-quality warning, never fatal.
func Normalize(exp *domain.Experience, horizon int) (*domain.Experience, error) {
	if exp == nil {
		return nil, domain.ErrExperienceNotFound
	}
	if horizon < 1 {
		horizon = domain.DefaultHorizon
	}

	if exp.SchemaVersion >= domain.SchemaVersionSlotted && len(exp.Dates) > 0 {
		exp.SortSlots()
		return exp, nil
	}

	log := logger.Get()

	reference := referenceDate(exp)
	slots, err := domain.GenerateSlots(reference, horizon)
	if err != nil {
		return nil, err
	}

	legacy := sanitizeLegacy(exp, log)
	if len(legacy) > 0 {
		first := &slots[0]
		total := 0
		for _, r := range legacy {
			r.Date = first.Date
			first.Reservations = append(first.Reservations, r)
			total += r.Seats
		}
		first.ReservedSeats = total
	}

	exp.Dates = slots
	exp.SchemaVersion = domain.SchemaVersionSlotted
	exp.LegacyReservations = nil
	exp.LegacyReservedSeats = 0
	exp.SortSlots()

	if err := exp.CheckInvariants(); err != nil {
		return nil, err
	}
	return exp, nil
}

// NormalizeAll migrates a loaded ledger in place, skipping records that
// cannot be recovered rather than failing the whole load.
func NormalizeAll(exps []*domain.Experience, horizon int) []*domain.Experience {
	log := logger.Get()
	out := make([]*domain.Experience, 0, len(exps))
	for _, exp := range exps {
		normalized, err := Normalize(exp, horizon)
		if err != nil {
			id := ""
			if exp != nil {
				id = exp.ID
			}
			log.Warn("dropping unrecoverable experience record",
				zap.String("experience_id", id),
				zap.Error(err),
			)
			continue
		}
		out = append(out, normalized)
	}
	return out
}

// referenceDate picks the slot-generation anchor: the record's own
// reference date when parseable, today otherwise.
func referenceDate(exp *domain.Experience) time.Time {
	if exp.ReferenceDate != "" {
		if t, err := domain.ParseSlotDate(exp.ReferenceDate); err == nil {
			return t
		}
		logger.Get().Warn("experience has malformed reference date, using today",
			zap.String("experience_id", exp.ID),
			zap.String("reference_date", exp.ReferenceDate),
		)
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// sanitizeLegacy returns the legacy reservations that pass validation.
// A mismatch between the recorded seat count and the provable total is
// resolved in favor of the reservation list, since that is what the
// migration carries forward.
func sanitizeLegacy(exp *domain.Experience, log *logger.Logger) []domain.Reservation {
	valid := make([]domain.Reservation, 0, len(exp.LegacyReservations))
	total := 0
	for _, r := range exp.LegacyReservations {
		if err := r.Validate(); err != nil {
			log.Warn("dropping malformed legacy reservation",
				zap.String("experience_id", exp.ID),
				zap.String("user_id", r.UserID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, r)
		total += r.Seats
	}
	if exp.LegacyReservedSeats != 0 && exp.LegacyReservedSeats != total {
		log.Warn("legacy seat counter disagrees with reservation list",
			zap.String("experience_id", exp.ID),
			zap.Int("recorded", exp.LegacyReservedSeats),
			zap.Int("derived", total),
		)
	}
	return valid
}
