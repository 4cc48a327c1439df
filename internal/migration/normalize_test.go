package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tavolo-club/reservation-service/internal/domain"
)

func legacyExperience() *domain.Experience {
	return &domain.Experience{
		ID:            "exp-1",
		Name:          "Chef's Counter Omakase",
		MaxSeats:      10,
		ReferenceDate: "2026-09-04",
		// SchemaVersion zero marks the legacy flat shape
		LegacyReservedSeats: 5,
		LegacyReservations: []domain.Reservation{
			{ID: "r1", UserID: "u1", UserName: "Mika", Seats: 2, Timestamp: time.Now().UTC()},
			{ID: "r2", UserID: "u2", UserName: "Sam", Seats: 3, Timestamp: time.Now().UTC()},
		},
	}
}

func TestNormalize(t *testing.T) {
	t.Run("should migrate a legacy record into the first slot", func(t *testing.T) {
		exp, err := Normalize(legacyExperience(), 4)

		require.NoError(t, err)
		assert.Equal(t, domain.SchemaVersionSlotted, exp.SchemaVersion)
		require.Len(t, exp.Dates, 4)
		assert.Equal(t, "2026-09-04", exp.Dates[0].Date)

		first := exp.Dates[0]
		assert.Equal(t, 5, first.ReservedSeats)
		require.Len(t, first.Reservations, 2)
		assert.Equal(t, "2026-09-04", first.Reservations[0].Date)

		// Legacy fields are cleared so the record never migrates twice
		assert.Zero(t, exp.LegacyReservedSeats)
		assert.Nil(t, exp.LegacyReservations)

		for _, slot := range exp.Dates[1:] {
			assert.Zero(t, slot.ReservedSeats)
			assert.Empty(t, slot.Reservations)
		}
	})

	t.Run("should conserve total seats across migration", func(t *testing.T) {
		legacy := legacyExperience()
		want := 0
		for _, r := range legacy.LegacyReservations {
			want += r.Seats
		}

		exp, err := Normalize(legacy, 8)

		require.NoError(t, err)
		assert.Equal(t, want, exp.TotalReservedSeats())
		assert.NoError(t, exp.CheckInvariants())
	})

	t.Run("should be idempotent", func(t *testing.T) {
		exp, err := Normalize(legacyExperience(), 4)
		require.NoError(t, err)

		again, err := Normalize(exp, 4)
		require.NoError(t, err)

		assert.Equal(t, exp.Dates, again.Dates)
		assert.Equal(t, exp.TotalReservedSeats(), again.TotalReservedSeats())
	})

	t.Run("should pass canonical records through untouched", func(t *testing.T) {
		exp := &domain.Experience{
			ID:            "exp-1",
			MaxSeats:      10,
			SchemaVersion: domain.SchemaVersionSlotted,
			Dates: []domain.DateSlot{
				{Date: "2026-09-11", ReservedSeats: 2, Reservations: []domain.Reservation{
					{ID: "r1", UserID: "u1", Seats: 2, Date: "2026-09-11"},
				}},
				{Date: "2026-09-04"},
			},
		}

		got, err := Normalize(exp, 4)

		require.NoError(t, err)
		// Slots are only re-sorted, nothing regenerated
		require.Len(t, got.Dates, 2)
		assert.Equal(t, "2026-09-04", got.Dates[0].Date)
		assert.Equal(t, "2026-09-11", got.Dates[1].Date)
		assert.Equal(t, 2, got.Dates[1].ReservedSeats)
	})

	t.Run("should drop malformed legacy reservations and keep the rest", func(t *testing.T) {
		legacy := legacyExperience()
		legacy.LegacyReservations = append(legacy.LegacyReservations,
			domain.Reservation{ID: "bad-1", UserID: "", Seats: 2},
			domain.Reservation{ID: "bad-2", UserID: "u3", Seats: 0},
		)

		exp, err := Normalize(legacy, 4)

		require.NoError(t, err)
		assert.Equal(t, 5, exp.TotalReservedSeats())
		assert.Len(t, exp.Dates[0].Reservations, 2)
	})

	t.Run("should fall back to today for a malformed reference date", func(t *testing.T) {
		legacy := legacyExperience()
		legacy.ReferenceDate = "next friday"

		exp, err := Normalize(legacy, 2)

		require.NoError(t, err)
		today := time.Now().UTC().Format(domain.DateFormat)
		assert.Equal(t, today, exp.Dates[0].Date)
	})

	t.Run("should reject a nil record", func(t *testing.T) {
		_, err := Normalize(nil, 4)
		assert.Error(t, err)
	})
}

func TestNormalizeAll(t *testing.T) {
	t.Run("should skip unrecoverable records", func(t *testing.T) {
		good := legacyExperience()
		out := NormalizeAll([]*domain.Experience{good, nil}, 4)

		require.Len(t, out, 1)
		assert.Equal(t, "exp-1", out[0].ID)
	})

	t.Run("should handle an empty ledger", func(t *testing.T) {
		assert.Empty(t, NormalizeAll(nil, 4))
	})
}
