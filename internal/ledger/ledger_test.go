package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tavolo-club/reservation-service/internal/domain"
)

func seedLedger(ids ...string) *Ledger {
	exps := make([]*domain.Experience, 0, len(ids))
	for _, id := range ids {
		exps = append(exps, &domain.Experience{
			ID:            id,
			MaxSeats:      10,
			SchemaVersion: domain.SchemaVersionSlotted,
			Dates:         []domain.DateSlot{{Date: "2026-09-04"}},
		})
	}
	l := New()
	l.Seed(exps)
	return l
}

func TestGet(t *testing.T) {
	l := seedLedger("exp-1", "exp-2")

	exp, ok := l.Get("exp-1")
	require.True(t, ok)
	assert.Equal(t, "exp-1", exp.ID)

	_, ok = l.Get("exp-404")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	l := seedLedger("exp-b", "exp-a", "exp-c")

	out := l.List()

	require.Len(t, out, 3)
	assert.Equal(t, "exp-a", out[0].ID)
	assert.Equal(t, "exp-b", out[1].ID)
	assert.Equal(t, "exp-c", out[2].ID)
}

func TestUpdate(t *testing.T) {
	t.Run("should commit mutation and publish it to readers", func(t *testing.T) {
		l := seedLedger("exp-1")

		err := l.Update("exp-1",
			func(exp *domain.Experience) error {
				exp.Dates[0].ReservedSeats = 4
				exp.Dates[0].Reservations = []domain.Reservation{
					{ID: "r1", UserID: "u1", Seats: 4, Date: "2026-09-04"},
				}
				return nil
			},
			func(snapshot []*domain.Experience) error { return nil },
		)

		require.NoError(t, err)
		exp, _ := l.Get("exp-1")
		assert.Equal(t, 4, exp.Dates[0].ReservedSeats)
	})

	t.Run("should return error for unknown experience", func(t *testing.T) {
		l := seedLedger("exp-1")

		err := l.Update("exp-404", func(exp *domain.Experience) error { return nil }, nil)
		assert.ErrorIs(t, err, domain.ErrExperienceNotFound)
	})

	t.Run("should roll back when mutate fails", func(t *testing.T) {
		l := seedLedger("exp-1")

		err := l.Update("exp-1",
			func(exp *domain.Experience) error {
				exp.Dates[0].ReservedSeats = 99
				return errors.New("validation failed after partial write")
			},
			nil,
		)

		require.Error(t, err)
		exp, _ := l.Get("exp-1")
		assert.Equal(t, 0, exp.Dates[0].ReservedSeats)
	})

	t.Run("should roll back when commit fails", func(t *testing.T) {
		l := seedLedger("exp-1")

		err := l.Update("exp-1",
			func(exp *domain.Experience) error {
				exp.Dates[0].ReservedSeats = 4
				return nil
			},
			func(snapshot []*domain.Experience) error { return errors.New("disk gone") },
		)

		require.Error(t, err)
		exp, _ := l.Get("exp-1")
		assert.Equal(t, 0, exp.Dates[0].ReservedSeats)

		// A later update starts from the rolled-back state
		err = l.Update("exp-1",
			func(exp *domain.Experience) error {
				assert.Equal(t, 0, exp.Dates[0].ReservedSeats)
				return nil
			},
			nil,
		)
		require.NoError(t, err)
	})

	t.Run("commit snapshot contains every experience", func(t *testing.T) {
		l := seedLedger("exp-1", "exp-2", "exp-3")

		var got []string
		err := l.Update("exp-2",
			func(exp *domain.Experience) error {
				exp.Dates[0].ReservedSeats = 1
				exp.Dates[0].Reservations = []domain.Reservation{{ID: "r1", UserID: "u1", Seats: 1, Date: "2026-09-04"}}
				return nil
			},
			func(snapshot []*domain.Experience) error {
				for _, e := range snapshot {
					got = append(got, e.ID)
					if e.ID == "exp-2" {
						// The snapshot carries the pending mutation
						if e.Dates[0].ReservedSeats != 1 {
							return errors.New("snapshot missing pending mutation")
						}
					}
				}
				return nil
			},
		)

		require.NoError(t, err)
		assert.Equal(t, []string{"exp-1", "exp-2", "exp-3"}, got)
	})

	t.Run("readers never observe uncommitted state", func(t *testing.T) {
		l := seedLedger("exp-1")

		err := l.Update("exp-1",
			func(exp *domain.Experience) error {
				exp.Dates[0].ReservedSeats = 7
				return nil
			},
			func(snapshot []*domain.Experience) error {
				// Mid-commit reads still see the old state
				mid, _ := l.Get("exp-1")
				assert.Equal(t, 0, mid.Dates[0].ReservedSeats)
				return nil
			},
		)

		require.NoError(t, err)
		after, _ := l.Get("exp-1")
		assert.Equal(t, 7, after.Dates[0].ReservedSeats)
	})
}

func TestUpdateConcurrent(t *testing.T) {
	// Concurrent single-seat updates across two experiences must neither
	// lose increments nor deadlock on the cross-experience snapshot.
	l := seedLedger("exp-1", "exp-2")

	const perExperience = 5
	var wg sync.WaitGroup
	for _, id := range []string{"exp-1", "exp-2"} {
		for i := 0; i < perExperience; i++ {
			wg.Add(1)
			go func(id string, n int) {
				defer wg.Done()
				err := l.Update(id,
					func(exp *domain.Experience) error {
						slot := &exp.Dates[0]
						slot.Reservations = append(slot.Reservations, domain.Reservation{
							ID:     fmt.Sprintf("%s-r%d", id, n),
							UserID: fmt.Sprintf("u-%d", n),
							Seats:  1,
							Date:   slot.Date,
						})
						slot.ReservedSeats++
						return nil
					},
					func(snapshot []*domain.Experience) error { return nil },
				)
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range []string{"exp-1", "exp-2"} {
		exp, ok := l.Get(id)
		require.True(t, ok)
		assert.Equal(t, perExperience, exp.Dates[0].ReservedSeats)
		assert.Len(t, exp.Dates[0].Reservations, perExperience)
		assert.NoError(t, exp.CheckInvariants())
	}
}
