package repository

import (
	"context"

	"github.com/tavolo-club/reservation-service/internal/domain"
)

// LedgerStore is the persistence contract the reservation engine depends
// on. Load returns raw records (canonical or legacy, the normalizer
// sorts that out); Save persists the full ledger atomically.
//
// A store may impose a serialized-size budget. When the budget is
// exceeded it must either reject the write with
// domain.ErrStorageQuotaExceeded or fall back to a reduced schema that
// still conserves every (userId, seats, date) triple. Dropping display
// fields is acceptable; dropping seat counts is not.
type LedgerStore interface {
	Load(ctx context.Context) ([]*domain.Experience, error)
	Save(ctx context.Context, exps []*domain.Experience) error
}
