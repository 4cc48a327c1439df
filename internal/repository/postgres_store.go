package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresLedgerStore implements LedgerStore on PostgreSQL. The ledger
// is the unit of persistence, so Save replaces the stored state inside
// one transaction; readers never observe a partial write.
type PostgresLedgerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresLedgerStore creates a new PostgresLedgerStore
func NewPostgresLedgerStore(pool *pgxpool.Pool) *PostgresLedgerStore {
	return &PostgresLedgerStore{pool: pool}
}

// Load reassembles the ledger from the experiences, date_slots and
// reservations tables.
func (s *PostgresLedgerStore) Load(ctx context.Context) ([]*domain.Experience, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.load")
	defer span.End()

	exps, err := s.loadExperiences(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	byID := make(map[string]*domain.Experience, len(exps))
	for _, exp := range exps {
		byID[exp.ID] = exp
	}

	if err := s.loadSlots(ctx, byID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.loadReservations(ctx, byID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, exp := range exps {
		exp.SortSlots()
	}

	span.SetAttributes(attribute.Int("experiences", len(exps)))
	span.SetStatus(codes.Ok, "")
	return exps, nil
}

func (s *PostgresLedgerStore) loadExperiences(ctx context.Context) ([]*domain.Experience, error) {
	query := `
		SELECT id, name, description, host, location, price_label, image_url,
		       max_seats, reference_date, schema_version
		FROM experiences
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query experiences: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var exps []*domain.Experience
	for rows.Next() {
		exp := &domain.Experience{}
		if err := rows.Scan(
			&exp.ID, &exp.Name, &exp.Description, &exp.Host, &exp.Location,
			&exp.PriceLabel, &exp.ImageURL, &exp.MaxSeats, &exp.ReferenceDate,
			&exp.SchemaVersion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		exps = append(exps, exp)
	}
	return exps, rows.Err()
}

func (s *PostgresLedgerStore) loadSlots(ctx context.Context, byID map[string]*domain.Experience) error {
	query := `
		SELECT experience_id, slot_date, reserved_seats
		FROM date_slots
		ORDER BY experience_id, slot_date
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: failed to query date slots: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var expID, date string
		var reserved int
		if err := rows.Scan(&expID, &date, &reserved); err != nil {
			return fmt.Errorf("failed to scan date slot: %w", err)
		}
		exp, ok := byID[expID]
		if !ok {
			continue
		}
		exp.Dates = append(exp.Dates, domain.DateSlot{
			Date:          date,
			ReservedSeats: reserved,
			Reservations:  []domain.Reservation{},
		})
	}
	return rows.Err()
}

func (s *PostgresLedgerStore) loadReservations(ctx context.Context, byID map[string]*domain.Experience) error {
	// position preserves arrival order within a slot
	query := `
		SELECT id, experience_id, slot_date, user_id, user_name, user_avatar,
		       seats, created_at
		FROM reservations
		ORDER BY experience_id, slot_date, position
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: failed to query reservations: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var res domain.Reservation
		var expID string
		if err := rows.Scan(
			&res.ID, &expID, &res.Date, &res.UserID, &res.UserName,
			&res.UserAvatar, &res.Seats, &res.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to scan reservation: %w", err)
		}
		exp, ok := byID[expID]
		if !ok {
			continue
		}
		if slot, ok := exp.SlotByDate(res.Date); ok {
			slot.Reservations = append(slot.Reservations, res)
		}
	}
	return rows.Err()
}

// Save replaces the stored ledger inside a single transaction.
func (s *PostgresLedgerStore) Save(ctx context.Context, exps []*domain.Experience) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.save")
	defer span.End()
	span.SetAttributes(attribute.Int("experiences", len(exps)))

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range []string{"reservations", "date_slots", "experiences"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: failed to clear %s: %v", domain.ErrStorageUnavailable, table, err)
		}
	}

	batch := &pgx.Batch{}
	for _, exp := range exps {
		batch.Queue(`
			INSERT INTO experiences (
				id, name, description, host, location, price_label, image_url,
				max_seats, reference_date, schema_version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			exp.ID, exp.Name, exp.Description, exp.Host, exp.Location,
			exp.PriceLabel, exp.ImageURL, exp.MaxSeats, exp.ReferenceDate,
			exp.SchemaVersion,
		)
		for _, slot := range exp.Dates {
			batch.Queue(`
				INSERT INTO date_slots (experience_id, slot_date, reserved_seats)
				VALUES ($1, $2, $3)`,
				exp.ID, slot.Date, slot.ReservedSeats,
			)
			for pos, res := range slot.Reservations {
				batch.Queue(`
					INSERT INTO reservations (
						id, experience_id, slot_date, position, user_id,
						user_name, user_avatar, seats, created_at
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					res.ID, exp.ID, slot.Date, pos, res.UserID,
					res.UserName, res.UserAvatar, res.Seats, res.Timestamp,
				)
			}
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: failed to write ledger: %v", domain.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: failed to commit ledger: %v", domain.ErrStorageUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
