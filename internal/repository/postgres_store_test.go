package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tavolo-club/reservation-service/internal/domain"
)

// skipIfNoIntegration skips the test if INTEGRATION_TEST env var is not set
func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

// getPostgresPool creates a PostgreSQL connection pool for testing
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("TEST_POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	password := os.Getenv("TEST_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}
	dbname := os.Getenv("TEST_POSTGRES_DB")
	if dbname == "" {
		dbname = "reservations_test"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	createTestSchema(t, pool)
	return pool
}

func createTestSchema(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	statements := []string{
		`CREATE TABLE IF NOT EXISTS experiences (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			host TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			price_label TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			max_seats INT NOT NULL,
			reference_date TEXT NOT NULL DEFAULT '',
			schema_version INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS date_slots (
			experience_id TEXT NOT NULL REFERENCES experiences(id) ON DELETE CASCADE,
			slot_date TEXT NOT NULL,
			reserved_seats INT NOT NULL DEFAULT 0,
			PRIMARY KEY (experience_id, slot_date)
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			experience_id TEXT NOT NULL,
			slot_date TEXT NOT NULL,
			position INT NOT NULL,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			user_avatar TEXT NOT NULL DEFAULT '',
			seats INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			FOREIGN KEY (experience_id, slot_date) REFERENCES date_slots(experience_id, slot_date) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range statements {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	for _, table := range []string{"reservations", "date_slots", "experiences"} {
		_, err := pool.Exec(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
}

func TestPostgresLedgerStore_SaveLoad(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	ctx := context.Background()
	store := NewPostgresLedgerStore(pool)

	want := []*domain.Experience{
		{
			ID:            "exp-1",
			Name:          "Chef's Counter Omakase",
			Description:   "Twelve courses at the counter",
			Host:          "Chef Aoki",
			MaxSeats:      10,
			ReferenceDate: "2026-09-04",
			SchemaVersion: domain.SchemaVersionSlotted,
			Dates: []domain.DateSlot{
				{
					Date:          "2026-09-04",
					ReservedSeats: 5,
					Reservations: []domain.Reservation{
						{ID: "r1", UserID: "u1", UserName: "Mika", Seats: 2, Timestamp: time.Now().UTC().Truncate(time.Microsecond), Date: "2026-09-04"},
						{ID: "r2", UserID: "u2", UserName: "Sam", Seats: 3, Timestamp: time.Now().UTC().Truncate(time.Microsecond), Date: "2026-09-04"},
					},
				},
				{Date: "2026-09-11", Reservations: []domain.Reservation{}},
			},
		},
		{
			ID:            "exp-2",
			Name:          "Rooftop Wine Tasting",
			MaxSeats:      6,
			ReferenceDate: "2026-09-05",
			SchemaVersion: domain.SchemaVersionSlotted,
			Dates:         []domain.DateSlot{{Date: "2026-09-05", Reservations: []domain.Reservation{}}},
		},
	}

	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "exp-1", got[0].ID)
	assert.Equal(t, "Chef Aoki", got[0].Host)
	require.Len(t, got[0].Dates, 2)
	assert.Equal(t, 5, got[0].Dates[0].ReservedSeats)
	require.Len(t, got[0].Dates[0].Reservations, 2)
	// Arrival order within a slot survives the round trip
	assert.Equal(t, "r1", got[0].Dates[0].Reservations[0].ID)
	assert.Equal(t, "r2", got[0].Dates[0].Reservations[1].ID)
	assert.Equal(t, "exp-2", got[1].ID)
}

func TestPostgresLedgerStore_SaveReplaces(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	ctx := context.Background()
	store := NewPostgresLedgerStore(pool)

	first := []*domain.Experience{{
		ID:            "exp-old",
		MaxSeats:      10,
		SchemaVersion: domain.SchemaVersionSlotted,
		Dates:         []domain.DateSlot{{Date: "2026-09-04", Reservations: []domain.Reservation{}}},
	}}
	require.NoError(t, store.Save(ctx, first))

	second := []*domain.Experience{{
		ID:            "exp-new",
		MaxSeats:      8,
		SchemaVersion: domain.SchemaVersionSlotted,
		Dates:         []domain.DateSlot{{Date: "2026-09-11", Reservations: []domain.Reservation{}}},
	}}
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "exp-new", got[0].ID)
}
