package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tavolo-club/reservation-service/internal/domain"
)

func validDefinition() Definition {
	return Definition{
		ID:            "exp-1",
		Name:          "Chef's Counter Omakase",
		Host:          "Chef Aoki",
		Location:      "Shibuya",
		PriceLabel:    "$$$",
		MaxSeats:      10,
		ReferenceDate: "2026-09-04",
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("accepts a complete definition", func(t *testing.T) {
		def := validDefinition()
		assert.NoError(t, def.Validate())
	})

	t.Run("rejects missing id", func(t *testing.T) {
		def := validDefinition()
		def.ID = ""
		assert.Error(t, def.Validate())
	})

	t.Run("rejects non-positive capacity", func(t *testing.T) {
		def := validDefinition()
		def.MaxSeats = 0
		assert.Error(t, def.Validate())
	})

	t.Run("rejects malformed reference date", func(t *testing.T) {
		def := validDefinition()
		def.ReferenceDate = "friday"
		assert.Error(t, def.Validate())
	})
}

func TestNewExperience(t *testing.T) {
	def := validDefinition()

	exp, err := def.NewExperience(4)

	require.NoError(t, err)
	assert.Equal(t, "exp-1", exp.ID)
	assert.Equal(t, 10, exp.MaxSeats)
	assert.Equal(t, domain.SchemaVersionSlotted, exp.SchemaVersion)
	require.Len(t, exp.Dates, 4)
	assert.Equal(t, "2026-09-04", exp.Dates[0].Date)
	assert.Equal(t, "2026-09-25", exp.Dates[3].Date)
	assert.Zero(t, exp.TotalReservedSeats())
}

func TestNew(t *testing.T) {
	t.Run("indexes definitions by id", func(t *testing.T) {
		second := validDefinition()
		second.ID = "exp-2"

		cat, err := New([]Definition{validDefinition(), second})

		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		got, ok := cat.ByID("exp-2")
		require.True(t, ok)
		assert.Equal(t, "exp-2", got.ID)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := New([]Definition{validDefinition(), validDefinition()})
		assert.Error(t, err)
	})

	t.Run("rejects invalid entries", func(t *testing.T) {
		bad := validDefinition()
		bad.MaxSeats = -1
		_, err := New([]Definition{bad})
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("reads a YAML catalog", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		content := `experiences:
  - id: exp-1
    name: "Chef's Counter Omakase"
    host: "Chef Aoki"
    location: "Shibuya"
    price_label: "$$$"
    max_seats: 10
    reference_date: "2026-09-04"
  - id: exp-2
    name: "Rooftop Wine Tasting"
    max_seats: 6
    reference_date: "2026-09-05"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cat, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		first, ok := cat.ByID("exp-1")
		require.True(t, ok)
		assert.Equal(t, "Chef Aoki", first.Host)
		assert.Equal(t, 10, first.MaxSeats)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
