// Package catalog loads the static experience definitions that seed the
// reservation ledger: identity, per-slot capacity, display metadata and
// the reference date slots are generated from.
package catalog

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/tavolo-club/reservation-service/internal/domain"
)

// Definition is one configured experience
type Definition struct {
	ID            string `mapstructure:"id"`
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	Host          string `mapstructure:"host"`
	Location      string `mapstructure:"location"`
	PriceLabel    string `mapstructure:"price_label"`
	ImageURL      string `mapstructure:"image_url"`
	MaxSeats      int    `mapstructure:"max_seats"`
	ReferenceDate string `mapstructure:"reference_date"`
}

// Validate checks the definition fields
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("catalog entry without id: %w", domain.ErrInvalidExperienceID)
	}
	if d.MaxSeats < 1 {
		return fmt.Errorf("catalog entry %q: max_seats must be at least 1", d.ID)
	}
	if _, err := domain.ParseSlotDate(d.ReferenceDate); err != nil {
		return fmt.Errorf("catalog entry %q: %w", d.ID, err)
	}
	return nil
}

// NewExperience builds a canonical experience from the definition with a
// freshly generated slot inventory.
func (d *Definition) NewExperience(horizon int) (*domain.Experience, error) {
	reference, err := domain.ParseSlotDate(d.ReferenceDate)
	if err != nil {
		return nil, err
	}
	slots, err := domain.GenerateSlots(reference, horizon)
	if err != nil {
		return nil, err
	}
	return &domain.Experience{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Host:          d.Host,
		Location:      d.Location,
		PriceLabel:    d.PriceLabel,
		ImageURL:      d.ImageURL,
		MaxSeats:      d.MaxSeats,
		ReferenceDate: d.ReferenceDate,
		SchemaVersion: domain.SchemaVersionSlotted,
		Dates:         slots,
	}, nil
}

// Catalog holds the configured experiences, keyed by id
type Catalog struct {
	definitions []Definition
	byID        map[string]*Definition
}

// Load reads the catalog file (YAML) at path
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var defs []Definition
	if err := v.UnmarshalKey("experiences", &defs); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return New(defs)
}

// New builds a catalog from in-memory definitions
func New(defs []Definition) (*Catalog, error) {
	byID := make(map[string]*Definition, len(defs))
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[defs[i].ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", defs[i].ID)
		}
		byID[defs[i].ID] = &defs[i]
	}
	return &Catalog{definitions: defs, byID: byID}, nil
}

// Definitions returns all configured experiences
func (c *Catalog) Definitions() []Definition {
	return c.definitions
}

// ByID looks up a definition
func (c *Catalog) ByID(id string) (*Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Len returns the number of configured experiences
func (c *Catalog) Len() int {
	return len(c.definitions)
}
