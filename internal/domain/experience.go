package domain

import (
	"sort"
	"strings"
	"time"
)

// SchemaVersionSlotted is the canonical per-date ledger shape. Version 0
// (or absent) marks the legacy flat shape with a single implicit slot.
const SchemaVersionSlotted = 2

// SlotState reports whether a date slot can still accept reservations
type SlotState string

const (
	SlotStateOpen SlotState = "open"
	SlotStateFull SlotState = "full"
)

// Reservation is one party's claim on seats at one date slot
type Reservation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar,omitempty"`
	Seats      int       `json:"seats"`
	Timestamp  time.Time `json:"timestamp"`
	// Date is a back-reference to the owning slot, kept redundantly so a
	// reservation survives flattening into the reduced storage schema.
	Date string `json:"date"`
}

// Validate checks the reservation fields
func (r *Reservation) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrInvalidUserID
	}
	if r.Seats < 1 {
		return ErrInvalidSeats
	}
	return nil
}

// DateSlot is one bookable calendar date for one experience
type DateSlot struct {
	Date          string        `json:"date"`
	ReservedSeats int           `json:"reservedSeats"`
	Reservations  []Reservation `json:"reservations"`
}

// State returns Open or Full for the given capacity
func (s *DateSlot) State(maxSeats int) SlotState {
	if s.ReservedSeats >= maxSeats {
		return SlotStateFull
	}
	return SlotStateOpen
}

// RemainingSeats returns free capacity at this slot, never negative
func (s *DateSlot) RemainingSeats(maxSeats int) int {
	remaining := maxSeats - s.ReservedSeats
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReservationBy returns the user's reservation at this slot, if any
func (s *DateSlot) ReservationBy(userID string) (*Reservation, bool) {
	for i := range s.Reservations {
		if s.Reservations[i].UserID == userID {
			return &s.Reservations[i], true
		}
	}
	return nil, false
}

// CheckInvariant verifies that the reserved counter matches the
// reservation list and stays within capacity
func (s *DateSlot) CheckInvariant(maxSeats int) error {
	total := 0
	for i := range s.Reservations {
		total += s.Reservations[i].Seats
	}
	if total != s.ReservedSeats {
		return ErrLedgerCorrupted
	}
	if s.ReservedSeats > maxSeats {
		return ErrLedgerCorrupted
	}
	return nil
}

// Experience is a bookable premium dining offering with a fixed per-date
// seat capacity shared by every slot
type Experience struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Host          string     `json:"host,omitempty"`
	Location      string     `json:"location,omitempty"`
	PriceLabel    string     `json:"priceLabel,omitempty"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	MaxSeats      int        `json:"maxSeats"`
	ReferenceDate string     `json:"referenceDate,omitempty"`
	SchemaVersion int        `json:"schemaVersion"`
	Dates         []DateSlot `json:"dates"`

	// Legacy flat-shape fields, only populated on schema version 0
	// records until the normalizer migrates them.
	LegacyReservedSeats int           `json:"reservedSeats,omitempty"`
	LegacyReservations  []Reservation `json:"reservations,omitempty"`
}

// SlotByDate returns the slot for the given date string
func (e *Experience) SlotByDate(date string) (*DateSlot, bool) {
	for i := range e.Dates {
		if e.Dates[i].Date == date {
			return &e.Dates[i], true
		}
	}
	return nil, false
}

// NextAvailable returns the earliest slot, in calendar order, that still
// has free capacity. The second return is false when every slot is full.
func (e *Experience) NextAvailable() (*DateSlot, bool) {
	for i := range e.Dates {
		if e.Dates[i].ReservedSeats < e.MaxSeats {
			return &e.Dates[i], true
		}
	}
	return nil, false
}

// TotalReservedSeats sums reserved seats across every slot
func (e *Experience) TotalReservedSeats() int {
	total := 0
	for i := range e.Dates {
		total += e.Dates[i].ReservedSeats
	}
	return total
}

// SortSlots orders the slot list by calendar date ascending. NextAvailable
// relies on this order.
func (e *Experience) SortSlots() {
	sort.Slice(e.Dates, func(i, j int) bool {
		return e.Dates[i].Date < e.Dates[j].Date
	})
}

// CheckInvariants verifies every slot of the experience
func (e *Experience) CheckInvariants() error {
	for i := range e.Dates {
		if err := e.Dates[i].CheckInvariant(e.MaxSeats); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy, used for snapshots and rollback
func (e *Experience) Clone() *Experience {
	dup := *e
	dup.Dates = make([]DateSlot, len(e.Dates))
	for i := range e.Dates {
		dup.Dates[i] = e.Dates[i]
		dup.Dates[i].Reservations = append([]Reservation(nil), e.Dates[i].Reservations...)
	}
	dup.LegacyReservations = append([]Reservation(nil), e.LegacyReservations...)
	return &dup
}
