package domain

import "time"

// DateFormat is the wire format for slot dates
const DateFormat = "2006-01-02"

// DefaultHorizon is the number of weekly slots generated per experience
const DefaultHorizon = 8

// SlotInterval is the spacing between consecutive slots
const SlotInterval = 7 * 24 * time.Hour

// GenerateSlots produces horizon date slots spaced exactly seven calendar
// days apart, starting at reference. Slots come back in ascending date
// order with zeroed counters and empty reservation lists.
func GenerateSlots(reference time.Time, horizon int) ([]DateSlot, error) {
	if horizon < 1 {
		return nil, ErrInvalidHorizon
	}
	if reference.IsZero() {
		return nil, ErrInvalidReferenceDate
	}

	slots := make([]DateSlot, horizon)
	for i := 0; i < horizon; i++ {
		// AddDate keeps calendar-day spacing stable across DST changes
		day := reference.AddDate(0, 0, i*7)
		slots[i] = DateSlot{
			Date:          day.Format(DateFormat),
			ReservedSeats: 0,
			Reservations:  []Reservation{},
		}
	}
	return slots, nil
}

// ParseSlotDate parses a YYYY-MM-DD date string
func ParseSlotDate(date string) (time.Time, error) {
	t, err := time.Parse(DateFormat, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
