package domain

import "time"

// ReservationEventType identifies ledger mutation events
type ReservationEventType string

const (
	ReservationEventCreated   ReservationEventType = "reservation.created"
	ReservationEventCancelled ReservationEventType = "reservation.cancelled"
)

// ReservationEvent is published after a committed ledger mutation
type ReservationEvent struct {
	Type          ReservationEventType `json:"type"`
	ExperienceID  string               `json:"experience_id"`
	Date          string               `json:"date"`
	ReservationID string               `json:"reservation_id"`
	UserID        string               `json:"user_id"`
	Seats         int                  `json:"seats"`
	SeatsLeft     int                  `json:"seats_left"`
	OccurredAt    time.Time            `json:"occurred_at"`
}
