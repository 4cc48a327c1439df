package dto

import (
	"time"

	"github.com/tavolo-club/reservation-service/internal/domain"
)

// ReserveRequest represents a request to reserve seats at an experience.
// Date is optional; when omitted the engine books the next available
// slot.
type ReserveRequest struct {
	Seats int    `json:"seats" binding:"required,min=1"`
	Date  string `json:"date,omitempty"`
}

// ReserveResponse represents the accepted reservation
type ReserveResponse struct {
	ReservationID string    `json:"reservation_id"`
	ExperienceID  string    `json:"experience_id"`
	Date          string    `json:"date"`
	Seats         int       `json:"seats"`
	ReservedAt    time.Time `json:"reserved_at"`
	SlotState     string    `json:"slot_state"`
	SeatsLeft     int       `json:"seats_left"`
}

// CancelResponse represents a completed cancellation
type CancelResponse struct {
	ExperienceID  string `json:"experience_id"`
	Date          string `json:"date"`
	SeatsReleased int    `json:"seats_released"`
}

// ReservationView is one reservation inside a slot view
type ReservationView struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserAvatar string    `json:"user_avatar,omitempty"`
	Seats      int       `json:"seats"`
	Timestamp  time.Time `json:"timestamp"`
}

// SlotView is one date slot in API responses
type SlotView struct {
	Date          string            `json:"date"`
	ReservedSeats int               `json:"reserved_seats"`
	SeatsLeft     int               `json:"seats_left"`
	State         string            `json:"state"`
	Reservations  []ReservationView `json:"reservations,omitempty"`
}

// ExperienceView combines experience metadata with one resolved slot
type ExperienceView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Host        string    `json:"host,omitempty"`
	Location    string    `json:"location,omitempty"`
	PriceLabel  string    `json:"price_label,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	MaxSeats    int       `json:"max_seats"`
	Slot        *SlotView `json:"slot,omitempty"`
	SoldOut     bool      `json:"sold_out"`
}

// ExperienceSummary is one catalog listing entry
type ExperienceSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location,omitempty"`
	PriceLabel    string `json:"price_label,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	MaxSeats      int    `json:"max_seats"`
	NextAvailable string `json:"next_available,omitempty"`
	SoldOut       bool   `json:"sold_out"`
}

// ErrorResponse is the error payload for handler-level failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// SlotViewFromDomain converts a domain slot, optionally embedding its
// reservation list.
func SlotViewFromDomain(slot *domain.DateSlot, maxSeats int, includeReservations bool) *SlotView {
	view := &SlotView{
		Date:          slot.Date,
		ReservedSeats: slot.ReservedSeats,
		SeatsLeft:     slot.RemainingSeats(maxSeats),
		State:         string(slot.State(maxSeats)),
	}
	if includeReservations {
		view.Reservations = make([]ReservationView, len(slot.Reservations))
		for i, r := range slot.Reservations {
			view.Reservations[i] = ReservationView{
				ID:         r.ID,
				UserID:     r.UserID,
				UserName:   r.UserName,
				UserAvatar: r.UserAvatar,
				Seats:      r.Seats,
				Timestamp:  r.Timestamp,
			}
		}
	}
	return view
}

// ExperienceViewFromDomain builds the metadata portion of a view
func ExperienceViewFromDomain(exp *domain.Experience) *ExperienceView {
	_, available := exp.NextAvailable()
	return &ExperienceView{
		ID:          exp.ID,
		Name:        exp.Name,
		Description: exp.Description,
		Host:        exp.Host,
		Location:    exp.Location,
		PriceLabel:  exp.PriceLabel,
		ImageURL:    exp.ImageURL,
		MaxSeats:    exp.MaxSeats,
		SoldOut:     !available,
	}
}

// SummaryFromDomain builds a catalog listing entry
func SummaryFromDomain(exp *domain.Experience) *ExperienceSummary {
	summary := &ExperienceSummary{
		ID:         exp.ID,
		Name:       exp.Name,
		Location:   exp.Location,
		PriceLabel: exp.PriceLabel,
		ImageURL:   exp.ImageURL,
		MaxSeats:   exp.MaxSeats,
	}
	if slot, ok := exp.NextAvailable(); ok {
		summary.NextAvailable = slot.Date
	} else {
		summary.SoldOut = true
	}
	return summary
}
