package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tavolo-club/reservation-service/internal/domain"
	"github.com/tavolo-club/reservation-service/internal/dto"
	"github.com/tavolo-club/reservation-service/internal/service"
	"github.com/tavolo-club/reservation-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReservationHandler handles reservation HTTP requests
type ReservationHandler struct {
	reservationService service.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// Reserve handles POST /experiences/:id/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := identityFrom(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	experienceID := c.Param("id")
	if experienceID == "" {
		span.SetStatus(codes.Error, "experience id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "experience id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("user_id", user.ID),
		attribute.Int("seats", req.Seats),
		attribute.String("date", req.Date),
	)

	result, err := h.reservationService.Reserve(ctx, user, experienceID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", result.ReservationID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// Cancel handles DELETE /experiences/:id/reservations
// An optional ?date= query targets one slot; without it the user's
// earliest reservation is cancelled.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := identityFrom(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	experienceID := c.Param("id")
	if experienceID == "" {
		span.SetStatus(codes.Error, "experience id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "experience id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	date := c.Query("date")

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("user_id", user.ID),
		attribute.String("date", date),
	)

	result, err := h.reservationService.Cancel(ctx, experienceID, user.ID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetExperience handles GET /experiences/:id
// An optional ?date= query selects the slot to embed; without it the
// next available slot is used.
func (h *ReservationHandler) GetExperience(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.get_experience")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	experienceID := c.Param("id")
	if experienceID == "" {
		span.SetStatus(codes.Error, "experience id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "experience id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	date := c.Query("date")

	span.SetAttributes(
		attribute.String("experience_id", experienceID),
		attribute.String("date", date),
	)

	result, err := h.reservationService.Snapshot(ctx, experienceID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// NextAvailable handles GET /experiences/:id/next-available
func (h *ReservationHandler) NextAvailable(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.next_available")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	experienceID := c.Param("id")
	if experienceID == "" {
		span.SetStatus(codes.Error, "experience id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "experience id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("experience_id", experienceID))

	result, err := h.reservationService.NextAvailable(ctx, experienceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListExperiences handles GET /experiences
func (h *ReservationHandler) ListExperiences(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	result := h.reservationService.ListExperiences(ctx)

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"experiences": result})
}

// handleError converts domain errors to HTTP responses
func (h *ReservationHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrExperienceNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EXPERIENCE_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrDateNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "DATE_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "RESERVATION_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CAPACITY_EXCEEDED",
		})
	case errors.Is(err, domain.ErrNoAvailableDate):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "SOLD_OUT",
			Message: "Every upcoming date is fully booked",
		})
	case errors.Is(err, domain.ErrDuplicateReservation):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_RESERVATION",
		})
	case errors.Is(err, domain.ErrStorageQuotaExceeded):
		c.JSON(http.StatusInsufficientStorage, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "STORAGE_QUOTA_EXCEEDED",
		})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "STORAGE_UNAVAILABLE",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
