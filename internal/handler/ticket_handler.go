package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/dto"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// TicketHandler handles ticket lifecycle HTTP requests
type TicketHandler struct {
	parkingService service.ParkingService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(parkingService service.ParkingService) *TicketHandler {
	return &TicketHandler{parkingService: parkingService}
}

// Reserve handles POST /tickets/reserve
func (h *TicketHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
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
		attribute.String("user_id", userID),
		attribute.String("space_id", req.SpaceID),
		attribute.Int("commitment_minutes", req.CommitmentMinutes),
	)

	result, err := h.parkingService.Reserve(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("ticket_id", result.TicketID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetTicket handles GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	result, err := h.parkingService.GetTicket(ctx, ticketID, c.GetString("user_id"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListMyTickets handles GET /tickets/my
func (h *TicketHandler) ListMyTickets(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.list_my")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}
	span.SetAttributes(attribute.String("user_id", userID))

	result, err := h.parkingService.ListMyTickets(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// CheckIn handles POST /tickets/:id/checkin
func (h *TicketHandler) CheckIn(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.checkin")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var req dto.CheckInRequest
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

	span.SetAttributes(attribute.String("ticket_id", ticketID))

	result, err := h.parkingService.CheckIn(ctx, ticketID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// CheckOut handles POST /tickets/:id/checkout
func (h *TicketHandler) CheckOut(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.checkout")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	result, err := h.parkingService.CheckOut(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Float64("total_parking_fee", result.TotalParkingFee))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError maps domain errors to HTTP status codes
func handleError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrSpaceUnavailable):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SPACE_UNAVAILABLE",
		})
	case errors.Is(err, domain.ErrPlateAlreadyActive):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "PLATE_ALREADY_ACTIVE",
		})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotCheckedIn):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_STATE",
		})
	case errors.Is(err, domain.ErrPlateMismatch):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "PLATE_MISMATCH",
		})
	case errors.Is(err, domain.ErrInvalidCommitment):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_COMMITMENT",
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
