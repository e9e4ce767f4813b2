package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/parkwise/parking-service/internal/dto"
	"github.com/parkwise/parking-service/internal/service"
	"github.com/parkwise/parking-service/pkg/telemetry"
)

// WebhookHandler handles payment provider callbacks. Both endpoints sit
// behind the idempotency middleware, so a redelivered webhook replays the
// stored response instead of re-applying the transition.
type WebhookHandler struct {
	parkingService service.ParkingService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(parkingService service.ParkingService) *WebhookHandler {
	return &WebhookHandler{parkingService: parkingService}
}

// ConfirmReservationPayment handles POST /webhooks/payments/:id/reservation
func (h *WebhookHandler) ConfirmReservationPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.reservation_payment")
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

	result, err := h.parkingService.ConfirmReservationPayment(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ConfirmExitPayment handles POST /webhooks/payments/:id/parking
func (h *WebhookHandler) ConfirmExitPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.exit_payment")
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

	result, err := h.parkingService.ConfirmExitPayment(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
