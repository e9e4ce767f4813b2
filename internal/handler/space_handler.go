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

// SpaceHandler handles space listing and sensor HTTP requests
type SpaceHandler struct {
	parkingService service.ParkingService
}

// NewSpaceHandler creates a new space handler
func NewSpaceHandler(parkingService service.ParkingService) *SpaceHandler {
	return &SpaceHandler{parkingService: parkingService}
}

// ListSpaces handles GET /spaces
func (h *SpaceHandler) ListSpaces(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.space.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var query dto.SpaceListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid query",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	result, err := h.parkingService.ListSpaces(ctx, &query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"spaces": result})
}

// ConfirmVacant handles POST /sensors/spaces/:id/vacant. Sensors fire on
// every departure; a signal for a space not awaiting vacating returns 200
// with ignored=true rather than an error.
func (h *SpaceHandler) ConfirmVacant(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.space.vacant")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	spaceID := c.Param("id")
	if spaceID == "" {
		span.SetStatus(codes.Error, "space id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "space id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	span.SetAttributes(attribute.String("space_id", spaceID))

	result, err := h.parkingService.ConfirmVacant(ctx, spaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Bool("ignored", result.Ignored))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
