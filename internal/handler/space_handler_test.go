package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/dto"
)

func spaceRouter(svc *mockParkingService) *gin.Engine {
	h := NewSpaceHandler(svc)
	router := gin.New()
	router.GET("/spaces", h.ListSpaces)
	router.POST("/sensors/spaces/:id/vacant", h.ConfirmVacant)
	return router
}

func TestListSpacesHandler(t *testing.T) {
	svc := &mockParkingService{
		listSpacesFn: func(ctx context.Context, query *dto.SpaceListQuery) ([]*dto.SpaceResponse, error) {
			assert.Equal(t, "AVAILABLE", query.Status)
			assert.Equal(t, "zone-1", query.ZoneID)
			return []*dto.SpaceResponse{
				{ID: "s-1", Code: "A-01", ZoneID: "zone-1", Status: "AVAILABLE"},
			}, nil
		},
	}
	w := performJSON(spaceRouter(svc), http.MethodGet, "/spaces?status=AVAILABLE&zone_id=zone-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Spaces []*dto.SpaceResponse `json:"spaces"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Spaces, 1)
	assert.Equal(t, "A-01", resp.Spaces[0].Code)
}

func TestConfirmVacantHandler(t *testing.T) {
	t.Run("released", func(t *testing.T) {
		svc := &mockParkingService{
			confirmVacantFn: func(ctx context.Context, spaceID string) (*dto.VacantResponse, error) {
				assert.Equal(t, "s-1", spaceID)
				return &dto.VacantResponse{SpaceID: "s-1", Ignored: false}, nil
			},
		}
		w := performJSON(spaceRouter(svc), http.MethodPost, "/sensors/spaces/s-1/vacant", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.VacantResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Ignored)
	})

	t.Run("ignored signal still returns 200", func(t *testing.T) {
		svc := &mockParkingService{
			confirmVacantFn: func(ctx context.Context, spaceID string) (*dto.VacantResponse, error) {
				return &dto.VacantResponse{SpaceID: "s-1", Ignored: true, Message: "space is not awaiting vacating"}, nil
			},
		}
		w := performJSON(spaceRouter(svc), http.MethodPost, "/sensors/spaces/s-1/vacant", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.VacantResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ignored)
	})

	t.Run("unknown space", func(t *testing.T) {
		svc := &mockParkingService{
			confirmVacantFn: func(ctx context.Context, spaceID string) (*dto.VacantResponse, error) {
				return nil, domain.ErrSpaceNotFound
			},
		}
		w := performJSON(spaceRouter(svc), http.MethodPost, "/sensors/spaces/s-404/vacant", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func webhookRouter(svc *mockParkingService) *gin.Engine {
	h := NewWebhookHandler(svc)
	router := gin.New()
	router.POST("/webhooks/payments/:id/reservation", h.ConfirmReservationPayment)
	router.POST("/webhooks/payments/:id/parking", h.ConfirmExitPayment)
	return router
}

func TestWebhookHandlers(t *testing.T) {
	t.Run("reservation payment confirmed", func(t *testing.T) {
		svc := &mockParkingService{
			confirmReservationFn: func(ctx context.Context, ticketID string) (*dto.TicketResponse, error) {
				assert.Equal(t, "t-1", ticketID)
				return &dto.TicketResponse{ID: "t-1", Status: "RESERVED", AmountPaid: 15.00}, nil
			},
		}
		w := performJSON(webhookRouter(svc), http.MethodPost, "/webhooks/payments/t-1/reservation", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("exit payment confirmed", func(t *testing.T) {
		svc := &mockParkingService{
			confirmExitFn: func(ctx context.Context, ticketID string) (*dto.TicketResponse, error) {
				return &dto.TicketResponse{ID: "t-1", Status: "PAID", AmountDue: 0}, nil
			},
		}
		w := performJSON(webhookRouter(svc), http.MethodPost, "/webhooks/payments/t-1/parking", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("redelivered webhook maps to conflict", func(t *testing.T) {
		svc := &mockParkingService{
			confirmReservationFn: func(ctx context.Context, ticketID string) (*dto.TicketResponse, error) {
				return nil, domain.ErrInvalidTransition
			},
		}
		w := performJSON(webhookRouter(svc), http.MethodPost, "/webhooks/payments/t-1/reservation", nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "INVALID_STATE", resp.Code)
	})
}
