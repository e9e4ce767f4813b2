package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwise/parking-service/internal/domain"
	"github.com/parkwise/parking-service/internal/dto"
	"github.com/parkwise/parking-service/internal/repository"
)

func newTestService(t *testing.T) (ParkingService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewParkingService(store, NewNoOpEventPublisher(), nil)
	return svc, store
}

func seedAvailableSpace(store *repository.MemoryStore, id string) {
	store.SeedSpace(&domain.Space{
		ID:     id,
		Code:   "A-" + id,
		ZoneID: "zone-1",
		Status: domain.SpaceStatusAvailable,
	})
}

func assertConsistent(t *testing.T, store *repository.MemoryStore, spaceID string) {
	t.Helper()
	ctx := context.Background()
	space, err := store.Spaces().GetByID(ctx, spaceID)
	require.NoError(t, err)

	var held *domain.Ticket
	if space.CurrentTicketID != nil {
		held, err = store.Tickets().GetByID(ctx, *space.CurrentTicketID)
		require.NoError(t, err)
	}
	assert.True(t, space.Consistent(held), "space %s (%s) inconsistent with its ticket", spaceID, space.Status)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("creates hold on available space", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID:           "s-1",
			VehiclePlate:      "abc-123",
			CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingPayment.String(), resp.Status)
		assert.Equal(t, 15.00, resp.AmountDue)
		assert.Equal(t, "ABC-123", resp.VehiclePlate)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusReserved, space.Status)
		require.NotNil(t, space.CurrentTicketID)
		assert.Equal(t, resp.TicketID, *space.CurrentTicketID)
		assertConsistent(t, store, "s-1")
	})

	t.Run("60 minute commitment costs 30", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID:           "s-1",
			VehiclePlate:      "XYZ-9",
			CommitmentMinutes: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, 30.00, resp.AmountDue)
	})

	t.Run("rejects unsupported commitment", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		_, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID:           "s-1",
			VehiclePlate:      "ABC-123",
			CommitmentMinutes: 45,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCommitment)
	})

	t.Run("rejects reserved space", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		_, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "AAA-1", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, "user-2", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "BBB-2", CommitmentMinutes: 30,
		})
		assert.ErrorIs(t, err, domain.ErrSpaceUnavailable)
	})

	t.Run("rejects plate with active ticket", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")
		seedAvailableSpace(store, "s-2")

		_, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-2", VehiclePlate: "abc-123 ", CommitmentMinutes: 30,
		})
		assert.ErrorIs(t, err, domain.ErrPlateAlreadyActive)

		// losing request left the second space untouched
		space, err := store.Spaces().GetByID(ctx, "s-2")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusAvailable, space.Status)
	})

	t.Run("unknown space", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "nope", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		assert.ErrorIs(t, err, domain.ErrSpaceNotFound)
	})

	t.Run("concurrent requests for one space pick one winner", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		const n = 20
		var wg sync.WaitGroup
		results := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
					SpaceID:           "s-1",
					VehiclePlate:      "PLATE-" + string(rune('A'+i)),
					CommitmentMinutes: 30,
				})
				results[i] = err
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, domain.ErrSpaceUnavailable)
			}
		}
		assert.Equal(t, 1, winners)
		assertConsistent(t, store, "s-1")
	})
}

func TestConfirmReservationPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("moves hold to reserved and starts the clock", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		paid, err := svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusReserved.String(), paid.Status)
		assert.Equal(t, 15.00, paid.AmountPaid)
		assert.Equal(t, 0.00, paid.AmountDue)
		assert.NotNil(t, paid.ReservationStartedAt)
		assertConsistent(t, store, "s-1")
	})

	t.Run("duplicate delivery is rejected as a stale transition", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)

		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("rejects the exit billing leg", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC().Add(-2 * time.Hour)
		checkout := time.Now().UTC()
		total := 50.00
		ticketID := "t-exit"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusPendingPayment, CommitmentMinutes: 30,
			AmountPaid: 15.00, AmountDue: 35.00, TotalFee: &total,
			CheckinAt: &checkin, CheckoutAt: &checkout,
		})

		_, err := svc.ConfirmReservationPayment(ctx, ticketID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("unknown ticket", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.ConfirmReservationPayment(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	})
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()

	reserveAndPay := func(t *testing.T, svc ParkingService, plate string) string {
		t.Helper()
		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: plate, CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)
		return resp.TicketID
	}

	t.Run("parks the vehicle and occupies the space", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")
		ticketID := reserveAndPay(t, svc, "ABC-123")

		resp, err := svc.CheckIn(ctx, ticketID, &dto.CheckInRequest{VehiclePlate: "abc-123"})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusParked.String(), resp.Status)
		assert.NotNil(t, resp.CheckinAt)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusOccupied, space.Status)
		assertConsistent(t, store, "s-1")
	})

	t.Run("rejects a different plate", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")
		ticketID := reserveAndPay(t, svc, "ABC-123")

		_, err := svc.CheckIn(ctx, ticketID, &dto.CheckInRequest{VehiclePlate: "XYZ-999"})
		assert.ErrorIs(t, err, domain.ErrPlateMismatch)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusReserved, ticket.Status)
	})

	t.Run("rejects check in before the fee is paid", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		_, err = svc.CheckIn(ctx, resp.TicketID, &dto.CheckInRequest{VehiclePlate: "ABC-123"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestCheckOut(t *testing.T) {
	ctx := context.Background()

	t.Run("short stay covered by reservation fee settles immediately", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)
		_, err = svc.CheckIn(ctx, resp.TicketID, &dto.CheckInRequest{VehiclePlate: "ABC-123"})
		require.NoError(t, err)

		out, err := svc.CheckOut(ctx, resp.TicketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPaid.String(), out.Status)
		assert.Equal(t, 15.00, out.TotalParkingFee)
		assert.Equal(t, 15.00, out.AmountPaid)
		assert.Equal(t, 0.00, out.AmountDue)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusPendingVacate, space.Status)
		assertConsistent(t, store, "s-1")
	})

	t.Run("long stay bills the balance over the reservation fee", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC().Add(-2 * time.Hour)
		ticketID := "t-long"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusParked, CommitmentMinutes: 30,
			AmountPaid: 15.00, CheckinAt: &checkin,
			CreatedAt: checkin, UpdatedAt: checkin,
		})

		out, err := svc.CheckOut(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingPayment.String(), out.Status)
		assert.Equal(t, 50.00, out.TotalParkingFee)
		assert.Equal(t, 35.00, out.AmountDue)

		// space stays occupied until the balance is paid
		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusOccupied, space.Status)
		assertConsistent(t, store, "s-1")
	})

	t.Run("rejects check out before check in", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)

		_, err = svc.CheckOut(ctx, resp.TicketID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestConfirmExitPayment(t *testing.T) {
	ctx := context.Background()

	seedBilling := func(t *testing.T, store *repository.MemoryStore) string {
		t.Helper()
		checkin := time.Now().UTC().Add(-2 * time.Hour)
		checkout := time.Now().UTC()
		total := 50.00
		ticketID := "t-bill"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusPendingPayment, CommitmentMinutes: 30,
			AmountPaid: 15.00, AmountDue: 35.00, TotalFee: &total,
			CheckinAt: &checkin, CheckoutAt: &checkout,
			CreatedAt: checkin, UpdatedAt: checkout,
		})
		return ticketID
	}

	t.Run("settles the balance and starts the grace window", func(t *testing.T) {
		svc, store := newTestService(t)
		ticketID := seedBilling(t, store)

		resp, err := svc.ConfirmExitPayment(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPaid.String(), resp.Status)
		assert.Equal(t, 50.00, resp.AmountPaid)
		assert.Equal(t, 0.00, resp.AmountDue)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusPendingVacate, space.Status)
		assertConsistent(t, store, "s-1")
	})

	t.Run("rejects payment for a pre-check-in hold", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		_, err = svc.ConfirmExitPayment(ctx, resp.TicketID)
		assert.ErrorIs(t, err, domain.ErrNotCheckedIn)
	})

	t.Run("duplicate delivery is rejected", func(t *testing.T) {
		svc, store := newTestService(t)
		ticketID := seedBilling(t, store)

		_, err := svc.ConfirmExitPayment(ctx, ticketID)
		require.NoError(t, err)
		_, err = svc.ConfirmExitPayment(ctx, ticketID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestConfirmVacant(t *testing.T) {
	ctx := context.Background()

	t.Run("releases a paid space and completes the ticket", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC().Add(-20 * time.Minute)
		grace := time.Now().UTC()
		ticketID := "t-paid"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusPendingVacate, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusPaid, AmountPaid: 15.00,
			CheckinAt: &checkin, GraceStartedAt: &grace,
			CreatedAt: checkin, UpdatedAt: grace,
		})

		resp, err := svc.ConfirmVacant(ctx, "s-1")
		require.NoError(t, err)
		assert.False(t, resp.Ignored)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusAvailable, space.Status)
		assert.Nil(t, space.CurrentTicketID)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusCompleted, ticket.Status)
	})

	t.Run("signal for an available space is ignored", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.ConfirmVacant(ctx, "s-1")
		require.NoError(t, err)
		assert.True(t, resp.Ignored)
	})

	t.Run("signal for an occupied space is ignored", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC()
		ticketID := "t-parked"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusParked, CheckinAt: &checkin,
		})

		resp, err := svc.ConfirmVacant(ctx, "s-1")
		require.NoError(t, err)
		assert.True(t, resp.Ignored)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusParked, ticket.Status)
	})
}

func TestMarkNoShow(t *testing.T) {
	ctx := context.Background()

	t.Run("forfeits a reservation past its window and frees the space", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)

		// the 30-minute window elapsed without a check-in
		ticket, err := store.Tickets().GetByID(ctx, resp.TicketID)
		require.NoError(t, err)
		started := time.Now().UTC().Add(-45 * time.Minute)
		ticket.ReservationStartedAt = &started
		store.SeedTicket(ticket)

		err = svc.MarkNoShow(ctx, resp.TicketID, "no check-in within commitment window")
		require.NoError(t, err)

		ticket, err = store.Tickets().GetByID(ctx, resp.TicketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusNoShow, ticket.Status)
		assert.Equal(t, "no check-in within commitment window", ticket.CancelReason)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusAvailable, space.Status)
		assert.Nil(t, space.CurrentTicketID)

		// the plate is free again
		seedAvailableSpace(store, "s-2")
		_, err = svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-2", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		assert.NoError(t, err)
	})

	t.Run("reservation still inside its window is refused", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
		require.NoError(t, err)

		err = svc.MarkNoShow(ctx, resp.TicketID, "no check-in within commitment window")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		ticket, err := store.Tickets().GetByID(ctx, resp.TicketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusReserved, ticket.Status)
		assert.Empty(t, ticket.CancelReason)
		assertConsistent(t, store, "s-1")
	})

	t.Run("unpaid hold is refused", func(t *testing.T) {
		svc, store := newTestService(t)
		seedAvailableSpace(store, "s-1")

		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)

		err = svc.MarkNoShow(ctx, resp.TicketID, "no check-in within commitment window")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("parked ticket cannot be forfeited", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC()
		ticketID := "t-parked"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusParked, CheckinAt: &checkin,
		})

		err := svc.MarkNoShow(ctx, ticketID, "x")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestExpireStaleHold(t *testing.T) {
	ctx := context.Background()

	// seeds a hold created age ago and returns its ticket ID
	seedAgedHold := func(t *testing.T, svc ParkingService, store *repository.MemoryStore, age time.Duration) string {
		t.Helper()
		seedAvailableSpace(store, "s-1")
		resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
			SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
		})
		require.NoError(t, err)
		ticket, err := store.Tickets().GetByID(ctx, resp.TicketID)
		require.NoError(t, err)
		ticket.CreatedAt = time.Now().UTC().Add(-age)
		store.SeedTicket(ticket)
		return resp.TicketID
	}

	t.Run("expires an unpaid hold older than the cutoff", func(t *testing.T) {
		svc, store := newTestService(t)
		ticketID := seedAgedHold(t, svc, store, 20*time.Minute)
		cutoff := time.Now().UTC().Add(-15 * time.Minute)

		err := svc.ExpireStaleHold(ctx, ticketID, cutoff, "reservation fee unpaid within timeout")
		require.NoError(t, err)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusNoShow, ticket.Status)
		assert.Equal(t, "reservation fee unpaid within timeout", ticket.CancelReason)

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusAvailable, space.Status)
	})

	t.Run("hold paid between the scan and the expiry survives", func(t *testing.T) {
		svc, store := newTestService(t)
		ticketID := seedAgedHold(t, svc, store, 20*time.Minute)
		cutoff := time.Now().UTC().Add(-15 * time.Minute)

		// the sweep picked the hold up
		stale, err := store.Tickets().ListStaleHolds(ctx, cutoff, 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)

		// the payment webhook lands before the sweep acts on it
		_, err = svc.ConfirmReservationPayment(ctx, ticketID)
		require.NoError(t, err)

		err = svc.ExpireStaleHold(ctx, ticketID, cutoff, "reservation fee unpaid within timeout")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusReserved, ticket.Status)
		assert.Empty(t, ticket.CancelReason)
		assertConsistent(t, store, "s-1")
	})

	t.Run("fresh hold is refused", func(t *testing.T) {
		svc, store := newTestService(t)
		ticketID := seedAgedHold(t, svc, store, 5*time.Minute)
		cutoff := time.Now().UTC().Add(-15 * time.Minute)

		err := svc.ExpireStaleHold(ctx, ticketID, cutoff, "reservation fee unpaid within timeout")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingPayment, ticket.Status)
	})
}

func TestRevertOverstay(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts a lingering paid ticket and rebills from check-in", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC().Add(-3 * time.Hour)
		checkout := time.Now().UTC().Add(-30 * time.Minute)
		grace := checkout
		total := 60.00
		ticketID := "t-linger"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusPendingVacate, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusPaid, CommitmentMinutes: 30,
			AmountPaid: 60.00, TotalFee: &total,
			CheckinAt: &checkin, CheckoutAt: &checkout, GraceStartedAt: &grace,
			CreatedAt: checkin, UpdatedAt: grace,
		})

		err := svc.RevertOverstay(ctx, ticketID, time.Now().UTC().Add(-15*time.Minute))
		require.NoError(t, err)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusParked, ticket.Status)
		assert.Nil(t, ticket.CheckoutAt)
		assert.Nil(t, ticket.TotalFee)
		assert.Nil(t, ticket.GraceStartedAt)
		require.NotNil(t, ticket.CheckinAt)
		assert.Equal(t, checkin, ticket.CheckinAt.UTC())

		space, err := store.Spaces().GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpaceStatusOccupied, space.Status)
		assertConsistent(t, store, "s-1")

		// second check-out bills the whole 3h stay and credits the 60 already paid
		out, err := svc.CheckOut(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, 70.00, out.TotalParkingFee)
		assert.Equal(t, 10.00, out.AmountDue)
	})

	t.Run("only paid tickets revert", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC()
		ticketID := "t-parked"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusOccupied, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusParked, CheckinAt: &checkin,
		})

		err := svc.RevertOverstay(ctx, ticketID, time.Now().UTC().Add(-15*time.Minute))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("grace window still open is refused", func(t *testing.T) {
		svc, store := newTestService(t)
		checkin := time.Now().UTC().Add(-2 * time.Hour)
		checkout := time.Now().UTC().Add(-5 * time.Minute)
		grace := checkout
		total := 50.00
		ticketID := "t-grace"
		store.SeedSpace(&domain.Space{
			ID: "s-1", Code: "A-1", ZoneID: "zone-1",
			Status: domain.SpaceStatusPendingVacate, CurrentTicketID: &ticketID,
		})
		store.SeedTicket(&domain.Ticket{
			ID: ticketID, SpaceID: "s-1", VehiclePlate: "ABC-123",
			Status: domain.TicketStatusPaid, CommitmentMinutes: 30,
			AmountPaid: 50.00, TotalFee: &total,
			CheckinAt: &checkin, CheckoutAt: &checkout, GraceStartedAt: &grace,
			CreatedAt: checkin, UpdatedAt: grace,
		})

		err := svc.RevertOverstay(ctx, ticketID, time.Now().UTC().Add(-15*time.Minute))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		ticket, err := store.Tickets().GetByID(ctx, ticketID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPaid, ticket.Status)
		assert.NotNil(t, ticket.GraceStartedAt)
	})
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedAvailableSpace(store, "s-1")

	resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
		SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 60,
	})
	require.NoError(t, err)
	assertConsistent(t, store, "s-1")

	_, err = svc.ConfirmReservationPayment(ctx, resp.TicketID)
	require.NoError(t, err)
	assertConsistent(t, store, "s-1")

	_, err = svc.CheckIn(ctx, resp.TicketID, &dto.CheckInRequest{VehiclePlate: "ABC-123"})
	require.NoError(t, err)
	assertConsistent(t, store, "s-1")

	out, err := svc.CheckOut(ctx, resp.TicketID)
	require.NoError(t, err)
	// stay is seconds long, 30 pre-paid covers the 15 owed
	assert.Equal(t, domain.TicketStatusPaid.String(), out.Status)
	assert.Equal(t, 0.00, out.AmountDue)
	assertConsistent(t, store, "s-1")

	vac, err := svc.ConfirmVacant(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, vac.Ignored)
	assertConsistent(t, store, "s-1")

	ticket, err := svc.GetTicket(ctx, resp.TicketID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted.String(), ticket.Status)
}

func TestGetTicket(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedAvailableSpace(store, "s-1")

	resp, err := svc.Reserve(ctx, "user-1", &dto.ReserveRequest{
		SpaceID: "s-1", VehiclePlate: "ABC-123", CommitmentMinutes: 30,
	})
	require.NoError(t, err)

	t.Run("owner reads their ticket", func(t *testing.T) {
		ticket, err := svc.GetTicket(ctx, resp.TicketID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, resp.TicketID, ticket.ID)
	})

	t.Run("someone else's ticket reads as not found", func(t *testing.T) {
		_, err := svc.GetTicket(ctx, resp.TicketID, "user-2")
		assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	})

	t.Run("internal callers skip the owner check", func(t *testing.T) {
		ticket, err := svc.GetTicket(ctx, resp.TicketID, "")
		require.NoError(t, err)
		assert.Equal(t, resp.TicketID, ticket.ID)
	})
}

func TestListMyTickets(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	earlier := time.Now().UTC().Add(-2 * time.Hour)
	later := time.Now().UTC().Add(-1 * time.Hour)
	store.SeedTicket(&domain.Ticket{
		ID: "t-old", SpaceID: "s-1", VehiclePlate: "ABC-123", UserID: "user-1",
		Status: domain.TicketStatusCompleted, CreatedAt: earlier, UpdatedAt: earlier,
	})
	store.SeedTicket(&domain.Ticket{
		ID: "t-new", SpaceID: "s-2", VehiclePlate: "DEF-456", UserID: "user-1",
		Status: domain.TicketStatusParked, CreatedAt: later, UpdatedAt: later,
	})
	store.SeedTicket(&domain.Ticket{
		ID: "t-other", SpaceID: "s-3", VehiclePlate: "GHI-789", UserID: "user-2",
		Status: domain.TicketStatusParked, CreatedAt: later, UpdatedAt: later,
	})

	mine, err := svc.ListMyTickets(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "t-new", mine[0].ID)
	assert.Equal(t, "t-old", mine[1].ID)

	none, err := svc.ListMyTickets(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.ListMyTickets(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestListSpaces(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	store.SeedSpace(&domain.Space{ID: "s-1", Code: "A-1", ZoneID: "zone-1", Status: domain.SpaceStatusAvailable})
	store.SeedSpace(&domain.Space{ID: "s-2", Code: "A-2", ZoneID: "zone-1", Status: domain.SpaceStatusOccupied})
	store.SeedSpace(&domain.Space{ID: "s-3", Code: "B-1", ZoneID: "zone-2", Status: domain.SpaceStatusAvailable})

	all, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	available, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{Status: "AVAILABLE"})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	zone2, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{ZoneID: "zone-2"})
	require.NoError(t, err)
	assert.Len(t, zone2, 1)
	assert.Equal(t, "B-1", zone2[0].Code)

	// pages are ordered by code
	page1, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "A-1", page1[0].Code)
	assert.Equal(t, "A-2", page1[1].Code)

	page2, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "B-1", page2[0].Code)

	empty, err := svc.ListSpaces(ctx, &dto.SpaceListQuery{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
