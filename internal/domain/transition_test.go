package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_LegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current TicketStatus
		event   Event
		want    TicketStatus
	}{
		{"reservation paid", TicketStatusPendingPayment, EventReservationPaid, TicketStatusReserved},
		{"exit paid settles billing hold", TicketStatusPendingPayment, EventExitPaid, TicketStatusPaid},
		{"unpaid hold times out", TicketStatusPendingPayment, EventNoShowTimeout, TicketStatusNoShow},
		{"check in", TicketStatusReserved, EventCheckIn, TicketStatusParked},
		{"reservation times out", TicketStatusReserved, EventNoShowTimeout, TicketStatusNoShow},
		{"check out", TicketStatusParked, EventCheckOut, TicketStatusPendingPayment},
		{"overstaying can still check out", TicketStatusOverstaying, EventCheckOut, TicketStatusPendingPayment},
		{"vacated completes", TicketStatusPaid, EventVacated, TicketStatusCompleted},
		{"grace expiry reverts to parked", TicketStatusPaid, EventGraceExpired, TicketStatusParked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStatus(tt.current, tt.event)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatus_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current TicketStatus
		event   Event
	}{
		{"cannot check in before paying", TicketStatusPendingPayment, EventCheckIn},
		{"cannot check out before check in", TicketStatusReserved, EventCheckOut},
		{"cannot pay reservation twice", TicketStatusReserved, EventReservationPaid},
		{"cannot check in twice", TicketStatusParked, EventCheckIn},
		{"parked ticket cannot vacate", TicketStatusParked, EventVacated},
		{"paid ticket cannot check out again", TicketStatusPaid, EventCheckOut},
		{"no show is terminal", TicketStatusNoShow, EventCheckIn},
		{"completed is terminal", TicketStatusCompleted, EventCheckOut},
		{"parked cannot time out", TicketStatusParked, EventNoShowTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NextStatus(tt.current, tt.event)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestSpaceStatusForTicket(t *testing.T) {
	now := time.Now()

	t.Run("unpaid hold keeps space reserved", func(t *testing.T) {
		ticket := &Ticket{Status: TicketStatusPendingPayment}
		assert.Equal(t, SpaceStatusReserved, SpaceStatusForTicket(ticket))
	})

	t.Run("exit billing keeps space occupied", func(t *testing.T) {
		ticket := &Ticket{Status: TicketStatusPendingPayment, CheckinAt: &now}
		assert.Equal(t, SpaceStatusOccupied, SpaceStatusForTicket(ticket))
	})

	t.Run("reserved", func(t *testing.T) {
		assert.Equal(t, SpaceStatusReserved, SpaceStatusForTicket(&Ticket{Status: TicketStatusReserved}))
	})

	t.Run("parked", func(t *testing.T) {
		assert.Equal(t, SpaceStatusOccupied, SpaceStatusForTicket(&Ticket{Status: TicketStatusParked, CheckinAt: &now}))
	})

	t.Run("paid awaits vacating", func(t *testing.T) {
		assert.Equal(t, SpaceStatusPendingVacate, SpaceStatusForTicket(&Ticket{Status: TicketStatusPaid, CheckinAt: &now}))
	})

	t.Run("terminal pairs with available", func(t *testing.T) {
		assert.Equal(t, SpaceStatusAvailable, SpaceStatusForTicket(&Ticket{Status: TicketStatusCompleted}))
		assert.Equal(t, SpaceStatusAvailable, SpaceStatusForTicket(&Ticket{Status: TicketStatusNoShow}))
	})
}

func TestSpaceConsistent(t *testing.T) {
	now := time.Now()
	ticketID := "t-1"

	t.Run("available space holds nothing", func(t *testing.T) {
		space := &Space{ID: "s-1", Status: SpaceStatusAvailable}
		assert.True(t, space.Consistent(nil))

		space.CurrentTicketID = &ticketID
		assert.False(t, space.Consistent(nil))
	})

	t.Run("occupied space matches parked ticket", func(t *testing.T) {
		space := &Space{ID: "s-1", Status: SpaceStatusOccupied, CurrentTicketID: &ticketID}
		ticket := &Ticket{ID: ticketID, Status: TicketStatusParked, CheckinAt: &now}
		assert.True(t, space.Consistent(ticket))
	})

	t.Run("mismatched pairing detected", func(t *testing.T) {
		space := &Space{ID: "s-1", Status: SpaceStatusReserved, CurrentTicketID: &ticketID}
		ticket := &Ticket{ID: ticketID, Status: TicketStatusParked, CheckinAt: &now}
		assert.False(t, space.Consistent(ticket))
	})
}

func TestNoShowDeadline(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ticket := &Ticket{CommitmentMinutes: 30, ReservationStartedAt: &start}

	deadline, ok := ticket.NoShowDeadline()
	assert.True(t, ok)
	assert.Equal(t, start.Add(30*time.Minute), deadline)

	_, ok = (&Ticket{CommitmentMinutes: 30}).NoShowDeadline()
	assert.False(t, ok)
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "ABC-123", NormalizePlate("  abc-123 "))
	assert.Equal(t, "ABC-123", NormalizePlate("ABC-123"))
	assert.Equal(t, "", NormalizePlate("   "))
}
