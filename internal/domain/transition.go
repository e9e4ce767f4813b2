package domain

import "fmt"

// Event is a lifecycle trigger applied to a ticket
type Event string

const (
	// EventReservationPaid confirms the up-front reservation fee payment
	EventReservationPaid Event = "reservation_paid"
	// EventCheckIn records the vehicle entering its space
	EventCheckIn Event = "check_in"
	// EventCheckOut starts exit billing
	EventCheckOut Event = "check_out"
	// EventExitPaid confirms the exit balance payment
	EventExitPaid Event = "exit_paid"
	// EventVacated records the sensor confirming the space is empty
	EventVacated Event = "vacated"
	// EventNoShowTimeout cancels a reservation or unpaid hold past its deadline
	EventNoShowTimeout Event = "no_show_timeout"
	// EventGraceExpired reverts a paid ticket that never left its space
	EventGraceExpired Event = "grace_expired"
)

// transitions is the single authoritative ticket state machine. Guards that
// depend on more than the status (plate match, checkin timestamp presence)
// live in the lifecycle service; everything status-shaped lives here.
var transitions = map[TicketStatus]map[Event]TicketStatus{
	TicketStatusPendingPayment: {
		EventReservationPaid: TicketStatusReserved,
		EventExitPaid:        TicketStatusPaid,
		EventNoShowTimeout:   TicketStatusNoShow,
	},
	TicketStatusReserved: {
		EventCheckIn:       TicketStatusParked,
		EventNoShowTimeout: TicketStatusNoShow,
	},
	TicketStatusParked: {
		EventCheckOut: TicketStatusPendingPayment,
	},
	TicketStatusOverstaying: {
		EventCheckOut: TicketStatusPendingPayment,
	},
	TicketStatusPaid: {
		EventVacated:      TicketStatusCompleted,
		EventGraceExpired: TicketStatusParked,
	},
}

// NextStatus applies an event to a ticket status and returns the resulting
// status, or ErrInvalidTransition when the event is not legal from it.
func NextStatus(current TicketStatus, ev Event) (TicketStatus, error) {
	if next, ok := transitions[current][ev]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: %s does not accept %s", ErrInvalidTransition, current, ev)
}

// SpaceStatusForTicket returns the space status that must accompany an active
// ticket. PENDING_PAYMENT is ambiguous on status alone: before check-in it is
// an unpaid hold (space RESERVED), after check-out it is exit billing (space
// still OCCUPIED). Terminal statuses pair with an available space.
func SpaceStatusForTicket(t *Ticket) SpaceStatus {
	switch t.Status {
	case TicketStatusPendingPayment:
		if t.CheckinAt != nil {
			return SpaceStatusOccupied
		}
		return SpaceStatusReserved
	case TicketStatusReserved:
		return SpaceStatusReserved
	case TicketStatusParked, TicketStatusOverstaying:
		return SpaceStatusOccupied
	case TicketStatusPaid:
		return SpaceStatusPendingVacate
	default:
		return SpaceStatusAvailable
	}
}
