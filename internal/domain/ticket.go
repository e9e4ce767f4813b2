package domain

import (
	"strings"
	"time"
)

// TicketStatus represents the lifecycle state of a parking ticket
type TicketStatus string

const (
	TicketStatusPendingPayment TicketStatus = "PENDING_PAYMENT"
	TicketStatusReserved       TicketStatus = "RESERVED"
	TicketStatusParked         TicketStatus = "PARKED"
	// TicketStatusOverstaying is accepted as a check-out precondition for
	// tickets written by earlier revisions; no current transition produces it.
	// The overstay sweep reverts PAID tickets straight back to PARKED.
	TicketStatusOverstaying TicketStatus = "OVERSTAYING"
	TicketStatusPaid        TicketStatus = "PAID"
	TicketStatusNoShow      TicketStatus = "NO_SHOW"
	TicketStatusCompleted   TicketStatus = "COMPLETED"
)

// String returns the string representation
func (s TicketStatus) String() string {
	return string(s)
}

// IsActive reports whether the ticket still holds a space
func (s TicketStatus) IsActive() bool {
	switch s {
	case TicketStatusPendingPayment, TicketStatusReserved, TicketStatusParked,
		TicketStatusOverstaying, TicketStatusPaid:
		return true
	}
	return false
}

// IsTerminal reports whether the ticket can never transition again
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusNoShow || s == TicketStatusCompleted
}

// ActiveTicketStatuses are the statuses under which a vehicle plate may hold
// at most one ticket. Matches the partial unique index on tickets.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusPendingPayment,
	TicketStatusReserved,
	TicketStatusParked,
	TicketStatusOverstaying,
	TicketStatusPaid,
}

// Ticket represents one parking transaction for one vehicle in one space
type Ticket struct {
	ID                   string       `json:"id"`
	SpaceID              string       `json:"space_id"`
	VehiclePlate         string       `json:"vehicle_plate"`
	Status               TicketStatus `json:"status"`
	CommitmentMinutes    int          `json:"commitment_minutes"`
	AmountPaid           float64      `json:"amount_paid"`
	AmountDue            float64      `json:"amount_due"`
	ReservationStartedAt *time.Time   `json:"reservation_started_at,omitempty"`
	CheckinAt            *time.Time   `json:"checkin_at,omitempty"`
	CheckoutAt           *time.Time   `json:"checkout_at,omitempty"`
	TotalFee             *float64     `json:"total_fee,omitempty"`
	GraceStartedAt       *time.Time   `json:"grace_started_at,omitempty"`
	CancelReason         string       `json:"cancel_reason,omitempty"`
	UserID               string       `json:"user_id"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// NormalizePlate upper-cases and trims a vehicle plate for storage and matching
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// NoShowDeadline returns the instant after which an unchecked-in reservation
// is forfeit. Returns false if the reservation clock never started.
func (t *Ticket) NoShowDeadline() (time.Time, bool) {
	if t.ReservationStartedAt == nil {
		return time.Time{}, false
	}
	return t.ReservationStartedAt.Add(time.Duration(t.CommitmentMinutes) * time.Minute), true
}
