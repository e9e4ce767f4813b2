package domain

import "time"

// TicketEventType identifies a published lifecycle event
type TicketEventType string

const (
	TicketEventReserved         TicketEventType = "ticket.reserved"
	TicketEventReservationPaid  TicketEventType = "ticket.reservation_paid"
	TicketEventCheckedIn        TicketEventType = "ticket.checked_in"
	TicketEventCheckedOut       TicketEventType = "ticket.checked_out"
	TicketEventExitPaid         TicketEventType = "ticket.exit_paid"
	TicketEventCompleted        TicketEventType = "ticket.completed"
	TicketEventNoShow           TicketEventType = "ticket.no_show"
	TicketEventOverstayReverted TicketEventType = "ticket.overstay_reverted"
	TicketEventHoldExpired      TicketEventType = "ticket.hold_expired"
)

// TicketEvent is the payload published to the event stream after a
// lifecycle transition commits.
type TicketEvent struct {
	EventID      string          `json:"event_id"`
	EventType    TicketEventType `json:"event_type"`
	TicketID     string          `json:"ticket_id"`
	SpaceID      string          `json:"space_id"`
	VehiclePlate string          `json:"vehicle_plate"`
	Status       TicketStatus    `json:"status"`
	AmountPaid   float64         `json:"amount_paid"`
	AmountDue    float64         `json:"amount_due"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewTicketEvent builds an event snapshot from a ticket
func NewTicketEvent(eventType TicketEventType, t *Ticket, eventID string) *TicketEvent {
	return &TicketEvent{
		EventID:      eventID,
		EventType:    eventType,
		TicketID:     t.ID,
		SpaceID:      t.SpaceID,
		VehiclePlate: t.VehiclePlate,
		Status:       t.Status,
		AmountPaid:   t.AmountPaid,
		AmountDue:    t.AmountDue,
		OccurredAt:   time.Now().UTC(),
	}
}

// Key returns the partition key, keeping a ticket's events ordered
func (e *TicketEvent) Key() string {
	return e.TicketID
}
