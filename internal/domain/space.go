package domain

import "time"

// SpaceStatus represents the occupancy state of a parking space
type SpaceStatus string

const (
	SpaceStatusAvailable     SpaceStatus = "AVAILABLE"
	SpaceStatusReserved      SpaceStatus = "RESERVED"
	SpaceStatusOccupied      SpaceStatus = "OCCUPIED"
	SpaceStatusPendingVacate SpaceStatus = "PENDING_VACATE"
)

// IsValid checks if the space status is a known value
func (s SpaceStatus) IsValid() bool {
	switch s {
	case SpaceStatusAvailable, SpaceStatusReserved, SpaceStatusOccupied, SpaceStatusPendingVacate:
		return true
	}
	return false
}

// Space represents a physical parking slot
type Space struct {
	ID              string      `json:"id"`
	Code            string      `json:"code"`
	ZoneID          string      `json:"zone_id"`
	Status          SpaceStatus `json:"status"`
	CurrentTicketID *string     `json:"current_ticket_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Hold points the space at the ticket currently reserving or occupying it
func (s *Space) Hold(ticketID string, status SpaceStatus) {
	s.Status = status
	s.CurrentTicketID = &ticketID
}

// Release returns the space to the available pool
func (s *Space) Release() {
	s.Status = SpaceStatusAvailable
	s.CurrentTicketID = nil
}

// Consistent reports whether the space and its held ticket agree on occupancy.
// An available space must hold no ticket; any other status must reference a
// ticket whose status pairs with the space status.
func (s *Space) Consistent(held *Ticket) bool {
	if s.Status == SpaceStatusAvailable {
		return s.CurrentTicketID == nil
	}
	if s.CurrentTicketID == nil || held == nil || held.ID != *s.CurrentTicketID {
		return false
	}
	return SpaceStatusForTicket(held) == s.Status
}
