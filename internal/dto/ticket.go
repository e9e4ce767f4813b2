package dto

import "time"

// ReserveRequest is the payload for creating a reservation hold
type ReserveRequest struct {
	SpaceID           string `json:"space_id" binding:"required"`
	VehiclePlate      string `json:"vehicle_plate" binding:"required"`
	CommitmentMinutes int    `json:"commitment_minutes" binding:"required"`
}

// ReserveResponse is returned after a reservation hold is created
type ReserveResponse struct {
	TicketID     string  `json:"ticket_id"`
	SpaceCode    string  `json:"space_code"`
	VehiclePlate string  `json:"vehicle_plate"`
	Status       string  `json:"status"`
	AmountDue    float64 `json:"amount_due"`
}

// CheckInRequest is the payload for checking a vehicle in
type CheckInRequest struct {
	VehiclePlate string `json:"vehicle_plate" binding:"required"`
}

// CheckOutResponse carries the computed exit bill. AmountDue of zero means
// the pre-paid fee covered the stay and no further payment step is needed.
type CheckOutResponse struct {
	TicketID        string  `json:"ticket_id"`
	Status          string  `json:"status"`
	TotalParkingFee float64 `json:"total_parking_fee"`
	AmountPaid      float64 `json:"amount_paid"`
	AmountDue       float64 `json:"amount_due"`
}

// TicketResponse is the full ticket view
type TicketResponse struct {
	ID                   string     `json:"id"`
	SpaceID              string     `json:"space_id"`
	VehiclePlate         string     `json:"vehicle_plate"`
	Status               string     `json:"status"`
	CommitmentMinutes    int        `json:"commitment_minutes"`
	AmountPaid           float64    `json:"amount_paid"`
	AmountDue            float64    `json:"amount_due"`
	ReservationStartedAt *time.Time `json:"reservation_started_at,omitempty"`
	CheckinAt            *time.Time `json:"checkin_at,omitempty"`
	CheckoutAt           *time.Time `json:"checkout_at,omitempty"`
	TotalFee             *float64   `json:"total_fee,omitempty"`
	CancelReason         string     `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// VacantResponse reports the outcome of a sensor vacancy signal. Ignored is
// true when the space was not awaiting vacating; that is not an error.
type VacantResponse struct {
	SpaceID string `json:"space_id"`
	Ignored bool   `json:"ignored"`
	Message string `json:"message"`
}

// ErrorResponse is the error payload for all handlers
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
