package dto

// SpaceResponse is the public space view
type SpaceResponse struct {
	ID              string  `json:"id"`
	Code            string  `json:"code"`
	ZoneID          string  `json:"zone_id"`
	Status          string  `json:"status"`
	CurrentTicketID *string `json:"current_ticket_id,omitempty"`
}

// SpaceListQuery filters the space listing
type SpaceListQuery struct {
	Status string `form:"status"`
	ZoneID string `form:"zone_id"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
