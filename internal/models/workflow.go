package models

import "time"

// Task queue and workflow naming shared by the API and the worker
const (
	CheckInTaskQueue      = "flight-checkin"
	CheckInWorkflowPrefix = "checkin-"
)

// CheckInWorkflowInput starts a check-in workflow
type CheckInWorkflowInput struct {
	TicketID  int64  `json:"ticketId"`
	RequestID string `json:"requestId"`
}

// Event routing keys published after commit
const (
	EventSaleCreated     = "sale.created"
	EventTicketCheckedIn = "ticket.checked_in"
)

// SaleCreatedEvent is published once a purchase commits
type SaleCreatedEvent struct {
	ReservationCode int64     `json:"reservationCode"`
	FlightID        int64     `json:"flightId"`
	TicketIDs       []int64   `json:"ticketIds"`
	TotalPrice      float64   `json:"totalPrice"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// TicketCheckedInEvent is published when a ticket first receives a seat
type TicketCheckedInEvent struct {
	TicketID   int64     `json:"ticketId"`
	FlightID   int64     `json:"flightId"`
	AircraftID string    `json:"aircraftId"`
	Seat       string    `json:"seat"`
	OccurredAt time.Time `json:"occurredAt"`
}
