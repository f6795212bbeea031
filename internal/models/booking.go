package models

import "time"

// PassengerRequest is one ticket line of a purchase
type PassengerRequest struct {
	Name  string    `json:"name" validate:"required,max=80"`
	Class FareClass `json:"class" validate:"required,fareclass"`
}

// PurchaseRequest buys one or more tickets on a single flight
type PurchaseRequest struct {
	FlightID      int64              `json:"flightId" validate:"gt=0"`
	CustomerTaxID string             `json:"customerTaxId" validate:"required,len=9,number"`
	Passengers    []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
}

// FlightSummary describes the flight a sale was made on
type FlightSummary struct {
	ID          int64     `json:"id"`
	AircraftID  string    `json:"aircraftId"`
	DepartsAt   time.Time `json:"departsAt"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
}

// TicketInfo is one issued ticket
type TicketInfo struct {
	ID            int64     `json:"id"`
	PassengerName string    `json:"passengerName"`
	Class         FareClass `json:"class"`
	Price         float64   `json:"price"`
}

// PurchaseResult is returned after a committed purchase. Tickets follow the
// order of the request's passengers.
type PurchaseResult struct {
	ReservationCode int64         `json:"reservationCode"`
	CustomerTaxID   string        `json:"customerTaxId"`
	Flight          FlightSummary `json:"flight"`
	Tickets         []TicketInfo  `json:"tickets"`
	TotalPrice      float64       `json:"totalPrice"`
}

// CheckInResult is the seat held by a ticket after check-in
type CheckInResult struct {
	TicketID         int64     `json:"ticketId"`
	FlightID         int64     `json:"flightId"`
	PassengerName    string    `json:"passengerName"`
	Class            FareClass `json:"class"`
	AircraftID       string    `json:"aircraftId"`
	Seat             string    `json:"seat"`
	AlreadyCheckedIn bool      `json:"alreadyCheckedIn"`
}
