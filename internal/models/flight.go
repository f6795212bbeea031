package models

import "time"

// Airport is a row of the airport listing
type Airport struct {
	Code string `json:"code"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Departure is a flight leaving an airport soon
type Departure struct {
	FlightID    int64     `json:"flightId"`
	AircraftID  string    `json:"aircraftId"`
	DepartsAt   time.Time `json:"departsAt"`
	Destination string    `json:"destination"`
}

// AvailableFlight is a future flight between two airports that still has
// tickets for sale
type AvailableFlight struct {
	FlightID   int64     `json:"flightId"`
	AircraftID string    `json:"aircraftId"`
	DepartsAt  time.Time `json:"departsAt"`
	SeatsLeft  int       `json:"seatsLeft"`
}
