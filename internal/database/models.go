package database

import "time"

// Airport represents an airport in the database
type Airport struct {
	Code string
	Name string
	City string
}

// Flight represents a scheduled flight in the database
type Flight struct {
	ID         int64
	AircraftID string
	DepartsAt  time.Time
	DepAirport string
	ArrAirport string
}

// Seat represents one seat of an aircraft's seat map
type Seat struct {
	AircraftID string
	Label      string
	FirstClass bool
}

// Sale represents a purchase; it owns one or more tickets
type Sale struct {
	ReservationCode int64
	CustomerTaxID   string
	OriginAirport   string
	CreatedAt       time.Time
}

// Ticket represents a ticket in the database. SeatLabel and AircraftID are
// both nil until check-in.
type Ticket struct {
	ID              int64
	FlightID        int64
	ReservationCode int64
	PassengerName   string
	FirstClass      bool
	Price           float64
	SeatLabel       *string
	AircraftID      *string
}

// TicketView is a ticket joined with its flight
type TicketView struct {
	Ticket
	FlightAircraftID string
	DepartsAt        time.Time
}

// Departure is a flight leaving an airport within a time window
type Departure struct {
	FlightID   int64
	AircraftID string
	DepartsAt  time.Time
	ArrAirport string
}

// AvailableFlight is a future flight with unsold seats
type AvailableFlight struct {
	FlightID   int64
	AircraftID string
	DepartsAt  time.Time
	SeatsLeft  int
}
