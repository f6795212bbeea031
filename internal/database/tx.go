package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx is the set of statements the booking and seating engines run inside a
// single store transaction.
type Tx interface {
	// GetBookableFlight returns the flight only if it departs after the
	// transaction's current time.
	GetBookableFlight(ctx context.Context, flightID int64) (*Flight, error)
	InsertSale(ctx context.Context, sale *Sale) error
	InsertTicket(ctx context.Context, ticket *Ticket) error
	// GetTicketWithFlight locks the ticket row and requires its flight not
	// to have departed.
	GetTicketWithFlight(ctx context.Context, ticketID int64) (*TicketView, error)
	// LockSeatMap locks every seat of the aircraft in the given class and
	// returns them ordered by label.
	LockSeatMap(ctx context.Context, aircraftID string, firstClass bool) ([]Seat, error)
	// TakenSeats returns the labels held by any ticket on the aircraft.
	TakenSeats(ctx context.Context, aircraftID string) ([]string, error)
	AssignSeat(ctx context.Context, ticketID int64, aircraftID, label string) error
}

// Transactor runs fn inside one transaction. The transaction commits only
// if fn returns nil.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type pgTx struct {
	tx pgx.Tx
}

// GetBookableFlight returns a flight that has not departed yet
func (t *pgTx) GetBookableFlight(ctx context.Context, flightID int64) (*Flight, error) {
	var f Flight
	err := t.tx.QueryRow(ctx, `
		SELECT id, aircraft_id, departs_at, dep_airport, arr_airport
		FROM flight
		WHERE id = $1 AND departs_at > NOW()
	`, flightID).Scan(&f.ID, &f.AircraftID, &f.DepartsAt, &f.DepAirport, &f.ArrAirport)
	if err != nil {
		return nil, Classify("failed to get flight", err)
	}
	return &f, nil
}

// InsertSale creates a sale and fills in its reservation code
func (t *pgTx) InsertSale(ctx context.Context, sale *Sale) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sale (customer_tax_id, origin_airport)
		VALUES ($1, $2)
		RETURNING reservation_code, created_at
	`, sale.CustomerTaxID, sale.OriginAirport).Scan(&sale.ReservationCode, &sale.CreatedAt)
	if err != nil {
		return Classify("failed to insert sale", err)
	}
	return nil
}

// InsertTicket creates an unassigned ticket and fills in its id
func (t *pgTx) InsertTicket(ctx context.Context, ticket *Ticket) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ticket (flight_id, reservation_code, passenger_name, first_class, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ticket.FlightID, ticket.ReservationCode, ticket.PassengerName, ticket.FirstClass, ticket.Price).Scan(&ticket.ID)
	if err != nil {
		return Classify("failed to insert ticket", err)
	}
	return nil
}

// GetTicketWithFlight loads a ticket of a future flight, locking the ticket row
func (t *pgTx) GetTicketWithFlight(ctx context.Context, ticketID int64) (*TicketView, error) {
	var v TicketView
	err := t.tx.QueryRow(ctx, `
		SELECT t.id, t.flight_id, t.reservation_code, t.passenger_name, t.first_class,
		       t.price, t.seat_label, t.aircraft_id, f.aircraft_id, f.departs_at
		FROM ticket t
		JOIN flight f ON f.id = t.flight_id
		WHERE t.id = $1 AND f.departs_at > NOW()
		FOR UPDATE OF t
	`, ticketID).Scan(
		&v.ID, &v.FlightID, &v.ReservationCode, &v.PassengerName, &v.FirstClass,
		&v.Price, &v.SeatLabel, &v.AircraftID, &v.FlightAircraftID, &v.DepartsAt,
	)
	if err != nil {
		return nil, Classify("failed to get ticket", err)
	}
	return &v, nil
}

// LockSeatMap locks the seat rows of one class of an aircraft
func (t *pgTx) LockSeatMap(ctx context.Context, aircraftID string, firstClass bool) ([]Seat, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT aircraft_id, label, first_class
		FROM seat
		WHERE aircraft_id = $1 AND first_class = $2
		ORDER BY label
		FOR UPDATE
	`, aircraftID, firstClass)
	if err != nil {
		return nil, Classify("failed to lock seat map", err)
	}
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.AircraftID, &s.Label, &s.FirstClass); err != nil {
			return nil, Classify("failed to scan seat", err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to read seat map", err)
	}
	return seats, nil
}

// TakenSeats returns the seat labels already assigned on an aircraft
func (t *pgTx) TakenSeats(ctx context.Context, aircraftID string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT seat_label FROM ticket
		WHERE aircraft_id = $1 AND seat_label IS NOT NULL
	`, aircraftID)
	if err != nil {
		return nil, Classify("failed to query taken seats", err)
	}
	labels, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, Classify("failed to scan taken seats", err)
	}
	return labels, nil
}

// AssignSeat records the seat on a ticket that has none yet
func (t *pgTx) AssignSeat(ctx context.Context, ticketID int64, aircraftID, label string) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE ticket
		SET seat_label = $1, aircraft_id = $2
		WHERE id = $3 AND seat_label IS NULL
	`, label, aircraftID, ticketID)
	if err != nil {
		return Classify("failed to assign seat", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to assign seat to ticket %d: %w", ticketID, ErrNotFound)
	}
	return nil
}
