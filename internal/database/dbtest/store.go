// Package dbtest provides an in-memory database.Transactor for tests.
//
// Transactions are serialized by a single mutex held for their whole
// duration, which gives the same outcome as the row locks taken by the
// Postgres implementation. Writes are staged and only become visible when the
// transaction function returns nil.
package dbtest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
)

// Store is an in-memory stand-in for the Postgres repository
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	flights map[int64]database.Flight
	seats   map[string][]database.Seat
	sales   map[int64]database.Sale
	tickets map[int64]database.Ticket

	nextSale   int64
	nextTicket int64
	writes     int
	commits    int

	failures map[string]error
}

var _ database.Transactor = (*Store)(nil)

// New returns an empty store whose clock is time.Now
func New() *Store {
	return &Store{
		now:        time.Now,
		flights:    make(map[int64]database.Flight),
		seats:      make(map[string][]database.Seat),
		sales:      make(map[int64]database.Sale),
		tickets:    make(map[int64]database.Ticket),
		nextSale:   1,
		nextTicket: 1,
		failures:   make(map[string]error),
	}
}

// SetClock replaces the clock read by each transaction
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddFlight registers a flight
func (s *Store) AddFlight(f database.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flights[f.ID] = f
}

// AddSeat adds one seat to an aircraft's seat map
func (s *Store) AddSeat(aircraftID, label string, firstClass bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[aircraftID] = append(s.seats[aircraftID], database.Seat{
		AircraftID: aircraftID,
		Label:      label,
		FirstClass: firstClass,
	})
}

// AddTicket stores a ticket directly, bypassing a purchase, and returns its id
func (s *Store) AddTicket(t database.Ticket) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextTicket
	s.nextTicket++
	s.tickets[t.ID] = t
	return t.ID
}

// FailOn makes every call of the named Tx method return err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Ticket returns a committed ticket
func (s *Store) Ticket(id int64) (database.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

// Tickets returns all committed tickets ordered by id
func (s *Store) Tickets() []database.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sales returns all committed sales ordered by reservation code
func (s *Store) Sales() []database.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservationCode < out[j].ReservationCode })
	return out
}

// Writes counts committed row writes
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Commits counts committed transactions
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// WithTx runs fn against a staged copy of the store and publishes the copy
// only when fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errs.Transient("failed to begin transaction", err)
	}

	tx := &memTx{
		store:      s,
		now:        s.now(),
		sales:      maps.Clone(s.sales),
		tickets:    maps.Clone(s.tickets),
		nextSale:   s.nextSale,
		nextTicket: s.nextTicket,
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.sales = tx.sales
	s.tickets = tx.tickets
	s.nextSale = tx.nextSale
	s.nextTicket = tx.nextTicket
	s.writes += tx.writes
	s.commits++
	return nil
}

type memTx struct {
	store *Store
	now   time.Time

	sales      map[int64]database.Sale
	tickets    map[int64]database.Ticket
	nextSale   int64
	nextTicket int64
	writes     int
}

func (t *memTx) fail(method string) error {
	return t.store.failures[method]
}

func (t *memTx) GetBookableFlight(_ context.Context, flightID int64) (*database.Flight, error) {
	if err := t.fail("GetBookableFlight"); err != nil {
		return nil, err
	}
	f, ok := t.store.flights[flightID]
	if !ok || !f.DepartsAt.After(t.now) {
		return nil, database.ErrNotFound
	}
	return &f, nil
}

func (t *memTx) InsertSale(_ context.Context, sale *database.Sale) error {
	if err := t.fail("InsertSale"); err != nil {
		return err
	}
	sale.ReservationCode = t.nextSale
	sale.CreatedAt = t.now
	t.nextSale++
	t.sales[sale.ReservationCode] = *sale
	t.writes++
	return nil
}

func (t *memTx) InsertTicket(_ context.Context, ticket *database.Ticket) error {
	if err := t.fail("InsertTicket"); err != nil {
		return err
	}
	if _, ok := t.sales[ticket.ReservationCode]; !ok {
		return errs.New(errs.KindConstraintViolation,
			fmt.Sprintf("insert or update on table \"ticket\" violates foreign key constraint: sale %d", ticket.ReservationCode), nil)
	}
	if len(ticket.PassengerName) > 80 {
		return errs.New(errs.KindConstraintViolation, "value too long for type character varying(80)", nil)
	}
	ticket.ID = t.nextTicket
	t.nextTicket++
	t.tickets[ticket.ID] = *ticket
	t.writes++
	return nil
}

func (t *memTx) GetTicketWithFlight(_ context.Context, ticketID int64) (*database.TicketView, error) {
	if err := t.fail("GetTicketWithFlight"); err != nil {
		return nil, err
	}
	ticket, ok := t.tickets[ticketID]
	if !ok {
		return nil, database.ErrNotFound
	}
	f, ok := t.store.flights[ticket.FlightID]
	if !ok || !f.DepartsAt.After(t.now) {
		return nil, database.ErrNotFound
	}
	return &database.TicketView{
		Ticket:           ticket,
		FlightAircraftID: f.AircraftID,
		DepartsAt:        f.DepartsAt,
	}, nil
}

func (t *memTx) LockSeatMap(_ context.Context, aircraftID string, firstClass bool) ([]database.Seat, error) {
	if err := t.fail("LockSeatMap"); err != nil {
		return nil, err
	}
	var seats []database.Seat
	for _, seat := range t.store.seats[aircraftID] {
		if seat.FirstClass == firstClass {
			seats = append(seats, seat)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Label < seats[j].Label })
	return seats, nil
}

func (t *memTx) TakenSeats(_ context.Context, aircraftID string) ([]string, error) {
	if err := t.fail("TakenSeats"); err != nil {
		return nil, err
	}
	var labels []string
	for _, ticket := range t.tickets {
		if ticket.SeatLabel != nil && ticket.AircraftID != nil && *ticket.AircraftID == aircraftID {
			labels = append(labels, *ticket.SeatLabel)
		}
	}
	return labels, nil
}

func (t *memTx) AssignSeat(_ context.Context, ticketID int64, aircraftID, label string) error {
	if err := t.fail("AssignSeat"); err != nil {
		return err
	}
	ticket, ok := t.tickets[ticketID]
	if !ok || ticket.SeatLabel != nil {
		return fmt.Errorf("failed to assign seat to ticket %d: %w", ticketID, database.ErrNotFound)
	}
	for _, other := range t.tickets {
		if other.SeatLabel != nil && other.AircraftID != nil &&
			*other.AircraftID == aircraftID && *other.SeatLabel == label {
			return errs.New(errs.KindConstraintViolation,
				"duplicate key value violates unique constraint \"ticket_seat_unique_idx\"", nil)
		}
	}
	ticket.SeatLabel = &label
	ticket.AircraftID = &aircraftID
	t.tickets[ticketID] = ticket
	t.writes++
	return nil
}
