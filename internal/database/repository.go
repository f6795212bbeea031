package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultAcquireTimeout = 5 * time.Second

var _ Transactor = (*Repository)(nil)

// Repository handles all database operations
type Repository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewRepository creates a new repository. Connection acquisition is bounded
// by acquireTimeout; a zero value uses the default of five seconds.
func NewRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *Repository {
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	return &Repository{pool: pool, acquireTimeout: acquireTimeout}
}

// acquire takes a pooled connection, giving up after the acquire timeout
func (r *Repository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, Classify("failed to acquire connection", err)
	}
	return conn, nil
}

// WithTx runs fn in a read-committed transaction. Any error returned by fn,
// or a panic, rolls the transaction back.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Classify("failed to begin transaction", err)
	}
	return runTx(ctx, tx, fn)
}

// runTx runs fn against tx and commits when it returns nil. Anything else,
// including a panic, rolls back.
func runTx(ctx context.Context, tx pgx.Tx, fn func(tx Tx) error) error {
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify("failed to commit transaction", err)
	}
	committed = true
	return nil
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	conn, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return Classify("failed to ping database", conn.Ping(ctx))
}

// --- Lookups ---

// ListAirports returns all airports ordered by code
func (r *Repository) ListAirports(ctx context.Context) ([]Airport, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT code, name, city
		FROM airport
		ORDER BY code
	`)
	if err != nil {
		return nil, Classify("failed to query airports", err)
	}
	defer rows.Close()

	var airports []Airport
	for rows.Next() {
		var a Airport
		if err := rows.Scan(&a.Code, &a.Name, &a.City); err != nil {
			return nil, Classify("failed to scan airport", err)
		}
		airports = append(airports, a)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to read airports", err)
	}
	return airports, nil
}

// AirportExists reports whether an airport with the given code exists
func (r *Repository) AirportExists(ctx context.Context, code string) (bool, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM airport WHERE code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, Classify("failed to check airport", err)
	}
	return exists, nil
}

// Departures returns the flights leaving an airport within window from now,
// ordered by departure time
func (r *Repository) Departures(ctx context.Context, code string, window time.Duration) ([]Departure, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, aircraft_id, departs_at, arr_airport
		FROM flight
		WHERE dep_airport = $1
		  AND departs_at BETWEEN NOW() AND NOW() + make_interval(secs => $2)
		ORDER BY departs_at, id
	`, code, window.Seconds())
	if err != nil {
		return nil, Classify("failed to query departures", err)
	}
	defer rows.Close()

	var departures []Departure
	for rows.Next() {
		var d Departure
		if err := rows.Scan(&d.FlightID, &d.AircraftID, &d.DepartsAt, &d.ArrAirport); err != nil {
			return nil, Classify("failed to scan departure", err)
		}
		departures = append(departures, d)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to read departures", err)
	}
	return departures, nil
}

// AvailableFlights returns up to limit future flights between two airports
// that have sold fewer tickets than their aircraft has seats
func (r *Repository) AvailableFlights(ctx context.Context, from, to string, limit int) ([]AvailableFlight, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT f.id, f.aircraft_id, f.departs_at,
		       (SELECT COUNT(*) FROM seat s WHERE s.aircraft_id = f.aircraft_id)
		     - (SELECT COUNT(*) FROM ticket t WHERE t.flight_id = f.id) AS seats_left
		FROM flight f
		WHERE f.dep_airport = $1
		  AND f.arr_airport = $2
		  AND f.departs_at > NOW()
		  AND (SELECT COUNT(*) FROM seat s WHERE s.aircraft_id = f.aircraft_id)
		    > (SELECT COUNT(*) FROM ticket t WHERE t.flight_id = f.id)
		ORDER BY f.departs_at, f.id
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, Classify("failed to query available flights", err)
	}
	defer rows.Close()

	var flights []AvailableFlight
	for rows.Next() {
		var f AvailableFlight
		if err := rows.Scan(&f.FlightID, &f.AircraftID, &f.DepartsAt, &f.SeatsLeft); err != nil {
			return nil, Classify("failed to scan available flight", err)
		}
		flights = append(flights, f)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to read available flights", err)
	}
	return flights, nil
}
