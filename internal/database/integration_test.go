package database_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/seating"
)

// integrationPool connects to DATABASE_URL and applies the schema. Tests
// using it are skipped when the variable is unset.
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, url, 1, 16)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

// seedFlight creates an aircraft with seatCount economy seats, a flight
// departing in an hour and ticketCount unassigned economy tickets on it
func seedFlight(t *testing.T, pool *pgxpool.Pool, seatCount, ticketCount int) []int64 {
	t.Helper()
	ctx := context.Background()
	aircraftID := "IT-" + uuid.NewString()

	_, err := pool.Exec(ctx, `
		INSERT INTO airport (code, name, city) VALUES
			('LIS', 'Humberto Delgado', 'Lisboa'),
			('OPO', 'Francisco Sá Carneiro', 'Porto')
		ON CONFLICT DO NOTHING
	`)
	require.NoError(t, err)

	for i := 1; i <= seatCount; i++ {
		_, err := pool.Exec(ctx, `INSERT INTO seat (aircraft_id, label, first_class) VALUES ($1, $2, false)`,
			aircraftID, fmt.Sprintf("%02dA", i))
		require.NoError(t, err)
	}

	var flightID, reservationCode int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO flight (aircraft_id, departs_at, dep_airport, arr_airport)
		VALUES ($1, NOW() + INTERVAL '1 hour', 'LIS', 'OPO')
		RETURNING id
	`, aircraftID).Scan(&flightID))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO sale (customer_tax_id, origin_airport) VALUES ('123456789', 'LIS')
		RETURNING reservation_code
	`).Scan(&reservationCode))

	ids := make([]int64, 0, ticketCount)
	for i := 0; i < ticketCount; i++ {
		var id int64
		require.NoError(t, pool.QueryRow(ctx, `
			INSERT INTO ticket (flight_id, reservation_code, passenger_name, first_class, price)
			VALUES ($1, $2, $3, false, 10)
			RETURNING id
		`, flightID, reservationCode, fmt.Sprintf("Passenger %d", i)).Scan(&id))
		ids = append(ids, id)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM ticket WHERE flight_id = $1`, flightID)
		_, _ = pool.Exec(ctx, `DELETE FROM sale WHERE reservation_code = $1`, reservationCode)
		_, _ = pool.Exec(ctx, `DELETE FROM flight WHERE id = $1`, flightID)
		_, _ = pool.Exec(ctx, `DELETE FROM seat WHERE aircraft_id = $1`, aircraftID)
	})
	return ids
}

type checkInOutcome struct {
	res *models.CheckInResult
	err error
}

func checkInConcurrently(engine *seating.Engine, ticketIDs []int64) []checkInOutcome {
	out := make([]checkInOutcome, len(ticketIDs))
	var wg sync.WaitGroup
	for i, id := range ticketIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := engine.CheckIn(ctx, id)
			out[i] = checkInOutcome{res: res, err: err}
		}(i, id)
	}
	wg.Wait()
	return out
}

func TestPostgres_ConcurrentCheckInsNeverShareASeat(t *testing.T) {
	pool := integrationPool(t)
	ticketIDs := seedFlight(t, pool, 12, 13)
	engine := seating.NewEngine(database.NewRepository(pool, 10*time.Second), logger.Discard())

	seats := make(map[string]int64)
	var full int
	for _, o := range checkInConcurrently(engine, ticketIDs) {
		if o.err != nil {
			require.Equal(t, errs.KindNoSeatAvailable, errs.KindOf(o.err), o.err.Error())
			full++
			continue
		}
		prev, dup := seats[o.res.Seat]
		assert.False(t, dup, "seat %s given to tickets %d and %d", o.res.Seat, prev, o.res.TicketID)
		seats[o.res.Seat] = o.res.TicketID
	}

	assert.Len(t, seats, 12)
	assert.Equal(t, 1, full)
}

func TestPostgres_RepeatedCheckInsKeepOneSeat(t *testing.T) {
	pool := integrationPool(t)
	ticketIDs := seedFlight(t, pool, 12, 1)
	engine := seating.NewEngine(database.NewRepository(pool, 10*time.Second), logger.Discard())

	same := make([]int64, 8)
	for i := range same {
		same[i] = ticketIDs[0]
	}

	var first int
	for _, o := range checkInConcurrently(engine, same) {
		require.NoError(t, o.err)
		assert.Equal(t, "01A", o.res.Seat)
		if !o.res.AlreadyCheckedIn {
			first++
		}
	}
	assert.Equal(t, 1, first)
}
