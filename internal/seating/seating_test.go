package seating

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-ticketing/internal/booking"
	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/database/dbtest"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/pricing"
)

func strPtr(s string) *string { return &s }

// newStore returns a store with flight 1 on aircraft A departing in two hours.
// A has seats 1A and 2A in first class and 10C in economy.
func newStore(t *testing.T) *dbtest.Store {
	t.Helper()
	store := dbtest.New()
	store.AddFlight(database.Flight{
		ID:         1,
		AircraftID: "A",
		DepartsAt:  time.Now().Add(2 * time.Hour),
		DepAirport: "LIS",
		ArrAirport: "OPO",
	})
	store.AddSeat("A", "1A", true)
	store.AddSeat("A", "2A", true)
	store.AddSeat("A", "10C", false)
	return store
}

func TestPickSeat(t *testing.T) {
	seats := []database.Seat{
		{Label: "3B"}, {Label: "1A"}, {Label: "2C"},
	}

	tests := []struct {
		name   string
		taken  []string
		want   string
		wantOK bool
	}{
		{"lowest label first", nil, "1A", true},
		{"skips taken", []string{"1A"}, "2C", true},
		{"ignores labels outside the map", []string{"9Z", "1A", "2C"}, "3B", true},
		{"all taken", []string{"1A", "2C", "3B"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickSeat(seats, tt.taken)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := PickSeat(nil, nil)
	assert.False(t, ok)
}

func TestCheckIn_PurchaseThenCheckInScenario(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	manager := booking.NewManager(store, pricing.NewSource(1), logger.Discard())
	engine := NewEngine(store, logger.Discard())

	sale, err := manager.Purchase(ctx, models.PurchaseRequest{
		FlightID:      1,
		CustomerTaxID: "123456789",
		Passengers: []models.PassengerRequest{
			{Name: "Ann", Class: "first"},
			{Name: "Bob", Class: "economica"},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Tickets, 2)
	assert.GreaterOrEqual(t, sale.Tickets[0].Price, 500.0)
	assert.LessOrEqual(t, sale.Tickets[1].Price, 550.0)

	ann, err := engine.CheckIn(ctx, sale.Tickets[0].ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"1A", "2A"}, ann.Seat)
	assert.Equal(t, "Ann", ann.PassengerName)
	assert.Equal(t, models.FareClassFirst, ann.Class)
	assert.False(t, ann.AlreadyCheckedIn)

	bob, err := engine.CheckIn(ctx, sale.Tickets[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "10C", bob.Seat)
	assert.Equal(t, models.FareClassEconomy, bob.Class)

	more, err := manager.Purchase(ctx, models.PurchaseRequest{
		FlightID:      1,
		CustomerTaxID: "987654321",
		Passengers: []models.PassengerRequest{
			{Name: "Cid", Class: "primeira"},
			{Name: "Dee", Class: "primeira"},
		},
	})
	require.NoError(t, err)

	cid, err := engine.CheckIn(ctx, more.Tickets[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, ann.Seat, cid.Seat)

	_, err = engine.CheckIn(ctx, more.Tickets[1].ID)
	assert.ErrorIs(t, err, errs.ErrNoSeatAvailable)
	assert.True(t, errs.ClientAttributable(err))

	dee, ok := store.Ticket(more.Tickets[1].ID)
	require.True(t, ok)
	assert.Nil(t, dee.SeatLabel)
}

func TestCheckIn_RepeatIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id := store.AddTicket(database.Ticket{FlightID: 1, PassengerName: "Ann", FirstClass: true, Price: 700})
	engine := NewEngine(store, logger.Discard())

	first, err := engine.CheckIn(ctx, id)
	require.NoError(t, err)
	writes := store.Writes()

	second, err := engine.CheckIn(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first.Seat, second.Seat)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Equal(t, writes, store.Writes())
}

func TestCheckIn_TicketNotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	store.AddFlight(database.Flight{
		ID:         2,
		AircraftID: "A",
		DepartsAt:  time.Now().Add(-time.Hour),
		DepAirport: "OPO",
		ArrAirport: "LIS",
	})
	departed := store.AddTicket(database.Ticket{FlightID: 2, PassengerName: "Old", Price: 200})
	engine := NewEngine(store, logger.Discard())

	for _, id := range []int64{999999, departed} {
		_, err := engine.CheckIn(ctx, id)
		assert.ErrorIs(t, err, errs.ErrTicketNotFound)
	}
	assert.Zero(t, store.Writes())
}

func TestCheckIn_InvalidTicketID(t *testing.T) {
	_, err := NewEngine(newStore(t), logger.Discard()).CheckIn(context.Background(), 0)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCheckIn_SeatHeldOnAnotherFlightOfSameAircraft(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	store.AddFlight(database.Flight{
		ID:         3,
		AircraftID: "A",
		DepartsAt:  time.Now().Add(6 * time.Hour),
		DepAirport: "OPO",
		ArrAirport: "LIS",
	})
	store.AddTicket(database.Ticket{
		FlightID:      3,
		PassengerName: "Eve",
		FirstClass:    true,
		Price:         900,
		SeatLabel:     strPtr("1A"),
		AircraftID:    strPtr("A"),
	})
	id := store.AddTicket(database.Ticket{FlightID: 1, PassengerName: "Ann", FirstClass: true, Price: 700})

	res, err := NewEngine(store, logger.Discard()).CheckIn(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2A", res.Seat)
}

func TestCheckIn_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id := store.AddTicket(database.Ticket{FlightID: 1, PassengerName: "Ann", FirstClass: true, Price: 700})
	store.FailOn("AssignSeat", errs.Transient("failed to assign seat", fmt.Errorf("deadlock detected")))

	_, err := NewEngine(store, logger.Discard()).CheckIn(ctx, id)

	assert.ErrorIs(t, err, errs.ErrTransient)
	assert.True(t, errs.Retryable(err))
	ticket, _ := store.Ticket(id)
	assert.Nil(t, ticket.SeatLabel)
}

func TestCheckIn_ConcurrentCheckInsNeverShareSeats(t *testing.T) {
	const seats = 12
	ctx := context.Background()
	store := dbtest.New()
	store.AddFlight(database.Flight{
		ID:         1,
		AircraftID: "B",
		DepartsAt:  time.Now().Add(time.Hour),
		DepAirport: "LIS",
		ArrAirport: "OPO",
	})
	for i := 1; i <= seats; i++ {
		store.AddSeat("B", fmt.Sprintf("%02dC", i), false)
	}
	ids := make([]int64, seats+1)
	for i := range ids {
		ids[i] = store.AddTicket(database.Ticket{FlightID: 1, PassengerName: fmt.Sprintf("P%d", i), Price: 200})
	}
	engine := NewEngine(store, logger.Discard())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = make(map[string]int64)
		noSeat   int
		other    []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := engine.CheckIn(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assigned[res.Seat] = id
			case errs.KindOf(err) == errs.KindNoSeatAvailable:
				noSeat++
			default:
				other = append(other, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Len(t, assigned, seats)
	assert.Equal(t, 1, noSeat)
}

func TestCheckIn_DepartureBoundary(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	store := dbtest.New()
	store.SetClock(func() time.Time { return now })
	store.AddSeat("A", "1A", false)
	store.AddFlight(database.Flight{ID: 1, AircraftID: "A", DepartsAt: now, DepAirport: "LIS", ArrAirport: "OPO"})
	store.AddFlight(database.Flight{ID: 2, AircraftID: "A", DepartsAt: now.Add(time.Nanosecond), DepAirport: "LIS", ArrAirport: "OPO"})
	departing := store.AddTicket(database.Ticket{FlightID: 1, ReservationCode: 1, PassengerName: "Ann", Price: 10})
	later := store.AddTicket(database.Ticket{FlightID: 2, ReservationCode: 1, PassengerName: "Bob", Price: 10})
	engine := NewEngine(store, logger.Discard())

	_, err := engine.CheckIn(context.Background(), departing)
	assert.Equal(t, errs.KindTicketNotFound, errs.KindOf(err))

	res, err := engine.CheckIn(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, "1A", res.Seat)

	// the same ticket is refused once the clock reaches its departure
	store.SetClock(func() time.Time { return now.Add(time.Nanosecond) })
	_, err = engine.CheckIn(context.Background(), later)
	assert.Equal(t, errs.KindTicketNotFound, errs.KindOf(err))
}
