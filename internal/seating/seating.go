// Package seating assigns seats at check-in.
//
// A ticket is given the first free seat of its fare class on the flight's
// aircraft, with seats ordered by label. The seat rows of that class are
// locked for the rest of the transaction, so concurrent check-ins on the same
// aircraft and class run one after another and never pick the same seat.
package seating

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
)

// Engine runs check-ins against the store
type Engine struct {
	store database.Transactor
	log   *logger.Logger
}

// NewEngine creates a seat allocation engine
func NewEngine(store database.Transactor, log *logger.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log.WithComponent("seating"),
	}
}

// CheckIn assigns a seat to the ticket. Checking in a ticket that already has
// a seat returns that seat without writing anything.
func (e *Engine) CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error) {
	if ticketID <= 0 {
		return nil, errs.Validation("ticket id must be a positive integer")
	}

	var result *models.CheckInResult
	err := e.store.WithTx(ctx, func(tx database.Tx) error {
		ticket, err := tx.GetTicketWithFlight(ctx, ticketID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return errs.New(errs.KindTicketNotFound,
					fmt.Sprintf("ticket %d not found or its flight already departed", ticketID), nil)
			}
			return err
		}

		res := &models.CheckInResult{
			TicketID:      ticket.ID,
			FlightID:      ticket.FlightID,
			PassengerName: ticket.PassengerName,
			Class:         models.FareClassOf(ticket.FirstClass),
			AircraftID:    ticket.FlightAircraftID,
		}

		if ticket.SeatLabel != nil {
			res.Seat = *ticket.SeatLabel
			if ticket.AircraftID != nil {
				res.AircraftID = *ticket.AircraftID
			}
			res.AlreadyCheckedIn = true
			result = res
			return nil
		}

		seats, err := tx.LockSeatMap(ctx, ticket.FlightAircraftID, ticket.FirstClass)
		if err != nil {
			return err
		}
		taken, err := tx.TakenSeats(ctx, ticket.FlightAircraftID)
		if err != nil {
			return err
		}

		label, ok := PickSeat(seats, taken)
		if !ok {
			return errs.New(errs.KindNoSeatAvailable,
				fmt.Sprintf("no %s seat available on aircraft %s", res.Class, ticket.FlightAircraftID), nil)
		}

		if err := tx.AssignSeat(ctx, ticket.ID, ticket.FlightAircraftID, label); err != nil {
			return err
		}

		res.Seat = label
		result = res
		return nil
	})
	if err != nil {
		err = errs.Ensure("failed to check in", err)
		e.log.WarnContext(ctx, "check-in aborted",
			"ticket_id", ticketID,
			"kind", errs.KindOf(err).String(),
			"error", err.Error(),
		)
		return nil, err
	}

	e.log.LogCheckIn(ctx, result.TicketID, result.Seat, result.AlreadyCheckedIn)
	return result, nil
}

// PickSeat returns the lowest label among seats that is not in taken
func PickSeat(seats []database.Seat, taken []string) (string, bool) {
	used := make(map[string]struct{}, len(taken))
	for _, label := range taken {
		used[label] = struct{}{}
	}

	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		if _, ok := used[s.Label]; !ok {
			labels = append(labels, s.Label)
		}
	}
	if len(labels) == 0 {
		return "", false
	}

	sort.Strings(labels)
	return labels[0], true
}
