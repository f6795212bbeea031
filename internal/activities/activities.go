package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
)

// CheckInActivityName is the registered name of Activities.CheckIn
const CheckInActivityName = "CheckIn"

// SeatAssigner is the seat allocation engine as seen by the worker
type SeatAssigner interface {
	CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error)
}

// Activities holds the worker's activity implementations
type Activities struct {
	seats SeatAssigner
}

// NewActivities creates the activity set
func NewActivities(seats SeatAssigner) *Activities {
	return &Activities{seats: seats}
}

// Register adds the activities to a worker under their stable names
func (a *Activities) Register(r worker.ActivityRegistry) {
	r.RegisterActivityWithOptions(a.CheckIn, activity.RegisterOptions{Name: CheckInActivityName})
}

// CheckIn runs one check-in transaction. Failures the caller caused are
// returned as non-retryable application errors.
func (a *Activities) CheckIn(ctx context.Context, input models.CheckInWorkflowInput) (*models.CheckInResult, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	logger.Info("Checking in ticket", "ticketId", input.TicketID, "attempt", info.Attempt)

	result, err := a.seats.CheckIn(ctx, input.TicketID)
	if err != nil {
		logger.Warn("Check-in failed", "ticketId", input.TicketID, "error", err)
		return nil, ToApplicationError(err)
	}

	logger.Info("Ticket checked in", "ticketId", input.TicketID, "seat", result.Seat, "repeated", result.AlreadyCheckedIn)
	return result, nil
}
