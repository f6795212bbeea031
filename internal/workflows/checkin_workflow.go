package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/cx-tal-miterani/flight-ticketing/internal/activities"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
)

const (
	// CheckInTimeout bounds a single check-in attempt
	CheckInTimeout = 30 * time.Second
	// MaxCheckInAttempts is how many times a transient failure is retried
	MaxCheckInAttempts = 5
)

// CheckInWorkflow assigns a seat to one ticket. Client errors fail the
// workflow at once; store failures are retried with backoff.
func CheckInWorkflow(ctx workflow.Context, input models.CheckInWorkflowInput) (*models.CheckInResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting check-in workflow", "ticketId", input.TicketID, "requestId", input.RequestID)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: CheckInTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        500 * time.Millisecond,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        MaxCheckInAttempts,
			NonRetryableErrorTypes: activities.NonRetryableErrorTypes(),
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result models.CheckInResult
	if err := workflow.ExecuteActivity(ctx, activities.CheckInActivityName, input).Get(ctx, &result); err != nil {
		logger.Warn("Check-in workflow failed", "ticketId", input.TicketID, "error", err)
		return nil, err
	}

	logger.Info("Check-in workflow completed", "ticketId", input.TicketID, "seat", result.Seat)
	return &result, nil
}
