package service

import (
	"context"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/cx-tal-miterani/flight-ticketing/internal/activities"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/workflows"
)

// TemporalCheckIn runs check-ins as workflows on the worker's task queue and
// waits for the outcome
type TemporalCheckIn struct {
	client    client.Client
	taskQueue string
	log       *logger.Logger
}

// NewTemporalCheckIn creates a CheckInRunner backed by Temporal
func NewTemporalCheckIn(c client.Client, taskQueue string, log *logger.Logger) *TemporalCheckIn {
	if taskQueue == "" {
		taskQueue = models.CheckInTaskQueue
	}
	return &TemporalCheckIn{
		client:    c,
		taskQueue: taskQueue,
		log:       log.WithComponent("checkin-runner"),
	}
}

// CheckIn starts a check-in workflow for the ticket and returns its result
func (t *TemporalCheckIn) CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error) {
	if ticketID <= 0 {
		return nil, errs.Validation("ticket id must be a positive integer")
	}

	requestID := uuid.New().String()
	workflowOptions := client.StartWorkflowOptions{
		ID:        models.CheckInWorkflowPrefix + requestID,
		TaskQueue: t.taskQueue,
	}
	input := models.CheckInWorkflowInput{
		TicketID:  ticketID,
		RequestID: requestID,
	}

	run, err := t.client.ExecuteWorkflow(ctx, workflowOptions, workflows.CheckInWorkflow, input)
	if err != nil {
		return nil, errs.Transient("failed to start check-in workflow", err)
	}
	t.log.DebugContext(ctx, "check-in workflow started",
		"workflow_id", workflowOptions.ID,
		"ticket_id", ticketID,
	)

	var result models.CheckInResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, activities.FromApplicationError(err)
	}
	return &result, nil
}
