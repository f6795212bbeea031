package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) ListAirports(ctx context.Context) ([]models.Airport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Airport), args.Error(1)
}

func (m *MockBookingService) GetDepartures(ctx context.Context, code string) ([]models.Departure, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Departure), args.Error(1)
}

func (m *MockBookingService) GetAvailableFlights(ctx context.Context, from, to string) ([]models.AvailableFlight, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AvailableFlight), args.Error(1)
}

func (m *MockBookingService) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func (m *MockBookingService) CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckInResult), args.Error(1)
}

func (m *MockBookingService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
