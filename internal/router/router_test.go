package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cx-tal-miterani/flight-ticketing/internal/handlers"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/ratelimit"
	"github.com/cx-tal-miterani/flight-ticketing/internal/service/mocks"
)

type countingCounter struct {
	n int64
}

func (c *countingCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.n++
	return c.n, nil
}

func TestSetupRouter_Routes(t *testing.T) {
	svc := new(mocks.MockBookingService)
	svc.On("ListAirports", mock.Anything).Return([]models.Airport{}, nil)
	svc.On("CheckIn", mock.Anything, int64(8)).Return(&models.CheckInResult{TicketID: 8, Seat: "3F"}, nil)
	r := SetupRouter(handlers.NewHandler(svc, nil, logger.Discard()), nil, logger.Discard())

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/api/airports", http.StatusOK},
		{http.MethodPost, "/api/tickets/8/checkin", http.StatusOK},
		{http.MethodGet, "/api/tickets/8/checkin", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSetupRouter_UnmatchedRoutesAnswerJSON(t *testing.T) {
	r := SetupRouter(handlers.NewHandler(new(mocks.MockBookingService), nil, logger.Discard()), nil, logger.Discard())

	tests := []struct {
		method      string
		target      string
		wantStatus  int
		wantMessage string
	}{
		{http.MethodGet, "/api/tickets/8/checkin", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodDelete, "/api/flights/1/purchase", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodPost, "/ping", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/compra/1", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/unknown", http.StatusNotFound, "not found"},
		{http.MethodGet, "/nowhere", http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]string
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestSetupRouter_LegacyPaths(t *testing.T) {
	svc := new(mocks.MockBookingService)
	svc.On("ListAirports", mock.Anything).Return([]models.Airport{{Code: "LIS", Name: "Lisboa"}}, nil)
	svc.On("GetDepartures", mock.Anything, "LIS").Return([]models.Departure{}, nil)
	svc.On("GetAvailableFlights", mock.Anything, "LIS", "OPO").Return([]models.AvailableFlight{}, nil)
	svc.On("Purchase", mock.Anything, models.PurchaseRequest{
		FlightID:      4,
		CustomerTaxID: "123456789",
		Passengers:    []models.PassengerRequest{{Name: "Ann", Class: "primeira"}},
	}).Return(&models.PurchaseResult{ReservationCode: 1}, nil)
	r := SetupRouter(handlers.NewHandler(svc, nil, logger.Discard()), nil, logger.Discard())

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/voos/LIS/", http.StatusOK},
		{http.MethodGet, "/voos/LIS/OPO/", http.StatusOK},
		{http.MethodPost, "/compra/4?nif_cliente=123456789&bilhetes=Ann,primeira", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	svc.AssertExpectations(t)
}

func TestSetupRouter_CORSPreflight(t *testing.T) {
	r := SetupRouter(handlers.NewHandler(new(mocks.MockBookingService), nil, logger.Discard()), nil, logger.Discard())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/flights/1/purchase", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRouter_RequestID(t *testing.T) {
	r := SetupRouter(handlers.NewHandler(new(mocks.MockBookingService), nil, logger.Discard()), nil, logger.Discard())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestSetupRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	svc := new(mocks.MockBookingService)
	svc.On("ListAirports", mock.Anything).Return([]models.Airport{}, nil)
	limiter := ratelimit.New(&countingCounter{}, 1, logger.Discard())
	r := SetupRouter(handlers.NewHandler(svc, nil, logger.Discard()), limiter, logger.Discard())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/airports", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
