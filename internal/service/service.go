package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cx-tal-miterani/flight-ticketing/internal/cache"
	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
)

const (
	// DeparturesWindow is how far ahead the departures board looks
	DeparturesWindow = 12 * time.Hour
	// AvailableFlightsLimit caps the available flights listing
	AvailableFlightsLimit = 3

	publishTimeout = 2 * time.Second
)

// airportCodeRule accepts three upper-case ASCII letters
const airportCodeRule = "len=3,alpha,uppercase"

// BookingService defines the ticketing operations exposed over HTTP
type BookingService interface {
	ListAirports(ctx context.Context) ([]models.Airport, error)
	GetDepartures(ctx context.Context, code string) ([]models.Departure, error)
	GetAvailableFlights(ctx context.Context, from, to string) ([]models.AvailableFlight, error)
	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
	CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error)
	Ping(ctx context.Context) error
}

// Lookups are the read-only queries behind the listing endpoints
type Lookups interface {
	ListAirports(ctx context.Context) ([]database.Airport, error)
	AirportExists(ctx context.Context, code string) (bool, error)
	Departures(ctx context.Context, code string, window time.Duration) ([]database.Departure, error)
	AvailableFlights(ctx context.Context, from, to string, limit int) ([]database.AvailableFlight, error)
	Ping(ctx context.Context) error
}

// Purchaser sells tickets
type Purchaser interface {
	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
}

// CheckInRunner assigns seats, either in-process or through a workflow
type CheckInRunner interface {
	CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error)
}

// Cache stores lookup results
type Cache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any) error
}

// EventPublisher announces committed sales and check-ins
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// SeatNotifier pushes seat-map changes to live clients
type SeatNotifier interface {
	BroadcastSeatAssigned(flightID, ticketID int64, seat, fareClass string)
	BroadcastTicketsSold(flightID int64, count int)
}

// Dependencies wires a booking service. Cache, Events and Notifier are
// optional. Validator defaults to validator.New().
type Dependencies struct {
	Validator *validator.Validate
	Lookups   Lookups
	Purchaser Purchaser
	CheckIns  CheckInRunner
	Cache     Cache
	Events    EventPublisher
	Notifier  SeatNotifier
	Log       *logger.Logger
}

// bookingServiceImpl implements BookingService
type bookingServiceImpl struct {
	lookups   Lookups
	purchaser Purchaser
	checkIns  CheckInRunner
	cache     Cache
	events    EventPublisher
	notifier  SeatNotifier
	validate  *validator.Validate
	log       *logger.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(deps Dependencies) BookingService {
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &bookingServiceImpl{
		lookups:   deps.Lookups,
		purchaser: deps.Purchaser,
		checkIns:  deps.CheckIns,
		cache:     deps.Cache,
		events:    deps.Events,
		notifier:  deps.Notifier,
		validate:  validate,
		log:       log.WithComponent("service"),
		now:       time.Now,
	}
}

func (s *bookingServiceImpl) ListAirports(ctx context.Context) ([]models.Airport, error) {
	var airports []models.Airport
	if s.cached(ctx, cache.KeyAirportsAll, &airports) {
		return airports, nil
	}

	rows, err := s.lookups.ListAirports(ctx)
	if err != nil {
		return nil, errs.Ensure("failed to list airports", err)
	}

	airports = make([]models.Airport, len(rows))
	for i, a := range rows {
		airports[i] = models.Airport{Code: a.Code, Name: a.Name, City: a.City}
	}
	s.store(ctx, cache.KeyAirportsAll, airports)
	return airports, nil
}

func (s *bookingServiceImpl) GetDepartures(ctx context.Context, code string) ([]models.Departure, error) {
	if err := s.validateAirportCode("airport", code); err != nil {
		return nil, err
	}

	key := cache.DeparturesKey(code)
	var departures []models.Departure
	if s.cached(ctx, key, &departures) {
		return departures, nil
	}

	if err := s.requireAirport(ctx, code); err != nil {
		return nil, err
	}
	rows, err := s.lookups.Departures(ctx, code, DeparturesWindow)
	if err != nil {
		return nil, errs.Ensure("failed to list departures", err)
	}

	departures = make([]models.Departure, len(rows))
	for i, d := range rows {
		departures[i] = models.Departure{
			FlightID:    d.FlightID,
			AircraftID:  d.AircraftID,
			DepartsAt:   d.DepartsAt,
			Destination: d.ArrAirport,
		}
	}
	s.store(ctx, key, departures)
	return departures, nil
}

func (s *bookingServiceImpl) GetAvailableFlights(ctx context.Context, from, to string) ([]models.AvailableFlight, error) {
	if err := s.validateAirportCode("origin", from); err != nil {
		return nil, err
	}
	if err := s.validateAirportCode("destination", to); err != nil {
		return nil, err
	}
	if from == to {
		return nil, errs.Validation("origin and destination must differ")
	}
	for _, code := range []string{from, to} {
		if err := s.requireAirport(ctx, code); err != nil {
			return nil, err
		}
	}

	rows, err := s.lookups.AvailableFlights(ctx, from, to, AvailableFlightsLimit)
	if err != nil {
		return nil, errs.Ensure("failed to list available flights", err)
	}

	flights := make([]models.AvailableFlight, len(rows))
	for i, f := range rows {
		flights[i] = models.AvailableFlight{
			FlightID:   f.FlightID,
			AircraftID: f.AircraftID,
			DepartsAt:  f.DepartsAt,
			SeatsLeft:  f.SeatsLeft,
		}
	}
	return flights, nil
}

func (s *bookingServiceImpl) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	result, err := s.purchaser.Purchase(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(result.Tickets))
	for i, t := range result.Tickets {
		ids[i] = t.ID
	}
	s.publish(ctx, models.EventSaleCreated, models.SaleCreatedEvent{
		ReservationCode: result.ReservationCode,
		FlightID:        result.Flight.ID,
		TicketIDs:       ids,
		TotalPrice:      result.TotalPrice,
		OccurredAt:      s.now().UTC(),
	})
	if s.notifier != nil {
		s.notifier.BroadcastTicketsSold(result.Flight.ID, len(result.Tickets))
	}
	return result, nil
}

func (s *bookingServiceImpl) CheckIn(ctx context.Context, ticketID int64) (*models.CheckInResult, error) {
	result, err := s.checkIns.CheckIn(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if result.AlreadyCheckedIn {
		return result, nil
	}

	s.publish(ctx, models.EventTicketCheckedIn, models.TicketCheckedInEvent{
		TicketID:   result.TicketID,
		FlightID:   result.FlightID,
		AircraftID: result.AircraftID,
		Seat:       result.Seat,
		OccurredAt: s.now().UTC(),
	})
	if s.notifier != nil {
		s.notifier.BroadcastSeatAssigned(result.FlightID, result.TicketID, result.Seat, string(result.Class))
	}
	return result, nil
}

func (s *bookingServiceImpl) Ping(ctx context.Context) error {
	return s.lookups.Ping(ctx)
}

func (s *bookingServiceImpl) validateAirportCode(field, code string) error {
	if err := s.validate.Var(code, airportCodeRule); err != nil {
		return errs.Validation("%s must be a 3-letter upper-case airport code, got %q", field, code)
	}
	return nil
}

func (s *bookingServiceImpl) requireAirport(ctx context.Context, code string) error {
	ok, err := s.lookups.AirportExists(ctx, code)
	if err != nil {
		return errs.Ensure("failed to look up airport", err)
	}
	if !ok {
		return errs.NotFound("airport %s not found", code)
	}
	return nil
}

// cached reports whether key was found; cache errors count as misses
func (s *bookingServiceImpl) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || !s.cache.Enabled() {
		return false
	}
	err := s.cache.Get(ctx, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.WarnContext(ctx, "cache read failed", "key", key, "error", err.Error())
	}
	return false
}

func (s *bookingServiceImpl) store(ctx context.Context, key string, v any) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.log.WarnContext(ctx, "cache write failed", "key", key, "error", err.Error())
	}
}

// publish runs after commit and never fails the request
func (s *bookingServiceImpl) publish(ctx context.Context, routingKey string, event any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		s.log.WarnContext(ctx, "failed to publish event", "routing_key", routingKey, "error", err.Error())
	}
}
