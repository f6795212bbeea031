// Package booking sells tickets: one purchase writes a sale and its tickets
// in a single store transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cx-tal-miterani/flight-ticketing/internal/database"
	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/pricing"
)

// Manager runs purchases against the store
type Manager struct {
	store    database.Transactor
	prices   pricing.Source
	validate *validator.Validate
	log      *logger.Logger
}

// NewManager creates a booking manager
func NewManager(store database.Transactor, prices pricing.Source, log *logger.Logger) *Manager {
	return &Manager{
		store:    store,
		prices:   prices,
		validate: NewValidator(),
		log:      log.WithComponent("booking"),
	}
}

// NewValidator returns a validator that reports json field names and knows
// the "fareclass" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("fareclass", func(fl validator.FieldLevel) bool {
		_, err := models.ParseFareClass(fl.Field().String())
		return err == nil
	})
	return v
}

// Purchase sells one ticket per passenger on a single flight. Either the sale
// and every ticket commit, or nothing is written.
func (m *Manager) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	passengers, err := m.normalize(req)
	if err != nil {
		return nil, err
	}

	classes := make([]bool, len(passengers))
	for i, p := range passengers {
		classes[i] = p.Class.IsFirst()
	}

	var result *models.PurchaseResult
	err = m.store.WithTx(ctx, func(tx database.Tx) error {
		flight, err := tx.GetBookableFlight(ctx, req.FlightID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return errs.New(errs.KindFlightNotBookable,
					fmt.Sprintf("flight %d not found or already departed", req.FlightID), nil)
			}
			return err
		}

		quote := pricing.QuoteFor(classes, m.prices)

		sale := &database.Sale{
			CustomerTaxID: req.CustomerTaxID,
			OriginAirport: flight.DepAirport,
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		res := &models.PurchaseResult{
			ReservationCode: sale.ReservationCode,
			CustomerTaxID:   sale.CustomerTaxID,
			Flight: models.FlightSummary{
				ID:          flight.ID,
				AircraftID:  flight.AircraftID,
				DepartsAt:   flight.DepartsAt,
				Origin:      flight.DepAirport,
				Destination: flight.ArrAirport,
			},
			Tickets: make([]models.TicketInfo, 0, len(passengers)),
		}

		for _, p := range passengers {
			ticket := &database.Ticket{
				FlightID:        flight.ID,
				ReservationCode: sale.ReservationCode,
				PassengerName:   p.Name,
				FirstClass:      p.Class.IsFirst(),
				Price:           quote.For(p.Class.IsFirst()),
			}
			if err := tx.InsertTicket(ctx, ticket); err != nil {
				return err
			}
			res.Tickets = append(res.Tickets, models.TicketInfo{
				ID:            ticket.ID,
				PassengerName: ticket.PassengerName,
				Class:         p.Class,
				Price:         ticket.Price,
			})
			res.TotalPrice += ticket.Price
		}
		res.TotalPrice = roundCents(res.TotalPrice)

		result = res
		return nil
	})
	if err != nil {
		err = errs.Ensure("failed to complete purchase", err)
		m.log.WarnContext(ctx, "purchase aborted",
			"flight_id", req.FlightID,
			"kind", errs.KindOf(err).String(),
			"error", err.Error(),
		)
		return nil, err
	}

	m.log.LogPurchase(ctx, result.ReservationCode, result.Flight.ID, len(result.Tickets))
	return result, nil
}

// normalize validates the request and canonicalizes fare classes. No
// transaction is started when it fails.
func (m *Manager) normalize(req models.PurchaseRequest) ([]models.PassengerRequest, error) {
	if err := m.validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}

	passengers := make([]models.PassengerRequest, len(req.Passengers))
	for i, p := range req.Passengers {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errs.Validation("passengers[%d].name: must not be blank", i)
		}
		class, err := models.ParseFareClass(string(p.Class))
		if err != nil {
			return nil, errs.Validation("passengers[%d].class: %v", i, err)
		}
		passengers[i] = models.PassengerRequest{Name: name, Class: class}
	}
	return passengers, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.Validation("invalid purchase request: %v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, describeTag(fe)))
	}
	return errs.Validation("%s", strings.Join(msgs, "; "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must have exactly " + fe.Param() + " characters"
	case "number":
		return "must contain only digits"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "fareclass":
		return "must be 'economy' or 'first'"
	}
	return "failed " + fe.Tag() + " check"
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
