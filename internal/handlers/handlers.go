package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/models"
	"github.com/cx-tal-miterani/flight-ticketing/internal/service"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

// FlightWatcher subscribes a websocket connection to a flight's seat map
type FlightWatcher interface {
	ServeWS(w http.ResponseWriter, r *http.Request, flightID int64) error
}

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
	watcher        FlightWatcher
	log            *logger.Logger
}

// NewHandler creates a new Handler instance. watcher may be nil.
func NewHandler(bookingService service.BookingService, watcher FlightWatcher, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		bookingService: bookingService,
		watcher:        watcher,
		log:            log.WithComponent("handlers"),
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "message": message})
}

// respondFailure maps a classified error to its status code and writes the
// caller-facing diagnostic
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"kind", errs.KindOf(err).String(),
		)
	}
	respondError(w, status, errs.Diagnostic(err))
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindConstraintViolation:
		return http.StatusBadRequest
	case errs.KindNotFound, errs.KindFlightNotBookable, errs.KindTicketNotFound:
		return http.StatusNotFound
	case errs.KindNoSeatAvailable:
		return http.StatusConflict
	case errs.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// ListAirports handles GET /api/airports
func (h *Handler) ListAirports(w http.ResponseWriter, r *http.Request) {
	airports, err := h.bookingService.ListAirports(r.Context())
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, airports)
}

// GetDepartures handles GET /api/airports/{code}/departures
func (h *Handler) GetDepartures(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	departures, err := h.bookingService.GetDepartures(r.Context(), code)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, departures)
}

// GetAvailableFlights handles GET /api/flights/{from}/{to}/available
func (h *Handler) GetAvailableFlights(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flights, err := h.bookingService.GetAvailableFlights(r.Context(), vars["from"], vars["to"])
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flights)
}

// Purchase handles POST /api/flights/{id}/purchase. The body is a JSON
// PurchaseRequest; the query form nif_cliente=...&bilhetes=Name,class;...
// is accepted too.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "id")
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	var req models.PurchaseRequest
	query, err := purchaseQuery(r.URL.RawQuery)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query string")
		return
	}
	if query.Has("nif_cliente") || query.Has("bilhetes") {
		req, err = parsePurchaseQuery(query.Get("nif_cliente"), query.Get("bilhetes"))
		if err != nil {
			h.respondFailure(w, r, err)
			return
		}
	} else if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "Request body or nif_cliente and bilhetes parameters are required")
		default:
			respondError(w, http.StatusBadRequest, "Invalid request body")
		}
		return
	}
	req.FlightID = flightID

	result, err := h.bookingService.Purchase(r.Context(), req)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":           "success",
		"reservation_code": result.ReservationCode,
		"flight":           result.Flight,
		"tickets":          result.Tickets,
		"total_price":      result.TotalPrice,
	})
}

// purchaseQuery parses the raw query keeping ';' as data. bilhetes uses it
// to separate tickets and net/url would otherwise drop the whole pair.
func purchaseQuery(raw string) (url.Values, error) {
	return url.ParseQuery(strings.ReplaceAll(raw, ";", "%3B"))
}

// parsePurchaseQuery reads the legacy query form. Entries are numbered from 1
// in error messages.
func parsePurchaseQuery(taxID, tickets string) (models.PurchaseRequest, error) {
	req := models.PurchaseRequest{CustomerTaxID: strings.TrimSpace(taxID)}
	if req.CustomerTaxID == "" {
		return req, errs.Validation("parameter nif_cliente is required")
	}

	var entries []string
	for _, e := range strings.Split(tickets, ";") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return req, errs.Validation("parameter bilhetes is required: pairs of Name,class separated by ';' (class is 'economica' or 'primeira')")
	}

	for i, e := range entries {
		parts := strings.Split(e, ",")
		if len(parts) != 2 {
			return req, errs.Validation("ticket %d: format must be 'Name,Class'", i+1)
		}
		req.Passengers = append(req.Passengers, models.PassengerRequest{
			Name:  strings.TrimSpace(parts[0]),
			Class: models.FareClass(strings.TrimSpace(parts[1])),
		})
	}
	return req, nil
}

// CheckIn handles POST /api/tickets/{id}/checkin
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	result, err := h.bookingService.CheckIn(r.Context(), ticketID)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"ticket": result,
	})
}

// FlightUpdates handles GET /api/flights/{id}/ws
func (h *Handler) FlightUpdates(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		respondError(w, http.StatusNotFound, "live updates are disabled")
		return
	}
	flightID, err := pathID(r, "id")
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}
	if err := h.watcher.ServeWS(w, r, flightID); err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "flight_id", flightID, "error", err.Error())
	}
}

// Ping handles GET /ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

// MethodNotAllowed answers routes that exist under a different method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// NotFound answers unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found")
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.bookingService.Ping(r.Context()); err != nil {
		h.log.WarnContext(r.Context(), "health check failed", "error", err.Error())
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
