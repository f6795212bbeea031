package router

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cx-tal-miterani/flight-ticketing/internal/handlers"
	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
	"github.com/cx-tal-miterani/flight-ticketing/internal/ratelimit"
)

// SetupRouter creates and configures the HTTP router. limiter may be nil.
//
// Routes are registered on the root router rather than a PathPrefix
// subrouter: mux clears a method mismatch when a later sub-route matches the
// shared prefix, which turns 405 into 404.
func SetupRouter(h *handlers.Handler, limiter *ratelimit.Limiter, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	r.Use(requestLogger(log))
	r.Use(corsMiddleware)

	limited := func(f http.HandlerFunc) http.Handler { return limiter.Middleware(f) }

	// Lookups
	r.Handle("/api/airports", limited(h.ListAirports)).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/api/airports/{code}/departures", limited(h.GetDepartures)).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/api/flights/{from}/{to}/available", limited(h.GetAvailableFlights)).Methods(http.MethodGet, http.MethodOptions)

	// Sales and check-in
	r.Handle("/api/flights/{id}/purchase", limited(h.Purchase)).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/tickets/{id}/checkin", limited(h.CheckIn)).Methods(http.MethodPost, http.MethodOptions)

	// WebSocket for real-time seat map updates
	r.Handle("/api/flights/{id}/ws", limited(h.FlightUpdates)).Methods(http.MethodGet)

	// Legacy paths kept for existing clients
	r.Handle("/", limited(h.ListAirports)).Methods(http.MethodGet)
	r.Handle("/voos/{code}/", limited(h.GetDepartures)).Methods(http.MethodGet)
	r.Handle("/voos/{from}/{to}/", limited(h.GetAvailableFlights)).Methods(http.MethodGet)
	r.Handle("/compra/{id}", limited(h.Purchase)).Methods(http.MethodPost, http.MethodOptions)

	// Health check
	r.HandleFunc("/ping", h.Ping).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger tags each request with an id and logs it once served
func requestLogger(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithRequestID(requestID).LogHTTPRequest(r, rec.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the recorder
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
