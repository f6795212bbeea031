package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with the fields this service logs repeatedly
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout. format "text" selects the human
// readable handler; anything else logs JSON.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level, format string) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithComponent tags every line with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogHTTPRequest logs a served HTTP request
func (l *Logger) LogHTTPRequest(r *http.Request, status int, duration time.Duration) {
	l.Logger.InfoContext(r.Context(),
		"HTTP Request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("ip", r.RemoteAddr),
	)
}

// LogPurchase logs a committed sale
func (l *Logger) LogPurchase(ctx context.Context, reservationCode, flightID int64, tickets int) {
	l.Logger.InfoContext(ctx,
		"Sale Created",
		slog.Int64("reservation_code", reservationCode),
		slog.Int64("flight_id", flightID),
		slog.Int("tickets", tickets),
	)
}

// LogCheckIn logs a seat assignment
func (l *Logger) LogCheckIn(ctx context.Context, ticketID int64, seat string, repeated bool) {
	l.Logger.InfoContext(ctx,
		"Ticket Checked In",
		slog.Int64("ticket_id", ticketID),
		slog.String("seat", seat),
		slog.Bool("repeated", repeated),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}
