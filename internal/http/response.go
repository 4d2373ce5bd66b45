// Package http exposes the run's control and observation surface: a
// websocket feed of per-block Observations and a small REST API for the
// control messages of spec section 6 (pause, resume, stop, adjust
// vehicle count, adjust base demand, switch dispatch method, reset).
// Grounded on the teacher's internal/http package (response envelope,
// middleware chain, rate limiting, websocket status feed), generalized
// from a single elevator Manager to a single Simulation.
package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/domain"
)

// APIResponse is the standard response envelope for every non-websocket
// endpoint.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Meta      *APIMeta    `json:"meta,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError carries error detail in a failed APIResponse.
type APIError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
}

// APIMeta carries request bookkeeping in every APIResponse.
type APIMeta struct {
	RequestID string `json:"request_id,omitempty"`
	Version   string `json:"version,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// ResponseWriter wraps http.ResponseWriter to emit the APIResponse envelope.
type ResponseWriter struct {
	http.ResponseWriter
	logger    *slog.Logger
	requestID string
	startTime time.Time
}

// NewResponseWriter wraps w for one request/response cycle.
func NewResponseWriter(w http.ResponseWriter, logger *slog.Logger, requestID string) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, logger: logger, requestID: requestID, startTime: time.Now()}
}

// Hijack implements http.Hijacker for websocket upgrades through a
// response writer that has already been wrapped.
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("ResponseWriter does not implement http.Hijacker")
}

// WriteJSON writes data wrapped in a successful APIResponse envelope.
func (rw *ResponseWriter) WriteJSON(statusCode int, data interface{}) {
	response := APIResponse{
		Success:   statusCode >= 200 && statusCode < 300,
		Data:      data,
		Timestamp: time.Now(),
		Meta: &APIMeta{
			RequestID: rw.requestID,
			Version:   "v1",
			Duration:  time.Since(rw.startTime).String(),
		},
	}

	rw.Header().Set("Content-Type", constants.ContentTypeJSON)
	rw.Header().Set("X-Request-ID", rw.requestID)

	encoded, err := json.Marshal(response)
	if err != nil {
		rw.logger.Error("failed to encode JSON response", slog.String("error", err.Error()), slog.String("request_id", rw.requestID))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(statusCode)
	if _, writeErr := rw.Write(encoded); writeErr != nil {
		rw.logger.Error("failed to write JSON response", slog.String("error", writeErr.Error()), slog.String("request_id", rw.requestID))
	}
}

// WriteError writes a failed APIResponse envelope.
func (rw *ResponseWriter) WriteError(statusCode int, errorCode, message, details string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:        errorCode,
			Message:     message,
			Details:     details,
			RequestID:   rw.requestID,
			UserMessage: getUserFriendlyMessage(errorCode),
		},
		Timestamp: time.Now(),
		Meta: &APIMeta{
			RequestID: rw.requestID,
			Version:   "v1",
			Duration:  time.Since(rw.startTime).String(),
		},
	}

	rw.Header().Set("Content-Type", constants.ContentTypeJSON)
	rw.Header().Set("X-Request-ID", rw.requestID)
	rw.WriteHeader(statusCode)
	if err := json.NewEncoder(rw).Encode(response); err != nil {
		rw.logger.Error("failed to encode error response", slog.String("error", err.Error()), slog.String("request_id", rw.requestID))
	}
}

// WriteDomainError maps a *domain.Error to a status code and writes it.
func (rw *ResponseWriter) WriteDomainError(err error) {
	statusCode := http.StatusInternalServerError
	errorCode := ErrorCodeInternal
	message := "Internal server error"

	if domainErr, ok := err.(*domain.Error); ok {
		switch domainErr.Type {
		case domain.ErrTypeValidation:
			statusCode = http.StatusBadRequest
			errorCode = ErrorCodeValidation
			message = "Invalid input provided"
		case domain.ErrTypeInvariant:
			statusCode = http.StatusConflict
			errorCode = ErrorCodeInvariant
			message = "Operation would violate a run invariant"
		case domain.ErrTypeExhaustedDraw:
			statusCode = http.StatusServiceUnavailable
			errorCode = ErrorCodeExhaustedDraw
			message = "Random draw retry budget exhausted"
		case domain.ErrTypeInternal:
			statusCode = http.StatusInternalServerError
			errorCode = ErrorCodeInternal
			message = "Internal server error"
		}
	}

	rw.WriteError(statusCode, errorCode, message, err.Error())
}

func getUserFriendlyMessage(errorCode string) string {
	messages := map[string]string{
		ErrorCodeValidation:       "Please check your input and try again.",
		ErrorCodeInvariant:        "This action conflicts with the current run state.",
		ErrorCodeExhaustedDraw:    "The engine could not sample a valid value; try looser trip-distance bounds.",
		ErrorCodeInternal:         "Something went wrong on our end. Please try again later.",
		ErrorCodeMethodNotAllowed: "This HTTP method is not supported for this endpoint.",
		ErrorCodeInvalidJSON:      "The provided JSON is malformed.",
		ErrorCodeRateLimit:        "Too many requests. Please slow down.",
	}
	if msg, ok := messages[errorCode]; ok {
		return msg
	}
	return "An error occurred while processing your request."
}

// ErrorCode constants for consistent error handling.
const (
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeInvariant        = "INVARIANT_ERROR"
	ErrorCodeExhaustedDraw    = "EXHAUSTED_DRAW"
	ErrorCodeInternal         = "INTERNAL_ERROR"
	ErrorCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrorCodeInvalidJSON      = "INVALID_JSON"
	ErrorCodeRateLimit        = "RATE_LIMITED"
)
