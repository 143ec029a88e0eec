// Package emitter renders turn outcomes onto an http.ResponseWriter: a
// single JSON document, or a server-sent-event stream of StreamFrames.
// Every response carries the caller's rate-limit headers.
package emitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.ErrRateLimited:
		return http.StatusTooManyRequests
	case models.ErrMalformedBody, models.ErrMessageTooLong, models.ErrTooManyFiles,
		models.ErrFileTooLarge, models.ErrEmptyTurn:
		return http.StatusBadRequest
	case models.ErrStreamingUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// SetRateHeaders writes the X-RateLimit-* headers. The reset time is in
// epoch milliseconds.
func SetRateHeaders(w http.ResponseWriter, d models.RateDecision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, d models.RateDecision, status int, v any) {
	SetRateHeaders(w, d)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

// Result writes a buffered turn answer.
func Result(w http.ResponseWriter, d models.RateDecision, res *models.TurnResult) {
	JSON(w, d, http.StatusOK, models.TurnResponse{
		Output:         res.Text,
		Agent:          res.ProviderLabel,
		FilesProcessed: res.FilesProcessed,
	})
}

// Error writes err as an error document. Errors without a kind are
// reported as a generic 500.
func Error(w http.ResponseWriter, d models.RateDecision, err error) {
	body := ErrorBody(err)
	JSON(w, d, StatusFor(models.ErrorKind(body.Code)), body)
}

// ErrorBody builds the wire form of err.
func ErrorBody(err error) models.ErrorResponse {
	var te *models.TurnError
	if !errors.As(err, &te) {
		return models.ErrorResponse{
			Error:   "Failed to process request",
			Code:    "internal_error",
			Details: err.Error(),
		}
	}
	return models.ErrorResponse{
		Error:   te.Message,
		Code:    string(te.Kind),
		Details: te.Details,
	}
}

// RateLimited writes the 429 rejection, including Retry-After in whole
// seconds until the window resets.
func RateLimited(w http.ResponseWriter, d models.RateDecision, now time.Time) {
	retry := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if retry < 0 {
		retry = 0
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	JSON(w, d, http.StatusTooManyRequests, models.ErrorResponse{
		Error: "Rate limit exceeded",
		Code:  string(models.ErrRateLimited),
		Message: fmt.Sprintf("Too many requests. Please try again after %s.",
			d.ResetAt.UTC().Format("15:04:05 MST")),
		ResetAt: d.ResetAt.UnixMilli(),
	})
}
