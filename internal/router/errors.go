package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// ProviderError is returned when a backend answers with a non-200 status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// blocked reports a backend safety refusal.
func blocked(provider, reason string) error {
	return &models.TurnError{
		Kind:    models.ErrContentBlocked,
		Message: fmt.Sprintf("Content was blocked by %s safety filters", provider),
		Details: reason,
	}
}

// classify turns a backend error into the turn error the caller sees.
// Errors that already carry a kind pass through unchanged.
func classify(b Backend, err error) error {
	var te *models.TurnError
	if errors.As(err, &te) {
		return err
	}

	msg := b.Name() + " call failed"
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.TurnError{
			Kind:    models.ErrBackendCallFailed,
			Message: msg,
			Details: "request timed out: " + err.Error(),
			Err:     err,
		}
	}
	return models.WrapTurnError(models.ErrBackendCallFailed, msg, err)
}
