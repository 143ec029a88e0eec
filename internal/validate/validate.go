// Package validate enforces the structural and size limits of a chat turn
// before any backend is touched.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// Limits bounds a turn. The zero value is not useful; use DefaultLimits.
type Limits struct {
	MaxMessageLength int
	MaxFiles         int
	MaxFileSize      int64
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageLength: models.MaxMessageLength,
		MaxFiles:         models.MaxFilesPerRequest,
		MaxFileSize:      models.MaxFileSize,
	}
}

// Validator decodes and checks incoming turns.
type Validator struct {
	limits Limits
}

// New creates a validator with the given limits.
func New(limits Limits) *Validator {
	return &Validator{limits: limits}
}

// Decode parses body and runs Check on the result.
func (v *Validator) Decode(body []byte) (*models.IncomingTurn, error) {
	var turn models.IncomingTurn
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&turn); err != nil {
		return nil, models.WrapTurnError(models.ErrMalformedBody, "Invalid request body", err)
	}
	if dec.More() {
		return nil, models.NewTurnError(models.ErrMalformedBody, "Invalid request body")
	}
	if err := v.Check(&turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

// Check applies the limits in order and returns the first violation.
func (v *Validator) Check(turn *models.IncomingTurn) error {
	msg := turn.Text()

	if n := utf8.RuneCountInString(msg); n > v.limits.MaxMessageLength {
		return &models.TurnError{
			Kind:    models.ErrMessageTooLong,
			Message: fmt.Sprintf("Message too long. Maximum %d characters.", v.limits.MaxMessageLength),
			Details: fmt.Sprintf("message has %d characters", n),
		}
	}

	if n := len(turn.Attachments); n > v.limits.MaxFiles {
		return &models.TurnError{
			Kind:    models.ErrTooManyFiles,
			Message: fmt.Sprintf("Too many files. Maximum %d files per request.", v.limits.MaxFiles),
			Details: fmt.Sprintf("request has %d files", n),
		}
	}

	var oversized []string
	for _, f := range turn.Attachments {
		if f.Size > v.limits.MaxFileSize {
			oversized = append(oversized, fmt.Sprintf("%s (%d bytes)", f.Name, f.Size))
		}
	}
	if len(oversized) > 0 {
		return &models.TurnError{
			Kind:    models.ErrFileTooLarge,
			Message: fmt.Sprintf("File too large. Maximum %dMB per file.", v.limits.MaxFileSize/1024/1024),
			Details: strings.Join(oversized, ", "),
		}
	}

	if msg == "" && len(turn.Attachments) == 0 {
		return models.NewTurnError(models.ErrEmptyTurn, "Message or file attachments required")
	}

	return nil
}
