package emitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// ErrStreamingUnavailable is returned when the writer cannot flush.
var ErrStreamingUnavailable = errors.New("response writer does not support streaming")

// Stream writes StreamEvents as SSE "data:" frames, flushing each one.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	frames  int
}

// NewStream sends the event-stream headers and the 200 status. Nothing is
// written when w cannot flush.
func NewStream(w http.ResponseWriter, d models.RateDecision) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnavailable
	}

	SetRateHeaders(w, d)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}, nil
}

// Emit writes one event. A write error means the client is gone.
func (s *Stream) Emit(e models.StreamEvent) error {
	return s.write(Frame(e))
}

// Fail writes the error frame that ends a failed stream. It is not a Done
// frame: done stays false.
func (s *Stream) Fail(err error) error {
	body := ErrorBody(err)
	return s.write(models.StreamFrame{Error: body.Error, Code: body.Code})
}

// Frames reports how many frames were written.
func (s *Stream) Frames() int { return s.frames }

func (s *Stream) write(f models.StreamFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	s.frames++
	return nil
}

// Frame converts an event to its wire frame.
func Frame(e models.StreamEvent) models.StreamFrame {
	switch e.Type {
	case models.EventToolStarted:
		return models.StreamFrame{ToolCall: &models.ToolCall{Name: e.ToolName}}
	case models.EventDone:
		empty := ""
		files := e.FilesProcessed
		return models.StreamFrame{
			Content:        &empty,
			Done:           true,
			Agent:          e.ProviderLabel,
			FilesProcessed: &files,
		}
	default:
		text := e.Text
		return models.StreamFrame{Content: &text}
	}
}
