package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/router"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a buffered-only test Backend.
type fakeBackend struct {
	kind  models.BackendKind
	text  string
	err   error
	calls int
	block time.Duration
}

func (f *fakeBackend) Kind() models.BackendKind { return f.kind }
func (f *fakeBackend) Name() string             { return string(f.kind) + " API" }
func (f *fakeBackend) Label() string            { return "label-" + string(f.kind) }

func (f *fakeBackend) Complete(ctx context.Context, prompt string, agent *models.ResolvedAgent) (string, error) {
	f.calls++
	if f.block > 0 {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

// fakeStreamer also implements router.Streamer.
type fakeStreamer struct {
	fakeBackend
	deltas  []string
	failAt  int // fail after this many deltas when >= 0
	failErr error
	sent    int
}

func (f *fakeStreamer) Stream(ctx context.Context, prompt string, agent *models.ResolvedAgent, onDelta func(string) error) error {
	for i, d := range f.deltas {
		if f.failErr != nil && i == f.failAt {
			return f.failErr
		}
		if err := onDelta(d); err != nil {
			return err
		}
		f.sent++
	}
	return nil
}

var testAgent = &models.ResolvedAgent{Kind: models.AgentBuiltin, Name: "AI Nexus Triage", Instructions: "route"}

func collect(t *testing.T, g *router.Gateway, files int) ([]models.StreamEvent, error) {
	t.Helper()
	var events []models.StreamEvent
	err := g.DispatchStream(context.Background(), "hi", testAgent, files, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func TestNew_PreferenceOrder(t *testing.T) {
	google := &fakeBackend{kind: models.BackendGoogle, text: "from google"}
	groq := &fakeBackend{kind: models.BackendGroq, text: "from groq"}
	primary := &fakeStreamer{fakeBackend: fakeBackend{kind: models.BackendPrimary, text: "from primary"}}

	g := router.New(time.Second, google, groq, primary)
	res, err := g.Dispatch(context.Background(), "hi", testAgent, 0)
	require.NoError(t, err)
	assert.Equal(t, "from primary", res.Text)
	assert.Equal(t, "label-openai", res.ProviderLabel)
	assert.Zero(t, groq.calls)
	assert.Zero(t, google.calls)

	g = router.New(time.Second, google, groq)
	res, err = g.Dispatch(context.Background(), "hi", testAgent, 2)
	require.NoError(t, err)
	assert.Equal(t, "from groq", res.Text)
	assert.Equal(t, 2, res.FilesProcessed)

	st := g.Status()
	assert.Equal(t, map[models.BackendKind]bool{
		models.BackendPrimary: false,
		models.BackendGroq:    true,
		models.BackendGoogle:  true,
	}, st.Providers)
	assert.False(t, st.StreamingSupported)
	assert.Equal(t, models.BackendGroq, st.Active)
}

func TestDispatch_NoProvider(t *testing.T) {
	g := router.New(time.Second)

	assert.Equal(t, models.ErrNoProviderConfigured, models.KindOf(g.Ready()))
	_, err := g.Dispatch(context.Background(), "hi", testAgent, 0)
	assert.Equal(t, models.ErrNoProviderConfigured, models.KindOf(err))
	_, err = collect(t, g, 0)
	assert.Equal(t, models.ErrNoProviderConfigured, models.KindOf(err))
}

func TestDispatch_FailureIsNotRetriedElsewhere(t *testing.T) {
	groq := &fakeBackend{kind: models.BackendGroq, err: &router.ProviderError{Provider: "groq", StatusCode: 401, Body: `{"error":"invalid key"}`}}
	google := &fakeBackend{kind: models.BackendGoogle, text: "unused"}

	g := router.New(time.Second, groq, google)
	_, err := g.Dispatch(context.Background(), "hi", testAgent, 0)

	var te *models.TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrBackendCallFailed, te.Kind)
	assert.Equal(t, "groq API call failed", te.Message)
	assert.Contains(t, te.Details, "status 401")
	assert.Contains(t, te.Details, "invalid key")
	assert.Equal(t, 1, groq.calls)
	assert.Zero(t, google.calls)
}

func TestDispatch_ContentBlockedPassesThrough(t *testing.T) {
	blocked := &models.TurnError{Kind: models.ErrContentBlocked, Message: "blocked"}
	g := router.New(time.Second, &fakeBackend{kind: models.BackendGoogle, err: blocked})

	_, err := g.Dispatch(context.Background(), "hi", testAgent, 0)
	assert.Equal(t, models.ErrContentBlocked, models.KindOf(err))
}

func TestDispatch_Timeout(t *testing.T) {
	g := router.New(20*time.Millisecond, &fakeBackend{kind: models.BackendGroq, block: time.Second})

	_, err := g.Dispatch(context.Background(), "hi", testAgent, 0)
	var te *models.TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrBackendCallFailed, te.Kind)
	assert.Contains(t, te.Details, "timed out")
}

func TestDispatchStream_ToolStartedBeforeDeltas(t *testing.T) {
	primary := &fakeStreamer{fakeBackend: fakeBackend{kind: models.BackendPrimary}, deltas: []string{"Hel", "lo"}}
	g := router.New(time.Second, primary)

	events, err := collect(t, g, 2)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, models.ToolStarted(models.FileAnalysisTool), events[0])
	assert.Equal(t, models.Delta("Hel"), events[1])
	assert.Equal(t, models.Delta("lo"), events[2])
	assert.Equal(t, models.Done("label-openai", 2), events[3])
}

func TestDispatchStream_NoAttachmentsNoToolEvent(t *testing.T) {
	primary := &fakeStreamer{fakeBackend: fakeBackend{kind: models.BackendPrimary}, deltas: []string{"4"}}
	events, err := collect(t, router.New(time.Second, primary), 0)
	require.NoError(t, err)
	assert.Equal(t, []models.StreamEvent{models.Delta("4"), models.Done("label-openai", 0)}, events)
}

func TestDispatchStream_MidStreamErrorHasNoDone(t *testing.T) {
	primary := &fakeStreamer{
		fakeBackend: fakeBackend{kind: models.BackendPrimary},
		deltas:      []string{"a", "b", "c"},
		failAt:      2,
		failErr:     errors.New("connection reset"),
	}
	events, err := collect(t, router.New(time.Second, primary), 1)

	assert.Equal(t, models.ErrBackendCallFailed, models.KindOf(err))
	require.Len(t, events, 3)
	for _, e := range events {
		assert.NotEqual(t, models.EventDone, e.Type)
	}
}

func TestDispatchStream_FallbackRefusesToStream(t *testing.T) {
	groq := &fakeBackend{kind: models.BackendGroq, text: "buffered"}
	events, err := collect(t, router.New(time.Second, groq), 1)

	var te *models.TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrStreamingUnsupported, te.Kind)
	assert.Equal(t, "Streaming is not supported for groq API fallback", te.Message)
	assert.Empty(t, events)
	assert.Zero(t, groq.calls)
}

func TestDispatchStream_ConsumerErrorStopsProducer(t *testing.T) {
	primary := &fakeStreamer{fakeBackend: fakeBackend{kind: models.BackendPrimary}, deltas: []string{"a", "b", "c", "d"}}
	g := router.New(time.Second, primary)

	gone := errors.New("client disconnected")
	seen := 0
	err := g.DispatchStream(context.Background(), "hi", testAgent, 0, func(e models.StreamEvent) error {
		seen++
		if seen == 2 {
			return gone
		}
		return nil
	})

	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, primary.sent, "producer stops at the failed write")
}
