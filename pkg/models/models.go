// Package models holds the types shared by every stage of the chat turn
// pipeline: the decoded request, the resolved agent, backend results, and
// the wire shapes returned to callers.
package models

import (
	"time"
)

// ── Limits ───────────────────────────────────────────────────

const (
	// MaxMessageLength is measured in characters, not bytes.
	MaxMessageLength   = 4000
	MaxFilesPerRequest = 5
	MaxFileSize        = 10 * 1024 * 1024

	DefaultRateLimit  = 20
	DefaultRateWindow = time.Hour

	// DefaultFilePrompt replaces an empty user message when only files were sent.
	DefaultFilePrompt = "Please analyze the uploaded files."

	// FileAnalysisTool is the tool name announced on streams for turns with attachments.
	FileAnalysisTool = "file_analysis"
)

// ── Turn ─────────────────────────────────────────────────────

// AttachmentRef points at a file previously uploaded to the file store.
type AttachmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// AgentSpec is the caller's agent selection. A nil spec or IsCustom=false
// selects the built-in triage agent.
type AgentSpec struct {
	ID           string `json:"id,omitempty"`
	IsCustom     bool   `json:"isCustom"`
	Title        string `json:"title,omitempty"`
	Personality  string `json:"personality,omitempty"`
	Expertise    string `json:"expertise,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// IncomingTurn is the decoded body of POST /api/agent.
type IncomingTurn struct {
	Message     *string         `json:"message,omitempty"`
	Attachments []AttachmentRef `json:"fileAttachments,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Agent       *AgentSpec      `json:"agent,omitempty"`
}

// Text returns the message or "" when absent.
func (t *IncomingTurn) Text() string {
	if t.Message == nil {
		return ""
	}
	return *t.Message
}

// ── Agents ───────────────────────────────────────────────────

// AgentKind distinguishes the fixed triage agent from per-turn personas.
type AgentKind string

const (
	AgentBuiltin AgentKind = "builtin"
	AgentCustom  AgentKind = "custom"
)

// ResolvedAgent is the persona a backend runs for one turn.
type ResolvedAgent struct {
	Kind         AgentKind
	Name         string
	Instructions string
	// Handoffs are specialists the agent may transfer the conversation to.
	// Only the primary backend executes hand-offs.
	Handoffs []*ResolvedAgent
	// HandoffDescription tells a routing agent when to pick this specialist.
	HandoffDescription string
}

// ── Backends ─────────────────────────────────────────────────

// BackendKind identifies one of the three supported providers.
type BackendKind string

const (
	BackendPrimary BackendKind = "openai"
	BackendGroq    BackendKind = "groq"
	BackendGoogle  BackendKind = "google"
)

// Labels reported in the "agent" field of responses.
const (
	LabelPrimary = "RAG-Enhanced Agent"
	LabelGroq    = "Groq API (Llama 3.1)"
	LabelGoogle  = "Google Gemini API (fallback)"
)

// TurnResult is a buffered backend answer.
type TurnResult struct {
	Text           string
	ProviderLabel  string
	FilesProcessed int
}

// StreamEventType tags a StreamEvent.
type StreamEventType string

const (
	EventToolStarted StreamEventType = "tool_started"
	EventDelta       StreamEventType = "delta"
	EventDone        StreamEventType = "done"
)

// StreamEvent is one item of a streamed turn. Within a turn events arrive
// as ToolStarted? Delta* Done.
type StreamEvent struct {
	Type           StreamEventType
	ToolName       string
	Text           string
	ProviderLabel  string
	FilesProcessed int
}

// ToolStarted builds a tool announcement event.
func ToolStarted(name string) StreamEvent {
	return StreamEvent{Type: EventToolStarted, ToolName: name}
}

// Delta builds a text delta event.
func Delta(text string) StreamEvent {
	return StreamEvent{Type: EventDelta, Text: text}
}

// Done builds the terminal event.
func Done(label string, files int) StreamEvent {
	return StreamEvent{Type: EventDone, ProviderLabel: label, FilesProcessed: files}
}

// ── Rate limiting ────────────────────────────────────────────

// RateWindow is the fixed-window counter kept per client key.
type RateWindow struct {
	Count       int
	WindowStart time.Time
	WindowSize  time.Duration
}

// RateDecision is the outcome of one admission check.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ── Wire shapes ──────────────────────────────────────────────

// TurnResponse is the buffered success body.
type TurnResponse struct {
	Output         string `json:"output"`
	Agent          string `json:"agent"`
	FilesProcessed int    `json:"filesProcessed"`
}

// ToolCall names a tool in a stream frame.
type ToolCall struct {
	Name string `json:"name"`
}

// StreamFrame is the JSON payload of one SSE "data:" line. Done is true
// only on the final frame of a completed answer; an error frame keeps it
// false so a truncated answer is never mistaken for a complete one.
type StreamFrame struct {
	Content        *string   `json:"content,omitempty"`
	ToolCall       *ToolCall `json:"toolCall,omitempty"`
	Done           bool      `json:"done"`
	Agent          string    `json:"agent,omitempty"`
	FilesProcessed *int      `json:"filesProcessed,omitempty"`
	Error          string    `json:"error,omitempty"`
	Code           string    `json:"code,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
	// Message and ResetAt are only set on rate-limit rejections.
	Message string `json:"message,omitempty"`
	ResetAt int64  `json:"resetAt,omitempty"`
}

// ProviderStatus is the body of GET /api/config.
type ProviderStatus struct {
	Providers          map[BackendKind]bool `json:"providers"`
	StreamingSupported bool                 `json:"streamingSupported"`
	Active             BackendKind          `json:"active,omitempty"`
}
